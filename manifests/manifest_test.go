package manifests

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/pluggable"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"web.yaml": "id: web\nversion: 1.4.0\nkind: announcer\ndescription: front end\ndependencies: [auth, db]\nrequires:\n  db: 2.0.0\nsettings:\n  greeting: hi\n",
		"web.toml": "id = \"web\"\nversion = \"1.4.0\"\nkind = \"announcer\"\ndescription = \"front end\"\ndependencies = [\"auth\", \"db\"]\n\n[requires]\ndb = \"2.0.0\"\n\n[settings]\ngreeting = \"hi\"\n",
		"web.jsonc": `{
			// the web tier
			"id": "web",
			"version": "1.4.0",
			"kind": "announcer",
			"description": "front end",
			"dependencies": ["auth", "db"],
			"requires": {"db": "2.0.0"},
			"settings": {"greeting": "hi"},
		}`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := writeManifest(t, dir, name, content)
			m, err := LoadFile(path)
			require.NoError(t, err)

			assert.Equal(t, "web", m.ID())
			assert.Equal(t, "v1.4.0", m.PluginVersion())
			assert.Equal(t, "announcer", m.Kind)
			assert.Equal(t, []string{"auth", "db"}, m.Dependencies())
			assert.Equal(t, map[string]string{"db": "2.0.0"}, m.Requires)
			assert.Equal(t, "hi", m.Settings["greeting"])
			assert.Equal(t, path, m.Path)
			assert.Len(t, m.Checksum, 64)
			assert.Equal(t, "web plugin v1.4.0\n---\nfront end\n", m.String())
		})
	}
}

func TestLoadFileDefaultsIDToFileName(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "logger.yml", "description: logs\n")
	m, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "logger", m.ID())
	assert.Empty(t, m.PluginVersion())
}

func TestLoadFileValidation(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad-version.yaml": "id: a\nversion: one\n",
		"bad-dep.yaml":     "id: a\ndependencies: [\"Not Valid\"]\n",
		"bad-require.yaml": "id: a\ndependencies: [b]\nrequires:\n  b: latest\n",
		"undeclared.yaml":  "id: a\nrequires:\n  b: 1.0.0\n",
		"bad-id.yaml":      "id: \"-dash\"\n",
		"broken.json":      "{",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeManifest(t, dir, name, content))
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "notes.txt"))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "b.yaml", "id: db\n")
	writeManifest(t, dir, "a.toml", "id = \"auth\"\ndependencies = [\"db\"]\n")
	writeManifest(t, dir, "c.json", `{"id": "db"}`)
	writeManifest(t, dir, "d.yaml", "id: \"Bad Id\"\n")
	writeManifest(t, dir, "README.md", "ignored")
	writeManifest(t, dir, ".hidden.yaml", "id: hidden\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o700))

	ms, err := LoadDir(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateManifest)
	assert.ErrorIs(t, err, ErrInvalidManifest)

	require.Len(t, ms, 2)
	assert.Equal(t, "auth", ms[0].ID())
	assert.Equal(t, "db", ms[1].ID())

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDependencyMatches(t *testing.T) {
	web := &FileManifest{PluginID: "web", DependsOn: []string{"db", "cache"}, Requires: map[string]string{"db": "2.1.0"}}

	assert.NoError(t, web.DependencyMatches(&FileManifest{PluginID: "db", Version: "2.1.0"}))
	assert.NoError(t, web.DependencyMatches(&FileManifest{PluginID: "db", Version: "v3.0.0"}))
	assert.NoError(t, web.DependencyMatches(pluggable.NewSimpleManifest("cache", "")))

	err := web.DependencyMatches(&FileManifest{PluginID: "db", Version: "2.0.9"})
	assert.ErrorIs(t, err, ErrVersionTooLow)
	assert.Equal(t, "dependency version is lower than required: db v2.0.9 < v2.1.0", err.Error())

	assert.ErrorIs(t, web.DependencyMatches(&FileManifest{PluginID: "db"}), ErrUnversionedDependency)
	assert.ErrorIs(t, web.DependencyMatches(pluggable.NewSimpleManifest("db", "")), ErrUnversionedDependency)
}

func TestVerify(t *testing.T) {
	ms := []*FileManifest{
		{PluginID: "web", Version: "1.0.0", DependsOn: []string{"db", "auth"}, Requires: map[string]string{"db": "2.0.0"}},
		{PluginID: "db", Version: "1.5.0"},
		{PluginID: "db", Version: "9.0.0"},
		{PluginID: "loop", DependsOn: []string{"loop"}},
	}

	problems := Verify(ms)
	require.Len(t, problems, 4)
	assert.ErrorIs(t, problems[0], pluggable.ErrDuplicatePlugin)
	assert.ErrorIs(t, problems[1], pluggable.ErrCyclicDependency)
	assert.ErrorIs(t, problems[2], pluggable.ErrDependencyMismatch)
	assert.ErrorIs(t, problems[2], ErrVersionTooLow)
	assert.Equal(t, "dependency `auth` required by `web` not found", problems[3].Error())

	assert.Empty(t, Verify([]*FileManifest{{PluginID: "solo"}}))
}
