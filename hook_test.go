package pluggable

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greet(s string) Greeter {
	return greeterFunc(func() string { return s })
}

func collect[T any](seq iter.Seq[T]) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

func TestRegisterHookRejectsDuplicateNames(t *testing.T) {
	hr := NewHookRegistry()

	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "", greet("hello")))
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "formal", greet("good day")))
	require.NoError(t, RegisterHook(hr, greeterSlot, "fr", "", greet("bonjour")))

	err := RegisterHook(hr, greeterSlot, "en", "", greet("hi"))
	require.ErrorIs(t, err, ErrDuplicateHook)
	err = RegisterHook(hr, greeterSlot, "en", "formal", greet("greetings"))
	require.ErrorIs(t, err, ErrDuplicateHook)

	g, ok := FirstHook(hr, greeterSlot, "en")
	require.True(t, ok)
	assert.Equal(t, "hello", g.Greet())
}

func TestHookLookup(t *testing.T) {
	hr := NewHookRegistry()
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "formal", greet("good day")))
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "", greet("hello")))

	assert.True(t, hr.HasHook("en", "greeter"))
	assert.False(t, hr.HasHook("de", "greeter"))
	assert.False(t, hr.HasHook("en", "other"))
	assert.True(t, hr.HasExactHook("en", "greeter", "formal"))
	assert.True(t, hr.HasExactHook("en", "greeter", ""))
	assert.False(t, hr.HasExactHook("en", "greeter", "casual"))

	first, ok := FirstHook(hr, greeterSlot, "en")
	require.True(t, ok)
	assert.Equal(t, "good day", first.Greet())

	exact, ok := ExactHook(hr, greeterSlot, "en", "")
	require.True(t, ok)
	assert.Equal(t, "hello", exact.Greet())

	_, ok = ExactHook(hr, greeterSlot, "en", "casual")
	assert.False(t, ok)
	_, ok = FirstHook(hr, greeterSlot, "de")
	assert.False(t, ok)
}

func TestHookTypeMismatchIsAMiss(t *testing.T) {
	hr := NewHookRegistry()
	counters := NewSlot[func() int]("greeter")
	require.NoError(t, RegisterHook(hr, counters, "en", "", func() int { return 1 }))

	_, ok := FirstHook(hr, greeterSlot, "en")
	assert.False(t, ok)
	assert.Empty(t, collect(PluginHooks(hr, greeterSlot, "en")))

	_, ok = RemoveHook(hr, greeterSlot, "en", "")
	assert.False(t, ok)
	assert.True(t, hr.HasHook("en", "greeter"))
}

func TestRemoveHook(t *testing.T) {
	hr := NewHookRegistry()
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "a", greet("a")))
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "b", greet("b")))
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "c", greet("c")))

	removed, ok := RemoveHook(hr, greeterSlot, "en", "b")
	require.True(t, ok)
	assert.Equal(t, "b", removed.Greet())

	var got []string
	for g := range PluginHooks(hr, greeterSlot, "en") {
		got = append(got, g.Greet())
	}
	assert.Equal(t, []string{"a", "c"}, got)

	_, ok = RemoveHook(hr, greeterSlot, "en", "b")
	assert.False(t, ok)

	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "b", greet("b again")))
}

func TestRemovePluginHooksAndCompact(t *testing.T) {
	hr := NewHookRegistry()
	other := NewSlot[Greeter]("farewell")
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "", greet("hello")))
	require.NoError(t, RegisterHook(hr, other, "en", "", greet("bye")))
	require.NoError(t, RegisterHook(hr, other, "fr", "", greet("au revoir")))

	assert.Equal(t, []string{"farewell", "greeter"}, hr.PluginSlots("en"))

	hr.RemovePluginHooks("en")
	assert.False(t, hr.HasHook("en", "greeter"))
	assert.False(t, hr.HasHook("en", "farewell"))
	assert.True(t, hr.HasHook("fr", "farewell"))
	assert.Empty(t, hr.PluginSlots("en"))

	assert.Equal(t, []string{"farewell", "greeter"}, hr.Slots())
	hr.Compact()
	assert.Equal(t, []string{"farewell"}, hr.Slots())
}

func TestSlotHooks(t *testing.T) {
	hr := NewHookRegistry()
	require.NoError(t, RegisterHook(hr, greeterSlot, "fr", "", greet("bonjour")))
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "", greet("hello")))
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "formal", greet("good day")))

	type pair struct{ plugin, greeting string }
	var got []pair
	for plugin, g := range SlotHooks(hr, greeterSlot) {
		got = append(got, pair{plugin, g.Greet()})
	}
	assert.Equal(t, []pair{{"en", "hello"}, {"en", "good day"}, {"fr", "bonjour"}}, got)

	count := 0
	for range SlotHooks(hr, greeterSlot) {
		count++
		break
	}
	assert.Equal(t, 1, count)

	for range SlotHooks(hr, NewSlot[Greeter]("empty")) {
		t.Fatal("empty slot must not yield")
	}
}

func TestPluginHooksSnapshotAllowsMutation(t *testing.T) {
	hr := NewHookRegistry()
	require.NoError(t, RegisterHook(hr, greeterSlot, "en", "", greet("hello")))

	for range PluginHooks(hr, greeterSlot, "en") {
		require.NoError(t, RegisterHook(hr, greeterSlot, "en", "late", greet("late")))
	}
	assert.True(t, hr.HasExactHook("en", "greeter", "late"))
}
