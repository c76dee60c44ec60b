// Package testutil holds helpers shared by the tests of this module.
package testutil

import (
	"os"
	"strings"
	"testing"
)

// ClearEnv unsets every environment variable whose name starts with prefix
// and restores them when the test ends. Like t.Setenv it cannot be used in
// parallel tests.
func ClearEnv(t testing.TB, prefix string) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
