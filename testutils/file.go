package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

// TempDir creates a temporary directory and fails the test if it cannot.
func TempDir(t *testing.T, dir, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp(dir, pattern)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// WriteTempFile writes data to a new file named name in a fresh temporary directory and returns
// its path.
func WriteTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(TempDir(t, "", "motionkit"), name)
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
	return path
}
