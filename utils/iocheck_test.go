package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckOutputDir(t *testing.T) {
	root := t.TempDir()

	nested := filepath.Join(root, "a", "b")
	require.NoError(t, CheckOutputDir(nested))
	assert.DirExists(t, nested)

	// 已存在的目录不留下探测文件
	require.NoError(t, CheckOutputDir(nested))
	entries, err := os.ReadDir(nested)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.Error(t, CheckOutputDir(file))
}

func TestCheckFileAndFileExists(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "tickers.txt")
	require.NoError(t, os.WriteFile(file, []byte("MSFT\n"), 0644))

	assert.NoError(t, CheckFile(file))
	assert.True(t, FileExists(file))

	err := CheckFile(filepath.Join(root, "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.False(t, FileExists(filepath.Join(root, "missing.txt")))

	assert.Error(t, CheckFile(root))
	assert.False(t, FileExists(root))
}

func TestGetCacheDirOverride(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	t.Setenv(CacheDirEnv, dir)

	got, err := GetCacheDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.DirExists(t, dir)
}
