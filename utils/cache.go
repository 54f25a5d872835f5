package utils

import (
	"os"
	"path/filepath"
)

// CacheDirEnv 覆盖下载缓存目录
const CacheDirEnv = "YF2DB_CACHE_DIR"

// GetCacheDir 下载中转目录, 优先使用 YF2DB_CACHE_DIR, 其次为用户缓存目录
func GetCacheDir() (string, error) {
	dir := os.Getenv(CacheDirEnv)
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "yf2db")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
