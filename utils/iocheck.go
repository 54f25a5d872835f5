package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// CheckFile 路径必须是可读的普通文件, 如代码列表或待校验的数据库文件
func CheckFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("the file does not exist: %s", path)
	case err != nil:
		return fmt.Errorf("error checking %s: %w", path, err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("the specified path %s is not a file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not read the file %s: %w", path, err)
	}
	return f.Close()
}

// CheckOutputDir 导出目录, 数据目录与抽样目录共用: 不存在时创建, 存在时必须可写
func CheckOutputDir(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("could not create output directory %s: %w", path, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not access output directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("the specified output path is not a directory: %s", path)
	}

	probe, err := os.CreateTemp(path, ".yf2db-probe-")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", path, err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// FileExists 仅在路径存在且为普通文件时返回 true
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
