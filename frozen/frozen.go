package frozen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jing2uo/yf2db/utils"
)

// Adder 向新建数据库写入单个代码
type Adder interface {
	AddTicker(ctx context.Context, symbol string) (int64, error)
	Close() error
}

// OpenFunc 在 path 处创建空数据库
type OpenFunc func(path string) (Adder, error)

type GenerateOptions struct {
	// MaxSleep 每个代码之后随机休眠 [1s, MaxSleep), 为 0 时不休眠
	MaxSleep time.Duration
	Logger   *slog.Logger
}

// Generate 在 path 处新建数据库并逐个写入代码, 完成后计算校验值. path 已存在时拒绝执行.
// 失败时删除已创建的文件, 以便重新生成.
func Generate(ctx context.Context, path string, tickers []string, open OpenFunc, opts GenerateOptions) (v Variant, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(path); err == nil {
		return Variant{}, fmt.Errorf("frozen database %s already exists", path)
	}
	if len(tickers) == 0 {
		return Variant{}, fmt.Errorf("no tickers to add")
	}

	defer func() {
		if err == nil {
			return
		}
		for _, p := range []string{path, path + ".wal"} {
			if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn("failed to remove partial database", "path", p, "error", rmErr)
			}
		}
	}()

	db, err := open(path)
	if err != nil {
		return Variant{}, fmt.Errorf("failed to create %s: %w", path, err)
	}

	failed, err := addAll(ctx, db, tickers, opts.MaxSleep, logger)
	if err != nil {
		db.Close()
		return Variant{}, err
	}

	if err := db.Close(); err != nil {
		return Variant{}, fmt.Errorf("failed to close %s: %w", path, err)
	}
	if len(failed) == len(tickers) {
		return Variant{}, fmt.Errorf("every ticker failed: %s", strings.Join(failed, ","))
	}

	sum, err := Checksum(path)
	if err != nil {
		return Variant{}, err
	}

	return Variant{
		Tickers:   tickers,
		Filename:  filepath.Base(path),
		Checksum:  sum,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}, nil
}

// addAll 单个代码失败只记录, 仅在 ctx 取消时返回错误
func addAll(ctx context.Context, db Adder, tickers []string, maxSleep time.Duration, logger *slog.Logger) ([]string, error) {
	var failed []string
	for i, ticker := range tickers {
		n, err := db.AddTicker(ctx, ticker)
		if err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			logger.Warn("failed to add ticker", "ticker", ticker, "error", err)
			failed = append(failed, ticker)
		} else {
			logger.Info("ticker added", "ticker", ticker, "rows", n)
		}

		if i < len(tickers)-1 {
			if err := sleep(ctx, randomPause(maxSleep)); err != nil {
				return failed, err
			}
		}
	}
	return failed, nil
}

func randomPause(max time.Duration) time.Duration {
	if max <= time.Second {
		return max
	}
	return time.Second + rand.N(max-time.Second)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pull 下载已发布的版本到 dir 并校验. 目标文件已存在且校验通过时不重复下载.
func Pull(ctx context.Context, v Variant, baseURL, dir string, opts ...utils.DownloadOption) (string, error) {
	if v.Filename == "" {
		return "", fmt.Errorf("variant has no filename")
	}

	target := filepath.Join(dir, v.Filename)
	if utils.FileExists(target) && Verify(target, v) == nil {
		return target, nil
	}

	url := v.URL
	if url == "" {
		if baseURL == "" {
			return "", fmt.Errorf("no download url for %s", v.Filename)
		}
		url = strings.TrimRight(baseURL, "/") + "/" + v.Filename
	}

	cacheDir, err := utils.GetCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to prepare cache dir: %w", err)
	}
	tmp := filepath.Join(cacheDir, v.Filename)
	defer os.Remove(tmp)

	if err := utils.DownloadFile(ctx, url, tmp, opts...); err != nil {
		return "", err
	}
	if err := Verify(tmp, v); err != nil {
		return "", err
	}

	if err := utils.CheckOutputDir(dir); err != nil {
		return "", err
	}
	if err := moveFile(tmp, target); err != nil {
		return "", err
	}
	return target, nil
}

// moveFile 跨设备时退化为复制
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
