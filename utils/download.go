package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const defaultSections = 5

type Download struct {
	Url           string
	Target        string
	TotalSections int

	client *resty.Client
}

type DownloadOption func(*Download)

func WithSections(n int) DownloadOption {
	return func(d *Download) {
		if n > 0 {
			d.TotalSections = n
		}
	}
}

func WithHTTPClient(c *resty.Client) DownloadOption {
	return func(d *Download) {
		if c != nil {
			d.client = c
		}
	}
}

// DownloadFile 服务端支持 Range 时分段并发下载后合并, 否则整体下载
func DownloadFile(ctx context.Context, url string, targetPath string, opts ...DownloadOption) error {
	d := &Download{
		Url:           url,
		Target:        targetPath,
		TotalSections: defaultSections,
		client: resty.New().
			SetTimeout(10*time.Minute).
			SetHeader("User-Agent", "yf2db-downloader"),
	}
	for _, opt := range opts {
		opt(d)
	}

	// 1. 获取文件大小
	res, err := d.client.R().SetContext(ctx).Head(d.Url)
	if err != nil {
		return fmt.Errorf("failed to execute HEAD request: %w", err)
	}
	if res.StatusCode() > 299 {
		return fmt.Errorf("server returned error status code: %d", res.StatusCode())
	}

	size, err := strconv.Atoi(res.Header().Get("Content-Length"))
	ranged := strings.EqualFold(res.Header().Get("Accept-Ranges"), "bytes")
	if err != nil || size <= 0 || !ranged || size < d.TotalSections {
		return d.downloadWhole(ctx)
	}

	// 2. 计算分段
	sections := splitSections(size, d.TotalSections)

	// 3. 并发下载
	g, gctx := errgroup.WithContext(ctx)
	for i, section := range sections {
		g.Go(func() error {
			return d.downloadSection(gctx, i, section)
		})
	}
	if err := g.Wait(); err != nil {
		d.removeParts(len(sections))
		return err
	}

	// 4. 合并
	if err := d.mergeSections(len(sections)); err != nil {
		return fmt.Errorf("failed to merge sections: %w", err)
	}
	return nil
}

func splitSections(size, n int) [][2]int {
	eachSize := size / n
	sections := make([][2]int, n)
	for i := range sections {
		if i == 0 {
			sections[i][0] = 0
		} else {
			sections[i][0] = sections[i-1][1] + 1
		}
		if i < n-1 {
			sections[i][1] = sections[i][0] + eachSize
		} else {
			sections[i][1] = size - 1
		}
	}
	return sections
}

func (d *Download) partFile(i int) string {
	return fmt.Sprintf("%s.part%d", d.Target, i)
}

func (d *Download) downloadWhole(ctx context.Context) error {
	resp, err := d.client.R().SetContext(ctx).SetOutput(d.Target).Get(d.Url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", d.Url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		os.Remove(d.Target)
		return fmt.Errorf("server returned error status code: %d", resp.StatusCode())
	}
	return nil
}

func (d *Download) downloadSection(ctx context.Context, i int, section [2]int) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Range", fmt.Sprintf("bytes=%d-%d", section[0], section[1])).
		SetOutput(d.partFile(i)).
		Get(d.Url)
	if err != nil {
		return fmt.Errorf("failed to download section %d: %w", i, err)
	}
	if resp.StatusCode() != http.StatusPartialContent {
		return fmt.Errorf("server does not support partial content for section %d: status code %d", i, resp.StatusCode())
	}
	return nil
}

func (d *Download) mergeSections(n int) error {
	f, err := os.Create(d.Target)
	if err != nil {
		return fmt.Errorf("failed to create target file %s: %w", d.Target, err)
	}
	defer f.Close()

	for i := 0; i < n; i++ {
		if err := appendFile(f, d.partFile(i)); err != nil {
			return err
		}
		if err := os.Remove(d.partFile(i)); err != nil {
			return fmt.Errorf("failed to remove part file %s: %w", d.partFile(i), err)
		}
	}
	return nil
}

func appendFile(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read part file %s: %w", path, err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to append %s: %w", path, err)
	}
	return nil
}

func (d *Download) removeParts(n int) {
	for i := 0; i < n; i++ {
		os.Remove(d.partFile(i))
	}
}
