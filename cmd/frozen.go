package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jing2uo/yf2db/database"
	"github.com/jing2uo/yf2db/frozen"
	"github.com/jing2uo/yf2db/ingest"
	"github.com/jing2uo/yf2db/listing"
	"github.com/jing2uo/yf2db/utils"
)

type FrozenOptions struct {
	Label       string
	Tickers     []string
	TickersFile string
	Filename    string
	NoSleep     bool
}

// serviceAdder 新建的冻结库连同其服务
type serviceAdder struct {
	*ingest.Service
	repo database.DataRepository
}

func (s *serviceAdder) Close() error {
	return s.repo.Close()
}

// loadManifest 清单文件中的版本, 被配置中的同名版本覆盖
func loadManifest(app *App) (*frozen.Manifest, error) {
	m, err := frozen.LoadManifest(app.Cfg.Frozen.Manifest)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]frozen.Variant, len(app.Cfg.Frozen.Variants))
	for label, v := range app.Cfg.Frozen.Variants {
		overrides[label] = frozen.Variant{
			Tickers:     v.Tickers,
			TickersFile: v.TickersFile,
			Filename:    v.Filename,
			Checksum:    v.Checksum,
			URL:         v.URL,
		}
	}
	m.Merge(overrides)
	return m, nil
}

func frozenTickers(opts FrozenOptions, known frozen.Variant, found bool) ([]string, error) {
	if len(opts.Tickers) > 0 {
		return utils.NormalizeSymbols(opts.Tickers), nil
	}

	file := opts.TickersFile
	if file == "" && found {
		if len(known.Tickers) > 0 {
			return utils.NormalizeSymbols(known.Tickers), nil
		}
		file = known.TickersFile
	}
	if file == "" {
		return nil, fmt.Errorf("no tickers given, use --tickers or --tickers-file")
	}
	return listing.ReadTickerFile(file)
}

// FrozenGenerate 新建冻结库并把校验值写入清单
func FrozenGenerate(ctx context.Context, app *App, opts FrozenOptions) error {
	if opts.Label == "" {
		return fmt.Errorf("--label is required")
	}

	m, err := loadManifest(app)
	if err != nil {
		return err
	}
	known, lookupErr := m.Lookup(opts.Label)
	found := lookupErr == nil

	tickers, err := frozenTickers(opts, known, found)
	if err != nil {
		return err
	}

	filename := opts.Filename
	if filename == "" {
		filename = fmt.Sprintf("frozen_%s.duckdb", opts.Label)
	}
	if err := utils.CheckOutputDir(app.Cfg.DB.Dir); err != nil {
		return err
	}
	path := filepath.Join(app.Cfg.DB.Dir, filename)

	open := func(p string) (frozen.Adder, error) {
		repo, err := database.Open(p)
		if err != nil {
			return nil, err
		}
		svc, err := app.NewService(repo)
		if err != nil {
			repo.Close()
			return nil, err
		}
		return &serviceAdder{Service: svc, repo: repo}, nil
	}

	genOpts := frozen.GenerateOptions{MaxSleep: app.Cfg.Frozen.MaxSleep, Logger: app.Logger}
	if opts.NoSleep {
		genOpts.MaxSleep = 0
	}

	fmt.Printf("🐢 开始生成冻结库 %s, 共 %d 个代码\n", path, len(tickers))
	v, err := frozen.Generate(ctx, path, tickers, open, genOpts)
	if err != nil {
		return err
	}
	if found {
		v.URL = known.URL
	}
	v.TickersFile = opts.TickersFile

	m.Variants[opts.Label] = v
	if err := m.Save(app.Cfg.Frozen.Manifest); err != nil {
		return err
	}

	fmt.Printf("✅ 已生成 %s\n", path)
	fmt.Printf("🔢 校验值 %s, 已写入 %s\n", v.Checksum, app.Cfg.Frozen.Manifest)
	return nil
}

// FrozenVerify path 为空时校验数据目录中对应的文件
func FrozenVerify(app *App, label, path string) error {
	m, err := loadManifest(app)
	if err != nil {
		return err
	}
	v, err := m.Lookup(label)
	if err != nil {
		return err
	}

	if path == "" {
		path = filepath.Join(app.Cfg.DB.Dir, v.Filename)
	}
	if err := frozen.Verify(path, v); err != nil {
		return err
	}
	fmt.Printf("✅ %s 校验通过 (%s)\n", path, v.Checksum)
	return nil
}

// FrozenPull 下载已发布的冻结库并校验
func FrozenPull(ctx context.Context, app *App, label string) error {
	m, err := loadManifest(app)
	if err != nil {
		return err
	}
	v, err := m.Lookup(label)
	if err != nil {
		return err
	}

	fmt.Printf("🐢 开始下载冻结库 %s\n", label)
	path, err := frozen.Pull(ctx, v, app.Cfg.Frozen.BaseURL, app.Cfg.DB.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("✅ %s 已就绪 (%s)\n", path, v.Checksum)
	return nil
}

// FrozenList 列出清单中的全部版本
func FrozenList(app *App) error {
	m, err := loadManifest(app)
	if err != nil {
		return err
	}
	if len(m.Variants) == 0 {
		fmt.Println("🌲 清单中没有冻结库")
		return nil
	}
	for _, label := range m.Labels() {
		v := m.Variants[label]
		fmt.Printf("📦 %s: %s %s (%d 个代码)\n", label, v.Filename, v.Checksum, len(v.Tickers))
	}
	return nil
}
