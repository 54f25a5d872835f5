package listing

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jing2uo/yf2db/utils"
)

const (
	DefaultTSXURL = "https://tsx.com/json/company-directory/search/tsx/%5E*"
	DefaultUSURL  = "https://api.nasdaq.com/api/screener/stocks?tableonly=true&limit=10000&exchange=nyse"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:84.0) Gecko/20100101 Firefox/84.0"
)

// SampleSize 一档抽样规模
type SampleSize struct {
	Descriptor string
	Total      int
}

var SampleSizes = []SampleSize{
	{"small", 32},
	{"medium", 64},
	{"large", 128},
}

type tsxResponse struct {
	Results []struct {
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	} `json:"results"`
}

type screenerResponse struct {
	Data struct {
		Table struct {
			Rows []struct {
				Symbol string `json:"symbol"`
				Name   string `json:"name"`
			} `json:"rows"`
		} `json:"table"`
	} `json:"data"`
}

type Client struct {
	http   *resty.Client
	tsxURL string
	usURL  string
	logger *slog.Logger
}

type Option func(*Client)

func WithTSXURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.tsxURL = u
		}
	}
}

func WithUSURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.usURL = u
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(opts ...Option) *Client {
	h := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", defaultUserAgent).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:   h,
		tsxURL: DefaultTSXURL,
		usURL:  DefaultUSURL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		ForceContentType("application/json").
		Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to fetch %s: status code %d", url, resp.StatusCode())
	}
	return nil
}

// FetchTSX 多伦多交易所代码, 已转换为 XXX.TO 形式
func (c *Client) FetchTSX(ctx context.Context) ([]string, error) {
	var body tsxResponse
	if err := c.get(ctx, c.tsxURL, &body); err != nil {
		return nil, err
	}

	raw := make([]string, 0, len(body.Results))
	for _, r := range body.Results {
		if sym, ok := utils.YahooSymbol(r.Symbol, utils.MarketTSX); ok {
			raw = append(raw, sym)
		}
	}
	symbols := utils.NormalizeSymbols(raw)
	c.logger.Debug("tsx listing fetched", "rows", len(body.Results), "symbols", len(symbols))
	return symbols, nil
}

// FetchUS 美股筛选器中的代码, 跳过指数与带空白的代码
func (c *Client) FetchUS(ctx context.Context) ([]string, error) {
	var body screenerResponse
	if err := c.get(ctx, c.usURL, &body); err != nil {
		return nil, err
	}

	rows := body.Data.Table.Rows
	raw := make([]string, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.Symbol) != r.Symbol {
			continue
		}
		if sym, ok := utils.YahooSymbol(r.Symbol, utils.MarketUS); ok {
			raw = append(raw, sym)
		}
	}
	symbols := utils.NormalizeSymbols(raw)
	c.logger.Debug("us listing fetched", "rows", len(rows), "symbols", len(symbols))
	return symbols, nil
}

// FetchAll 依次返回 TSX 与美股列表
func (c *Client) FetchAll(ctx context.Context) ([][]string, error) {
	tsx, err := c.FetchTSX(ctx)
	if err != nil {
		return nil, err
	}
	us, err := c.FetchUS(ctx)
	if err != nil {
		return nil, err
	}
	return [][]string{tsx, us}, nil
}

// Sample 从每个列表中不重复地随机抽取 total/len(lists) 个代码
func Sample(lists [][]string, total int, rng *rand.Rand) []string {
	if len(lists) == 0 || total <= 0 {
		return nil
	}
	per := total / len(lists)

	var out []string
	for _, lst := range lists {
		n := per
		if n > len(lst) {
			n = len(lst)
		}
		for _, i := range rng.Perm(len(lst))[:n] {
			out = append(out, lst[i])
		}
	}
	return out
}

// TickerFileName frozen_<descriptor>_tickers.txt
func TickerFileName(descriptor string) string {
	return fmt.Sprintf("frozen_%s_tickers.txt", descriptor)
}

// WriteTickerFile 每行一个代码
func WriteTickerFile(dir, descriptor string, tickers []string) (string, error) {
	if err := utils.CheckOutputDir(dir); err != nil {
		return "", err
	}

	path := filepath.Join(dir, TickerFileName(descriptor))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, t := range tickers {
		if _, err := w.WriteString(t + "\n"); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ReadTickerFile 读取每行一个代码的文件, 忽略空行与 # 注释
func ReadTickerFile(path string) ([]string, error) {
	if err := utils.CheckFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tickers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tickers = append(tickers, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return utils.NormalizeSymbols(tickers), nil
}
