package utils

import "strings"

var usClassReplacer = strings.NewReplacer(".", "-", "/", "-")

const (
	MarketTSX = "tsx"
	MarketUS  = "us"
)

// YahooSymbol 将交易所原始代码转换为行情源使用的代码
func YahooSymbol(code, market string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return code, false
	}

	switch market {
	case MarketTSX:
		// 多级后缀 (如 XX.UN.A) 无法对应
		if strings.Count(code, ".") >= 2 {
			return code, false
		}
		return strings.ReplaceAll(code, ".", "-") + ".TO", true
	case MarketUS:
		// 指数与带空白的代码跳过
		if strings.ContainsAny(code, "^ \t") {
			return code, false
		}
		return usClassReplacer.Replace(code), true
	default:
		return code, false
	}
}

// NormalizeSymbols 转大写, 去空, 去重, 保持原顺序
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
