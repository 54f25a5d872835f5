package yahoo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNoData 代码不存在或区间内没有数据
	ErrNoData = errors.New("no data returned")
	// ErrSpanTooLong 分钟线单次请求超过 7 天
	ErrSpanTooLong = errors.New("minute request span exceeds provider limit")
	// ErrOutsideHorizon 分钟线起点早于可回溯范围
	ErrOutsideHorizon = errors.New("minute request starts outside provider horizon")
)

// APIError 行情接口返回的错误
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("yahoo api status %d", e.StatusCode)
	}
	return fmt.Sprintf("yahoo api status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNoData && (e.StatusCode == 404 || e.Code == "Not Found")
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Events     *events    `json:"events"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Currency             string `json:"currency"`
	Symbol               string `json:"symbol"`
	ExchangeName         string `json:"exchangeName"`
	FullExchangeName     string `json:"fullExchangeName"`
	InstrumentType       string `json:"instrumentType"`
	GMTOffset            int64  `json:"gmtoffset"`
	Timezone             string `json:"timezone"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	ShortName            string `json:"shortName"`
	LongName             string `json:"longName"`
	DataGranularity      string `json:"dataGranularity"`
}

type indicators struct {
	Quote    []quote    `json:"quote"`
	AdjClose []adjClose `json:"adjclose"`
}

// 停牌或无成交的时间点对应字段为 null
type quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type adjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type events struct {
	Dividends map[string]dividendEvent `json:"dividends"`
	Splits    map[string]splitEvent    `json:"splits"`
}

type dividendEvent struct {
	Amount float64 `json:"amount"`
	Date   int64   `json:"date"`
}

type splitEvent struct {
	Date        int64       `json:"date"`
	Numerator   json.Number `json:"numerator"`
	Denominator json.Number `json:"denominator"`
	SplitRatio  string      `json:"splitRatio"`
}

// Ratio 拆股比例, 例如 4:1 返回 4
func (s splitEvent) Ratio() float64 {
	num, err1 := strconv.ParseFloat(s.Numerator.String(), 64)
	den, err2 := strconv.ParseFloat(s.Denominator.String(), 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
