package crawl

import (
	"errors"
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码（含重试耗尽后的 429）。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	// Attempts 是实际发出的请求次数（首次 + 重试）。
	Attempts int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("HTTP %d（共尝试 %d 次）", e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// DownloadError 是下载失败的统一包装；爬虫据此跳过该 URL，而不是中止整个爬取。
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("下载 %s 失败：%v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// IsTooManyRequests 判断错误是否由（重试耗尽后的）HTTP 429 引起。
func IsTooManyRequests(err error) bool {
	var hs *HTTPStatusError
	return errors.As(err, &hs) && hs.StatusCode == 429
}

// ErrBaseUnreachable 表示起始页面无法下载；上层应把它视为整次运行的致命错误。
var ErrBaseUnreachable = errors.New("起始页面不可达")

type baseError struct {
	URL string
	Err error
}

func (e *baseError) Error() string {
	return fmt.Sprintf("%v：%s：%v", ErrBaseUnreachable, strings.TrimSpace(e.URL), e.Err)
}

func (e *baseError) Unwrap() []error { return []error{ErrBaseUnreachable, e.Err} }
