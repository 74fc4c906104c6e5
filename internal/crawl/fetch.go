package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const defaultMaxBodyBytes int64 = 32 << 20

// fetcher 负责单个 URL 的下载：HTTP 429 与传输层错误按 RetryPolicy 退避重试，
// 其它非 2xx 直接失败。
type fetcher struct {
	client     *http.Client
	policy     RetryPolicy
	maxRetries int
	sleep      SleepFunc
	maxBody    int64
	log        *slog.Logger
}

type fetched struct {
	Body        []byte
	ContentType string
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) (fetched, error) {
	f.log.Debug("开始下载", "url", rawURL)

	attempts := 0
	for retry := 0; ; retry++ {
		if retry > 0 {
			d := f.policy.Delay(retry)
			f.log.Info("等待后重试", "url", rawURL, "retry", retry, "delay", d)
			if err := f.sleep(ctx, d); err != nil {
				return fetched{}, &DownloadError{URL: rawURL, Err: err}
			}
		}

		attempts++
		res, status, err := f.once(ctx, rawURL)
		switch {
		case err == nil && status >= 200 && status < 300:
			f.log.Debug("下载完成", "url", rawURL, "bytes", len(res.Body))
			return res, nil
		case err != nil:
			if ctx.Err() != nil || errors.Is(err, errBodyTooLarge) {
				f.log.Warn("下载失败，跳过", "url", rawURL, "err", err)
				return fetched{}, &DownloadError{URL: rawURL, Err: err}
			}
			if retry < f.maxRetries {
				f.log.Info("连接失败，准备重试", "url", rawURL, "err", err)
				continue
			}
			f.log.Warn("下载失败，跳过", "url", rawURL, "err", err)
			return fetched{}, &DownloadError{URL: rawURL, Err: err}
		case status == http.StatusTooManyRequests && retry < f.maxRetries:
			f.log.Info("HTTP 429 Too Many Requests", "url", rawURL)
			continue
		default:
			serr := &HTTPStatusError{URL: rawURL, StatusCode: status, Attempts: attempts}
			f.log.Warn("下载失败，跳过", "url", rawURL, "err", serr)
			return fetched{}, &DownloadError{URL: rawURL, Err: serr}
		}
	}
}

// once 发出一次 GET；非 2xx 时不读取 body，只返回状态码。
func (f *fetcher) once(ctx context.Context, rawURL string) (fetched, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fetched{}, 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fetched{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return fetched{}, resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return fetched{}, resp.StatusCode, fmt.Errorf("读取 body 失败：%w", err)
	}
	if int64(len(body)) > f.maxBody {
		return fetched{}, resp.StatusCode, errBodyTooLarge
	}
	return fetched{Body: body, ContentType: resp.Header.Get("Content-Type")}, resp.StatusCode, nil
}

var errBodyTooLarge = errors.New("响应体超过大小上限")
