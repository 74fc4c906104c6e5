// Package httpx 构造爬虫共用的 *http.Client：UA 池、代理、超时与重定向上限。
package httpx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 10
	defaultAccept       = "text/html,application/xhtml+xml,*/*;q=0.8"
)

// userAgents 是未配置 user_agent 时轮换使用的浏览器 UA。
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// Transport 在每个请求上补齐 User-Agent / Accept，并在代理模式下强制短连接。
//
// 重试不在这里做：429/连接错误的退避属于爬虫（crawl.RetryPolicy），
// 这样每次重试的延迟可以被观测与替换。
type Transport struct {
	Base http.RoundTripper

	// UserAgent 非空时固定使用；否则每个请求从 userAgents 随机选择。
	UserAgent string

	// CloseConns 为 true 时每个请求都设置 Close（代理模式）。
	CloseConns bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// 不修改调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent())
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", defaultAccept)
	}
	if t.CloseConns {
		r.Close = true
	}
	return base.RoundTrip(r)
}

func (t *Transport) userAgent() string {
	if ua := strings.TrimSpace(t.UserAgent); ua != "" {
		return ua
	}
	return userAgents[rand.IntN(len(userAgents))]
}

// Options 描述爬虫 HTTP client 的可配置项；零值可用。
type Options struct {
	// ProxyURL 非空时所有请求走该代理，并禁用 keep-alive。
	ProxyURL  string
	UserAgent string
	// Timeout 是单次请求（含读取 body）的总超时；<=0 使用默认值。
	Timeout time.Duration
	// MaxRedirects 是单次请求允许跟随的重定向次数；<=0 使用默认值。
	MaxRedirects int
}

// NewClient 构造爬虫使用的 HTTP client。
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConnsPerHost:   4,
	}

	tr := &Transport{Base: base, UserAgent: opts.UserAgent}
	if raw := strings.TrimSpace(opts.ProxyURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("proxy url 无效：%w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy url 缺少 scheme 或 host：%q", raw)
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		tr.CloseConns = true
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("重定向次数超过 %d：%s", maxRedirects, req.URL)
			}
			return nil
		},
	}, nil
}
