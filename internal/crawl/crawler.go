// Package crawl 实现站点爬虫：从起始 URL 做广度优先、深度受限的遍历，
// 收集同源静态资源（样式表、脚本、图片）并逐个下载。
package crawl

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/John-Robertt/webappversion/internal/domain"
)

// Pacer 是页面之间的礼貌延迟；每个出队并通过检查的页面调用一次 Wait，静态资源不调用。
// Walk 只在上一页面的静态资源全部处理完之后才调用 Wait。
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer 返回页面周期之间的礼貌延迟：第一个页面立即放行，之后每次 Wait
// 都从调用时刻（即上一页面周期结束）起完整等待 delay。delay<=0 时不做限速。
func NewPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return noPacer{}
	}
	return &cyclePacer{lim: rate.NewLimiter(rate.Every(delay), 1)}
}

// cyclePacer 是 burst=1 的令牌桶，但不允许令牌在页面周期内累积：
// 慢速资源耗掉的时间不能抵扣下一次延迟。
type cyclePacer struct {
	lim     *rate.Limiter
	started bool
}

func (p *cyclePacer) Wait(ctx context.Context) error {
	if !p.started {
		p.started = true
		return p.lim.Wait(ctx)
	}
	// burst 先降到 0 再恢复，桶内令牌被截断为 0。
	now := time.Now()
	p.lim.SetBurstAt(now, 0)
	p.lim.SetBurstAt(now, 1)
	return p.lim.Wait(ctx)
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }

// Options 配置爬虫。零值字段使用默认值。
type Options struct {
	Client *http.Client

	// Retry 为 nil 时使用 Exponential{Base: 3}。
	Retry      RetryPolicy
	MaxRetries int

	// Pacer 为 nil 时不做页面间限速。
	Pacer Pacer
	// Sleep 为 nil 时使用真实的定时器；测试可替换以观测退避时长。
	Sleep SleepFunc

	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Crawler 是无状态的爬虫配置；每次 Crawl 返回独立的 Walk。
type Crawler struct {
	fetch fetcher
	pacer Pacer
	log   *slog.Logger
}

func New(opts Options) *Crawler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	policy := opts.Retry
	if policy == nil {
		policy = Exponential{Base: 3}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	pacer := opts.Pacer
	if pacer == nil {
		pacer = noPacer{}
	}
	return &Crawler{
		fetch: fetcher{
			client:     client,
			policy:     policy,
			maxRetries: maxRetries,
			sleep:      sleep,
			maxBody:    maxBody,
			log:        log,
		},
		pacer: pacer,
		log:   log,
	}
}

// Stats 是一次遍历的计数（只在遍历所在 goroutine 内更新）。
type Stats struct {
	Pages          int // 已访问（出队且通过检查）的页面数
	Assets         int // 已产出的静态资源数
	FailedDownload int // 被跳过的下载（页面 + 资源）
	RateLimited    int // 其中因 429 重试耗尽而跳过的
}

// Walk 是一次有状态、不可重启的遍历：visited 集合随迭代被消耗。
type Walk struct {
	c        *Crawler
	base     *url.URL
	maxDepth int

	queue         []queued
	pending       []string
	visitedPages  map[string]struct{}
	visitedAssets map[string]struct{}

	stats Stats
	err   error
}

type queued struct {
	url   string
	depth int
}

// Crawl 准备一次从 baseURL 开始的遍历。baseURL 必须是带 host 的 http(s) URL。
//
// maxDepth<=0 时仍会访问起始页（深度 1），但不再展开其链接。
func (c *Crawler) Crawl(baseURL string, maxDepth int) (*Walk, error) {
	base, err := normalizeURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("非法站点 URL %q：%w", baseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("非法站点 URL %q：必须是带 host 的 http/https 地址", baseURL)
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Walk{
		c:             c,
		base:          base,
		maxDepth:      maxDepth,
		queue:         []queued{{url: base.String(), depth: 1}},
		visitedPages:  map[string]struct{}{},
		visitedAssets: map[string]struct{}{},
	}, nil
}

// Stats 返回当前计数。
func (w *Walk) Stats() Stats { return w.stats }

// Err 返回遍历中的致命错误：起始页不可达（ErrBaseUnreachable）或 ctx 取消。
// 单个页面/资源下载失败不是致命错误。
func (w *Walk) Err() error { return w.err }

// Assets 惰性地产出静态资源。提前 break 后再次 range 会从中断处继续；
// 遍历完成后再 range 不会产出任何内容。
func (w *Walk) Assets(ctx context.Context) iter.Seq[domain.StaticAsset] {
	return func(yield func(domain.StaticAsset) bool) {
		for {
			for len(w.pending) > 0 {
				assetURL := w.pending[0]
				w.pending = w.pending[1:]

				asset, ok := w.fetchAsset(ctx, assetURL)
				if w.err != nil {
					return
				}
				if !ok {
					continue
				}
				if !yield(asset) {
					return
				}
			}

			if len(w.queue) == 0 {
				return
			}
			w.visitNext(ctx)
			if w.err != nil && !IsBaseUnreachable(w.err) {
				return
			}
		}
	}
}

// visitNext 处理队首页面：深度/去重检查、礼貌延迟、下载、链接发现。
// 发现的页面进入队列，发现的静态资源进入 pending。
func (w *Walk) visitNext(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		w.err = err
		return
	}

	item := w.queue[0]
	w.queue = w.queue[1:]

	if item.depth > w.maxDepth {
		return
	}
	if _, ok := w.visitedPages[item.url]; ok {
		return
	}
	w.visitedPages[item.url] = struct{}{}
	w.stats.Pages++

	if err := w.c.pacer.Wait(ctx); err != nil {
		w.err = err
		return
	}

	page, err := w.c.fetch.fetch(ctx, item.url)
	if err != nil {
		w.countFailure(err)
		if ctx.Err() != nil {
			w.err = ctx.Err()
			return
		}
		if item.depth == 1 {
			w.err = &baseError{URL: item.url, Err: err}
		}
		return
	}
	if !isHTML(page.ContentType) {
		return
	}

	pageURL, err := url.Parse(item.url)
	if err != nil {
		return
	}
	found, err := discover(pageURL, page.Body, w.base.Host)
	if err != nil {
		w.c.log.Warn("HTML 解析失败，忽略该页面的链接", "url", item.url, "err", err)
		return
	}

	for _, link := range found.Pages {
		if _, ok := w.visitedPages[link]; ok {
			continue
		}
		w.queue = append(w.queue, queued{url: link, depth: item.depth + 1})
	}
	for _, assetURL := range found.Assets {
		if _, ok := w.visitedAssets[assetURL]; ok {
			continue
		}
		// 立即标记：同一资源在整个爬取中只下载、只产出一次。
		w.visitedAssets[assetURL] = struct{}{}
		w.pending = append(w.pending, assetURL)
	}
}

func (w *Walk) fetchAsset(ctx context.Context, assetURL string) (domain.StaticAsset, bool) {
	res, err := w.c.fetch.fetch(ctx, assetURL)
	if err != nil {
		w.countFailure(err)
		if ctx.Err() != nil {
			w.err = ctx.Err()
		}
		return domain.StaticAsset{}, false
	}
	w.stats.Assets++
	return domain.StaticAsset{URL: assetURL, Content: res.Body, ContentType: res.ContentType}, true
}

func (w *Walk) countFailure(err error) {
	w.stats.FailedDownload++
	if IsTooManyRequests(err) {
		w.stats.RateLimited++
	}
}

// IsBaseUnreachable 判断错误是否为起始页不可达。
func IsBaseUnreachable(err error) bool { return errors.Is(err, ErrBaseUnreachable) }
