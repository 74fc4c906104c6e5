package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/webappversion/internal/app/run"
	"github.com/John-Robertt/webappversion/internal/config"
	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/scan"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出；
// 扫描阶段长时间没有提交完成时，定期输出一行 keepalive。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	assets  int
	tracked int

	workers      int
	total        int
	done         int
	consistent   int
	inconclusive int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] webappversion\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  site: %s\n", truncate(eff.SiteURL, 120))
	fmt.Fprintf(p.w, "  repo: %s\n", truncate(eff.RepoURL, 120))
	fmt.Fprintf(p.w, "  path: %s\n", eff.Target)
	fmt.Fprintf(p.w, "  extensions: %s\n", formatExtensions(eff.Extensions))
	fmt.Fprintf(p.w, "  depth: %d  workers: %d  delay: %s\n", eff.MaxDepth, eff.Workers, eff.RequestDelay)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnAsset(u string, tracked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.assets++
	if tracked {
		p.tracked++
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "crawl":
		fmt.Fprintf(p.w, "爬取: pages=%d assets=%d tracked=%d failed=%d fingerprints=%d (%s)\n",
			intField(fields, "pages"), p.assets, p.tracked,
			intField(fields, "failed"), intField(fields, "fingerprints"), formatShortDuration(dur),
		)
	case "history":
		p.total = intField(fields, "touching")
		fmt.Fprintf(p.w, "历史: commits=%d touching=%d (%s)\n",
			intField(fields, "history"), p.total, formatShortDuration(dur),
		)
	case "clone":
		p.workers = intField(fields, "workers")
		fmt.Fprintf(p.w, "克隆: workers=%d (%s)\n\n", p.workers, formatShortDuration(dur))
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "scan":
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "\n扫描: checked=%d consistent=%d inconclusive=%d (%s)\n",
			intField(fields, "checked"), intField(fields, "consistent"),
			intField(fields, "inconclusive"), formatShortDuration(dur),
		)
	case "tags":
		fmt.Fprintf(p.w, "汇总: commits=%d tags=%d (%s)\n",
			intField(fields, "commits"), intField(fields, "tags"), formatShortDuration(dur),
		)
	default:
		// 未知阶段也不要静默。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnCommitDone(done, total int, commit domain.CommitID, v scan.Verdict) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	p.total = total
	switch v {
	case scan.Consistent:
		p.consistent++
	case scan.Inconclusive:
		p.inconclusive++
	}

	fmt.Fprintf(p.w, "%s %s %s\n", formatProgress(done, total), shortCommit(commit), strings.ToUpper(v.String()))
	p.lastPrinted = time.Now()

	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// Close 停止 keepalive；运行提前失败时由调用方保证调用。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	stop := p.stopCh
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "%s consistent=%d inconclusive=%d elapsed=%s\n",
						formatProgress(p.done, p.total), p.consistent, p.inconclusive,
						formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// formatProgress 输出 "Progress: n/total commits (p%)"。
func formatProgress(done, total int) string {
	pct := 100
	if total > 0 {
		pct = done * 100 / total
	}
	return fmt.Sprintf("Progress: %d/%d commits (%d%%)", done, total, pct)
}

func shortCommit(c domain.CommitID) string {
	s := string(c)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func formatExtensions(exts []string) string {
	if len(exts) == 0 {
		return "（全部）"
	}
	return strings.Join(exts, " ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
