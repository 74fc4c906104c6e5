// Package run 编排一次完整的版本识别：爬取站点 → 读取历史 → 多 worker 扫描 → 汇总报告。
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/webappversion/internal/app"
	"github.com/John-Robertt/webappversion/internal/app/planner"
	"github.com/John-Robertt/webappversion/internal/config"
	"github.com/John-Robertt/webappversion/internal/crawl"
	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/fingerprint"
	"github.com/John-Robertt/webappversion/internal/infra/httpx"
	"github.com/John-Robertt/webappversion/internal/infra/workspace"
	"github.com/John-Robertt/webappversion/internal/scan"
	"github.com/John-Robertt/webappversion/internal/vcs"
)

// Deps 是可替换的外部依赖；零值字段按 EffectiveConfig 构造默认实现。
type Deps struct {
	HTTPClient *http.Client
	Runner     vcs.Runner
	Pacer      crawl.Pacer
	Sleep      crawl.SleepFunc
	Logger     *slog.Logger
}

// Execute 执行一次运行并返回报告。
//
// 单个资源下载失败、单个提交检出失败都会被降级（跳过/无法判定）；
// 只有无法继续的情况才返回 *Error。数据目录的清理由调用方负责（无论成功与否）。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) (domain.Report, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	rep := domain.Report{
		Site:       eff.SiteURL,
		Repository: eff.RepoURL,
		Path:       eff.Target,
		Extensions: eff.Extensions,
		StartedAt:  time.Now(),
	}
	finish := func(err error) (domain.Report, error) {
		rep.FinishedAt = time.Now()
		rep.Finalize()
		return rep, err
	}

	obs.OnStart(eff)

	// 1) 爬取站点（单 goroutine，完成后 SiteHashSet 只读）。
	site, err := crawlSite(ctx, eff, deps, log, obs, &rep)
	if err != nil {
		return finish(err)
	}

	// 2) worker 0 克隆仓库并读取历史。
	ws := workspace.New(eff.DataDir)
	if err := ws.Prepare(); err != nil {
		return finish(fail(ErrCodeWorkspace, err))
	}
	runner := deps.Runner
	if runner == nil {
		runner = vcs.ExecRunner{Binary: eff.GitBinary}
	}
	git := vcs.New(runner, log)

	histStarted := time.Now()
	primary := ws.WorkerDir(0)
	if err := git.Clone(ctx, eff.RepoURL, primary); err != nil {
		return finish(canceledOr(ctx, ErrCodeCloneFailed, err))
	}
	full := git.FullHistory(ctx, primary)
	if len(full) == 0 {
		return finish(canceledOr(ctx, ErrCodeRepoEmpty, fmt.Errorf("仓库 %s 没有可读取的提交历史", eff.RepoURL)))
	}
	touching := onlyKnown(full, git.TouchingCommits(ctx, primary, eff.Target))
	history := domain.NewHistory(full, touching)
	rep.Summary.History = history.Len()
	rep.Summary.Touching = len(touching)
	obs.OnPhaseDone("history", map[string]any{
		"history":  history.Len(),
		"touching": len(touching),
	}, time.Since(histStarted))
	log.Info("提交历史就绪", "history", history.Len(), "touching", len(touching))

	// 3) 切分并准备其余 worker 的克隆（并行）。
	chunks := planner.Split(touching, eff.Workers)
	rep.Summary.Workers = len(chunks)

	cloneStarted := time.Now()
	if err := cloneWorkers(ctx, git, eff.RepoURL, ws, len(chunks)); err != nil {
		return finish(canceledOr(ctx, ErrCodeCloneFailed, err))
	}
	obs.OnPhaseDone("clone", map[string]any{"workers": len(chunks)}, time.Since(cloneStarted))

	// 4) 分发扫描。
	scanStarted := time.Now()
	collector := NewCollector(len(touching), obs)
	scanners := make([]*scan.Scanner, len(chunks))
	for i := range chunks {
		dir := ws.WorkerDir(i)
		if err := git.MaterializeSparseCheckout(ctx, dir, eff.Target); err != nil {
			// 没有稀疏检出时 checkout 会展开整棵树：仍然正确，只是更慢。
			log.Warn("稀疏检出配置失败，将检出完整工作区", "worker", i, "err", err)
		}
		scanners[i] = &scan.Scanner{
			Workspace: vcs.Checkout{Mover: git, Dir: dir, Target: eff.Target},
			Site:      site,
			Filter:    eff.ExtFilter(),
			History:   history,
			Sink:      collector,
			Logger:    log.With("worker", i),
		}
	}
	if err := Distribute(ctx, chunks, scanners); err != nil {
		return finish(canceledOr(ctx, ErrCodeCanceled, err))
	}
	consistent, checked, inconclusive := collector.Snapshot()
	rep.Summary.Checked = checked
	rep.Summary.Inconclusive = inconclusive
	obs.OnPhaseDone("scan", map[string]any{
		"checked":      checked,
		"inconclusive": inconclusive,
		"consistent":   len(consistent),
	}, time.Since(scanStarted))

	// 5) 汇总：去重、按历史顺序排序、解析标签。
	tagsStarted := time.Now()
	out := app.Assemble(ctx, consistent, history.Less, func(ctx context.Context, c domain.CommitID) []string {
		return git.TagsAt(ctx, primary, c)
	})
	rep.Commits = out.Commits
	rep.Tags = out.Tags
	obs.OnPhaseDone("tags", map[string]any{
		"commits": len(out.Commits),
		"tags":    len(out.Tags),
	}, time.Since(tagsStarted))

	if err := ctx.Err(); err != nil {
		return finish(fail(ErrCodeCanceled, err))
	}
	return finish(nil)
}

func crawlSite(ctx context.Context, eff config.EffectiveConfig, deps Deps, log *slog.Logger, obs Observer, rep *domain.Report) (domain.HashSet, error) {
	started := time.Now()

	client := deps.HTTPClient
	if client == nil {
		c, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL, UserAgent: eff.UserAgent, Timeout: eff.Timeout})
		if err != nil {
			return nil, fail(ErrCodeConfigInvalid, err)
		}
		client = c
	}
	pacer := deps.Pacer
	if pacer == nil {
		pacer = crawl.NewPacer(eff.RequestDelay)
	}

	crawler := crawl.New(crawl.Options{
		Client:       client,
		Retry:        retryPolicy(eff),
		MaxRetries:   eff.MaxRetries,
		Pacer:        pacer,
		Sleep:        deps.Sleep,
		MaxBodyBytes: eff.MaxBodyBytes,
		Logger:       log,
	})
	walk, err := crawler.Crawl(eff.SiteURL, eff.MaxDepth)
	if err != nil {
		return nil, fail(ErrCodeConfigInvalid, err)
	}

	filter := eff.ExtFilter()
	site := domain.NewHashSet()
	for asset := range walk.Assets(ctx) {
		tracked := filter.MatchURL(asset.URL)
		obs.OnAsset(asset.URL, tracked)
		if !tracked {
			continue
		}
		site.Add(fingerprint.Sum(asset.Content))
		log.Debug("站点资源已计算指纹", "url", asset.URL)
	}

	st := walk.Stats()
	obs.OnPhaseDone("crawl", map[string]any{
		"pages":        st.Pages,
		"assets":       st.Assets,
		"failed":       st.FailedDownload,
		"rate_limited": st.RateLimited,
		"fingerprints": site.Len(),
	}, time.Since(started))
	log.Info("站点爬取完成", "pages", st.Pages, "assets", st.Assets, "failed", st.FailedDownload, "rate_limited", st.RateLimited, "fingerprints", site.Len())
	if st.RateLimited > 0 {
		log.Warn("部分资源因持续 429 被跳过，可调大 request_delay 后重试", "count", st.RateLimited)
	}

	if err := walk.Err(); err != nil {
		switch {
		case crawl.IsBaseUnreachable(err):
			return nil, fail(ErrCodeSiteUnreachable, err)
		default:
			return nil, canceledOr(ctx, ErrCodeCanceled, err)
		}
	}
	rep.Summary.SiteAssets = site.Len()
	if site.Len() == 0 {
		return nil, fail(ErrCodeNoSiteAssets, fmt.Errorf("站点 %s 上没有找到受跟踪的静态资源", eff.SiteURL))
	}
	return site, nil
}

func retryPolicy(eff config.EffectiveConfig) crawl.RetryPolicy {
	if eff.RetryBackoff == config.BackoffConstant {
		return crawl.Constant{Wait: time.Duration(eff.RetryBase * float64(time.Second))}
	}
	return crawl.Exponential{Base: eff.RetryBase}
}

// cloneWorkers 并行克隆 worker 1..n-1（worker 0 已由调用方克隆）。
func cloneWorkers(ctx context.Context, git *vcs.Git, repoURL string, ws workspace.Workspace, n int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i < n; i++ {
		dir := ws.WorkerDir(i)
		g.Go(func() error {
			return git.Clone(gctx, repoURL, dir)
		})
	}
	return g.Wait()
}

// onlyKnown 保留出现在完整历史中的提交（保持原顺序）。
func onlyKnown(full, touching []domain.CommitID) []domain.CommitID {
	known := make(map[domain.CommitID]struct{}, len(full))
	for _, c := range full {
		known[c] = struct{}{}
	}
	out := make([]domain.CommitID, 0, len(touching))
	for _, c := range touching {
		if _, ok := known[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// canceledOr 在 ctx 已取消时把错误归类为 canceled，否则使用 code。
func canceledOr(ctx context.Context, code string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fail(ErrCodeCanceled, err)
	}
	return fail(code, err)
}
