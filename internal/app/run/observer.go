package run

import (
	"time"

	"github.com/John-Robertt/webappversion/internal/config"
	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/scan"
)

// Observer 用于把“运行进度/阶段/提交结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（结构化日志除外）。
// - Observer 的实现必须并发安全：OnCommitDone 来自多个 worker goroutine。
type Observer interface {
	// OnStart 在 Execute 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnAsset 在爬虫产出一个静态资源时调用；tracked 表示其扩展名是否受跟踪。
	OnAsset(url string, tracked bool)
	// OnPhaseDone 在阶段结束时调用（crawl/history/clone/scan/tags）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnCommitDone 在一个提交完成检出 + 比较后调用；done 从 1 开始。
	OnCommitDone(done, total int, commit domain.CommitID, v scan.Verdict)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig)                       {}
func (nopObserver) OnAsset(string, bool)                                 {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration)    {}
func (nopObserver) OnCommitDone(int, int, domain.CommitID, scan.Verdict) {}
