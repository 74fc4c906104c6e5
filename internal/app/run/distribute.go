package run

import (
	"context"
	"fmt"
	"sync"

	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/scan"
)

// Collector 是所有 worker 共享的结果汇总：ConsistentSet 与进度计数。
// 所有修改都在 mu 保护下进行；它实现 scan.Sink。
type Collector struct {
	mu sync.Mutex

	consistent   []domain.CommitID
	done         int
	total        int
	inconclusive int

	obs Observer
}

// NewCollector 创建汇总器；total 是需要检出比较的提交总数（用于进度事件）。
func NewCollector(total int, obs Observer) *Collector {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Collector{total: total, obs: obs}
}

func (c *Collector) Consistent(commits ...domain.CommitID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consistent = append(c.consistent, commits...)
}

func (c *Collector) Checked(commit domain.CommitID, v scan.Verdict) {
	c.mu.Lock()
	c.done++
	if v == scan.Inconclusive {
		c.inconclusive++
	}
	done, total := c.done, c.total
	c.mu.Unlock()

	// 回调在锁外执行。
	c.obs.OnCommitDone(done, total, commit, v)
}

// Snapshot 返回当前 ConsistentSet 的副本（可能含重复，由报告阶段去重）及计数。
func (c *Collector) Snapshot() (consistent []domain.CommitID, checked, inconclusive int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CommitID(nil), c.consistent...), c.done, c.inconclusive
}

// Distribute 为每个 chunk 启动一个 worker：第 i 个 chunk 只由 scanners[i] 扫描，
// 因此每个工作区只会被一个 goroutine 使用。全部 worker 结束后返回。
//
// 返回第一个非 nil 的 worker 错误（目前只有 ctx 取消）。
func Distribute(ctx context.Context, chunks [][]domain.CommitID, scanners []*scan.Scanner) error {
	if len(chunks) != len(scanners) {
		return fmt.Errorf("chunk 数（%d）与 scanner 数（%d）不一致", len(chunks), len(scanners))
	}

	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = scanners[i].Scan(ctx, chunks[i])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
