// Package scan 实现单个 worker 的版本扫描：逐个检出 commit，
// 重新计算受跟踪目录的指纹集合，并与站点指纹集合比较。
package scan

import (
	"context"
	"log/slog"

	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/fingerprint"
)

// Verdict 是单个 commit 的判定结果。
type Verdict int

const (
	// Inconsistent：站点指纹集合不是该 commit 指纹集合的子集。
	Inconsistent Verdict = iota
	// Consistent：站点指纹集合 ⊆ 该 commit 的指纹集合。
	Consistent
	// Inconclusive：检出或读取失败，无法判定（不计入一致）。
	Inconclusive
)

func (v Verdict) String() string {
	switch v {
	case Consistent:
		return "consistent"
	case Inconsistent:
		return "inconsistent"
	case Inconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// Workspace 是 worker 独占的工作区；vcs.Checkout 满足该接口。
type Workspace interface {
	MoveTo(ctx context.Context, commit domain.CommitID) error
	TrackedDir() string
}

// Sink 接收扫描结果；实现必须并发安全（多个 worker 共享同一个 Sink）。
type Sink interface {
	// Consistent 记录一致的 commit（包括经传播得到的 commit）。
	Consistent(commits ...domain.CommitID)
	// Checked 在一个 commit 完成检出 + 比较之后调用一次。
	Checked(commit domain.CommitID, v Verdict)
}

// Scanner 按顺序扫描一个 chunk。一个 Scanner 只属于一个 worker。
type Scanner struct {
	Workspace Workspace
	Site      domain.HashSet
	Filter    domain.ExtFilter
	History   *domain.History
	Sink      Sink
	Logger    *slog.Logger
}

// Scan 逐个处理 chunk 中的 commit。ctx 取消时在两个 commit 之间停止，并返回 ctx.Err()。
//
// 单个 commit 的检出/读取失败不会中止扫描：该 commit 记为 Inconclusive。
func (s *Scanner) Scan(ctx context.Context, chunk []domain.CommitID) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	for _, commit := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}

		v := s.check(ctx, log, commit)
		if v == Consistent {
			s.Sink.Consistent(commit)
			if older := s.History.PropagateOlder(commit); len(older) > 0 {
				log.Debug("向更旧提交传播一致性", "from", commit, "count", len(older))
				s.Sink.Consistent(older...)
			}
		}
		s.Sink.Checked(commit, v)
	}
	return nil
}

func (s *Scanner) check(ctx context.Context, log *slog.Logger, commit domain.CommitID) Verdict {
	if err := s.Workspace.MoveTo(ctx, commit); err != nil {
		log.Warn("检出失败，该提交无法判定", "commit", commit, "err", err)
		return Inconclusive
	}

	set, err := fingerprint.Dir(s.Workspace.TrackedDir(), s.Filter)
	if err != nil {
		log.Warn("计算目录指纹失败，该提交无法判定", "commit", commit, "err", err)
		return Inconclusive
	}

	if s.Site.SubsetOf(set) {
		log.Debug("提交与站点一致", "commit", commit, "files", set.Len())
		return Consistent
	}
	if log.Enabled(ctx, slog.LevelDebug) {
		missing := s.Site.Missing(set)
		log.Debug("提交与站点不一致", "commit", commit, "missing", len(missing), "first_missing", missing[0])
	}
	return Inconsistent
}
