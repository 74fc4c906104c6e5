// Package vcs 是版本库适配层：通过 git 可执行文件完成克隆、历史查询、
// 稀疏检出与标签查询。
//
// 历史/标签查询失败时返回空结果并记录日志；检出相关失败返回错误，
// 由调用方把对应 commit 视为无法判定。
package vcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/John-Robertt/webappversion/internal/domain"
)

// Git 把仓库操作映射为 git 子命令。
type Git struct {
	Runner Runner
	Logger *slog.Logger
}

func New(r Runner, log *slog.Logger) *Git {
	if r == nil {
		r = ExecRunner{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Git{Runner: r, Logger: log}
}

func (g *Git) log() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// Clone 以 blob-less 部分克隆把 repoURL 克隆到 dir（不检出工作区），
// 并关闭自动 gc（后续大量 checkout 不触发 repack）。
func (g *Git) Clone(ctx context.Context, repoURL, dir string) error {
	if _, err := g.Runner.Run(ctx, "", "clone", "--quiet", "--filter=blob:none", "--no-checkout", repoURL, dir); err != nil {
		g.log().Error("克隆仓库失败", "repo", repoURL, "dir", dir, "err", err)
		return fmt.Errorf("克隆 %s 失败：%w", repoURL, err)
	}
	if _, err := g.Runner.Run(ctx, dir, "config", "gc.auto", "0"); err != nil {
		g.log().Error("设置 gc.auto 失败", "dir", dir, "err", err)
		return fmt.Errorf("配置克隆目录 %s 失败：%w", dir, err)
	}
	g.log().Debug("克隆完成", "repo", repoURL, "dir", dir)
	return nil
}

// FullHistory 返回 HEAD 可达的全部 commit，最新在前。失败时返回空列表。
func (g *Git) FullHistory(ctx context.Context, dir string) []domain.CommitID {
	out, err := g.Runner.Run(ctx, dir, "log", "--format=%H")
	if err != nil {
		g.log().Warn("读取提交历史失败", "dir", dir, "err", err)
		return nil
	}
	return parseCommits(out, g.log())
}

// TouchingCommits 返回修改过 target 的 commit，最新在前。失败时返回空列表。
func (g *Git) TouchingCommits(ctx context.Context, dir, target string) []domain.CommitID {
	out, err := g.Runner.Run(ctx, dir, "log", "--format=%H", "--", target)
	if err != nil {
		g.log().Warn("读取目标目录的提交历史失败", "dir", dir, "target", target, "err", err)
		return nil
	}
	return parseCommits(out, g.log())
}

// MaterializeSparseCheckout 把工作区限制为只检出 target。重复调用是安全的。
func (g *Git) MaterializeSparseCheckout(ctx context.Context, dir, target string) error {
	if _, err := g.Runner.Run(ctx, dir, "sparse-checkout", "init"); err != nil {
		g.log().Warn("sparse-checkout init 失败", "dir", dir, "err", err)
		return err
	}
	if _, err := g.Runner.Run(ctx, dir, "sparse-checkout", "set", "--no-cone", target); err != nil {
		g.log().Warn("sparse-checkout set 失败", "dir", dir, "target", target, "err", err)
		return err
	}
	return nil
}

// MoveToCommit 把工作区切换到 commit。
func (g *Git) MoveToCommit(ctx context.Context, dir string, commit domain.CommitID) error {
	if _, err := g.Runner.Run(ctx, dir, "checkout", "--quiet", "--force", string(commit)); err != nil {
		g.log().Warn("检出 commit 失败", "dir", dir, "commit", commit, "err", err)
		return err
	}
	return nil
}

// TagsAt 返回直接指向 commit 的标签，按名称降序。失败时返回空列表。
func (g *Git) TagsAt(ctx context.Context, dir string, commit domain.CommitID) []string {
	out, err := g.Runner.Run(ctx, dir, "tag", "--points-at", string(commit))
	if err != nil {
		g.log().Warn("读取标签失败", "dir", dir, "commit", commit, "err", err)
		return nil
	}
	tags := splitLines(out)
	sort.Sort(sort.Reverse(sort.StringSlice(tags)))
	return tags
}

func parseCommits(out []byte, log *slog.Logger) []domain.CommitID {
	var ids []domain.CommitID
	for _, line := range splitLines(out) {
		id, ok := domain.ParseCommitID(line)
		if !ok {
			log.Warn("忽略无法识别的 git log 行", "line", line)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func splitLines(out []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
