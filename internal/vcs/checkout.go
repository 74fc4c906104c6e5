package vcs

import (
	"context"
	"path/filepath"

	"github.com/John-Robertt/webappversion/internal/domain"
)

// Mover 是切换工作区到某个 commit 的能力；*Git 满足该接口。
type Mover interface {
	MoveToCommit(ctx context.Context, dir string, commit domain.CommitID) error
}

// Checkout 是单个 worker 独占的工作区句柄。
type Checkout struct {
	Mover  Mover
	Dir    string // 克隆目录
	Target string // 仓库内受跟踪路径（相对路径，使用 /）
}

// MoveTo 把该工作区切换到 commit。
func (c Checkout) MoveTo(ctx context.Context, commit domain.CommitID) error {
	return c.Mover.MoveToCommit(ctx, c.Dir, commit)
}

// TrackedDir 返回受跟踪路径在本地文件系统上的位置。
func (c Checkout) TrackedDir() string {
	return filepath.Join(c.Dir, filepath.FromSlash(c.Target))
}
