// Package workspace 管理一次运行的临时数据目录：每个 worker 在其中拥有独立的克隆目录。
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/webappversion/internal/infra/fsx"
)

// markerName 标记数据目录由本工具创建；只有带标记的目录才会被清空或删除。
const markerName = ".webappversion-data"

// ErrNotOwned 表示数据目录已存在、非空且没有标记文件，拒绝清空。
var ErrNotOwned = errors.New("数据目录不是由 webappversion 创建的")

// Workspace 是 <data_dir>/ 的布局：
//
//	<data_dir>/.webappversion-data  标记文件
//	<data_dir>/worker-00/   worker 0 的克隆（同时用于读取历史与标签）
//	<data_dir>/worker-01/
//	...
type Workspace struct {
	Root string
}

func New(root string) Workspace {
	return Workspace{Root: filepath.Clean(strings.TrimSpace(root))}
}

// Prepare 创建空的数据目录并写入标记；上次运行残留的内容会被清除。
//
// 已存在的非空目录必须带标记，否则返回 ErrNotOwned 且不做任何修改。
func (w Workspace) Prepare() error {
	if w.Root == "" || w.Root == "." {
		return fmt.Errorf("数据目录不能为空")
	}
	st, err := w.state()
	if err != nil {
		return err
	}
	if st == stateForeign {
		return fmt.Errorf("%w：%q 非空且缺少 %s", ErrNotOwned, w.Root, markerName)
	}
	if st == stateOwned {
		if err := fsx.RemoveTree(w.Root); err != nil {
			return fmt.Errorf("清理数据目录 %q 失败：%w", w.Root, err)
		}
	}
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return fmt.Errorf("创建数据目录 %q 失败：%w", w.Root, err)
	}
	if err := os.WriteFile(filepath.Join(w.Root, markerName), nil, 0o644); err != nil {
		return fmt.Errorf("写入数据目录标记失败：%w", err)
	}
	return nil
}

// WorkerDir 返回第 i 个 worker 的克隆目录（尚未创建；由 git clone 创建）。
func (w Workspace) WorkerDir(i int) string {
	return filepath.Join(w.Root, fmt.Sprintf("worker-%02d", i))
}

// Cleanup 删除整个数据目录；目录不存在不算错误，没有标记的目录原样保留。
func (w Workspace) Cleanup() error {
	if w.Root == "" || w.Root == "." {
		return nil
	}
	st, err := w.state()
	if err != nil {
		return err
	}
	switch st {
	case stateMissing:
		return nil
	case stateOwned:
		return fsx.RemoveTree(w.Root)
	default:
		return fmt.Errorf("%w：%q 缺少 %s，未删除", ErrNotOwned, w.Root, markerName)
	}
}

type rootState int

const (
	stateMissing rootState = iota
	stateEmpty
	stateOwned
	stateForeign
)

func (w Workspace) state() (rootState, error) {
	fi, err := os.Stat(w.Root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return stateMissing, nil
	case err != nil:
		return 0, err
	case !fi.IsDir():
		return 0, fmt.Errorf("数据目录 %q 已存在且不是目录", w.Root)
	}
	if _, err := os.Lstat(filepath.Join(w.Root, markerName)); err == nil {
		return stateOwned, nil
	}
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return stateEmpty, nil
	}
	return stateForeign, nil
}
