package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func TestWorkspace_PrepareClearsLeftovers(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), ".data"))
	if err := w.Prepare(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	writeFile(t, filepath.Join(w.WorkerDir(0), "stale.txt"))

	if err := w.Prepare(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 1 || entries[0].Name() != markerName {
		t.Fatalf("Prepare 后数据目录应只剩标记文件：%v", entries)
	}
}

func TestWorkspace_PrepareAcceptsEmptyDir(t *testing.T) {
	root := t.TempDir()
	if err := New(root).Prepare(); err != nil {
		t.Fatalf("空目录可以直接使用：%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, markerName)); err != nil {
		t.Fatalf("Prepare 应写入标记文件：%v", err)
	}
}

func TestWorkspace_PrepareRefusesForeignDir(t *testing.T) {
	home := t.TempDir()
	precious := filepath.Join(home, "project", "precious.txt")
	writeFile(t, precious)

	// data_dir: .. 在 <home>/project 下解析为 <home>。
	w := New(filepath.Join(home, "project", ".."))
	if err := w.Prepare(); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("期望 ErrNotOwned，实际 %v", err)
	}
	if err := w.Cleanup(); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("Cleanup 也应拒绝，实际 %v", err)
	}
	if _, err := os.Stat(precious); err != nil {
		t.Fatalf("已有文件不应被删除：%v", err)
	}
	if _, err := os.Stat(filepath.Join(home, markerName)); !os.IsNotExist(err) {
		t.Fatalf("拒绝时不应写入标记文件")
	}
}

func TestWorkspace_PrepareRefusesFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	writeFile(t, root)
	if err := New(root).Prepare(); err == nil {
		t.Fatalf("数据目录是普通文件时应报错")
	}
}

func TestWorkspace_WorkerDirsAreDistinct(t *testing.T) {
	w := New("/tmp/run/.data")
	seen := map[string]bool{}
	for i := 0; i < 12; i++ {
		d := w.WorkerDir(i)
		if filepath.Dir(d) != w.Root {
			t.Fatalf("worker 目录必须位于数据目录下：%s", d)
		}
		if seen[d] {
			t.Fatalf("worker 目录重复：%s", d)
		}
		seen[d] = true
	}
	if got := w.WorkerDir(3); got != filepath.Join("/tmp/run/.data", "worker-03") {
		t.Fatalf("目录命名不符合预期：%s", got)
	}
}

func TestWorkspace_Cleanup(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), ".data"))
	if err := w.Prepare(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := os.MkdirAll(w.WorkerDir(0), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := w.Cleanup(); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(w.Root); !os.IsNotExist(err) {
		t.Fatalf("Cleanup 后数据目录应不存在")
	}
	if err := w.Cleanup(); err != nil {
		t.Fatalf("重复 Cleanup 不应报错：%v", err)
	}
	if err := New("").Cleanup(); err != nil {
		t.Fatalf("空数据目录应直接忽略：%v", err)
	}
}

func TestWorkspace_PrepareRejectsEmptyRoot(t *testing.T) {
	if err := New("").Prepare(); err == nil {
		t.Fatalf("空数据目录应报错")
	}
}
