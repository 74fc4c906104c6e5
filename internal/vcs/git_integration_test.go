package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/John-Robertt/webappversion/internal/domain"
)

var testEnv = []string{
	"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
	"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com",
	"GIT_CONFIG_NOSYSTEM=1", "HOME=" + os.TempDir(),
}

func gitOrSkip(t *testing.T) ExecRunner {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("未找到 git 可执行文件，跳过集成测试")
	}
	return ExecRunner{Env: testEnv}
}

func mustGit(t *testing.T, r ExecRunner, dir string, args ...string) string {
	t.Helper()
	out, err := r.Run(context.Background(), dir, args...)
	if err != nil {
		t.Fatalf("git %v：%v", args, err)
	}
	return string(out)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func commitAll(t *testing.T, r ExecRunner, dir, msg string) domain.CommitID {
	t.Helper()
	mustGit(t, r, dir, "add", "-A")
	mustGit(t, r, dir, "commit", "--quiet", "-m", msg)
	head := mustGit(t, r, dir, "rev-parse", "HEAD")
	id, _ := domain.ParseCommitID(head)
	return id
}

func TestGit_Integration(t *testing.T) {
	r := gitOrSkip(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "src")
	mustGit(t, r, "", "init", "--quiet", src)

	writeFile(t, filepath.Join(src, "web", "app.js"), "v1")
	writeFile(t, filepath.Join(src, "README"), "readme")
	c1 := commitAll(t, r, src, "one")
	mustGit(t, r, src, "tag", "v1.0")

	writeFile(t, filepath.Join(src, "README"), "readme 2")
	c2 := commitAll(t, r, src, "two")

	writeFile(t, filepath.Join(src, "web", "app.js"), "v2")
	c3 := commitAll(t, r, src, "three")
	mustGit(t, r, src, "tag", "v2.0")
	mustGit(t, r, src, "tag", "latest")

	g := New(r, quiet())
	work := filepath.Join(t.TempDir(), "w0")
	if err := g.Clone(ctx, "file://"+src, work); err != nil {
		t.Fatalf("克隆失败：%v", err)
	}

	if got := g.FullHistory(ctx, work); !reflect.DeepEqual(got, []domain.CommitID{c3, c2, c1}) {
		t.Fatalf("FullHistory 不符合预期：%v", got)
	}
	if got := g.TouchingCommits(ctx, work, "web"); !reflect.DeepEqual(got, []domain.CommitID{c3, c1}) {
		t.Fatalf("TouchingCommits 不符合预期：%v", got)
	}

	if err := g.MaterializeSparseCheckout(ctx, work, "web"); err != nil {
		t.Fatalf("sparse-checkout 失败：%v", err)
	}
	if err := g.MaterializeSparseCheckout(ctx, work, "web"); err != nil {
		t.Fatalf("重复 sparse-checkout 应成功：%v", err)
	}

	co := Checkout{Mover: g, Dir: work, Target: "web"}
	if err := co.MoveTo(ctx, c1); err != nil {
		t.Fatalf("检出失败：%v", err)
	}
	b, err := os.ReadFile(filepath.Join(co.TrackedDir(), "app.js"))
	if err != nil || string(b) != "v1" {
		t.Fatalf("检出内容不正确：%q err=%v", b, err)
	}
	if _, err := os.Stat(filepath.Join(work, "README")); !os.IsNotExist(err) {
		t.Fatalf("稀疏检出不应包含目标目录之外的文件")
	}

	if err := co.MoveTo(ctx, "0000000000000000000000000000000000000000"); err == nil {
		t.Fatalf("检出不存在的 commit 应失败")
	}

	if got := g.TagsAt(ctx, work, c3); !reflect.DeepEqual(got, []string{"v2.0", "latest"}) {
		t.Fatalf("TagsAt 不符合预期：%v", got)
	}
	if got := g.TagsAt(ctx, work, c2); len(got) != 0 {
		t.Fatalf("c2 不应有标签：%v", got)
	}
}
