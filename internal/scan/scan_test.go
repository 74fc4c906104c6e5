package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/John-Robertt/webappversion/internal/domain"
	"github.com/John-Robertt/webappversion/internal/fingerprint"
)

// fakeWorkspace 把每个 commit 的文件快照写入临时目录，模拟 git checkout。
type fakeWorkspace struct {
	t     *testing.T
	dir   string
	snaps map[domain.CommitID]map[string]string
	fail  map[domain.CommitID]bool
	moves []domain.CommitID
}

func (w *fakeWorkspace) MoveTo(ctx context.Context, c domain.CommitID) error {
	w.moves = append(w.moves, c)
	if w.fail[c] {
		return errors.New("checkout failed")
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.t.Fatalf("清理工作区失败：%v", err)
	}
	for name, content := range w.snaps[c] {
		p := filepath.Join(w.dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			w.t.Fatalf("创建目录失败：%v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			w.t.Fatalf("写文件失败：%v", err)
		}
	}
	return nil
}

func (w *fakeWorkspace) TrackedDir() string { return w.dir }

type recordSink struct {
	mu         sync.Mutex
	consistent []domain.CommitID
	checked    map[domain.CommitID]Verdict
}

func (s *recordSink) Consistent(cs ...domain.CommitID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consistent = append(s.consistent, cs...)
}

func (s *recordSink) Checked(c domain.CommitID, v Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checked == nil {
		s.checked = map[domain.CommitID]Verdict{}
	}
	s.checked[c] = v
}

func ids(xs ...string) []domain.CommitID {
	out := make([]domain.CommitID, 0, len(xs))
	for _, x := range xs {
		out = append(out, domain.CommitID(x))
	}
	return out
}

func siteSet(contents ...string) domain.HashSet {
	s := domain.NewHashSet()
	for _, c := range contents {
		s.Add(fingerprint.Sum([]byte(c)))
	}
	return s
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestScan_SubsetMatchAndPropagation(t *testing.T) {
	ws := &fakeWorkspace{
		t:   t,
		dir: filepath.Join(t.TempDir(), "web"),
		snaps: map[domain.CommitID]map[string]string{
			"c4": {"app.js": "A", "site.css": "B", "extra.js": "C"},
			"c2": {"app.js": "A", "site.css": "D"},
		},
	}
	sink := &recordSink{}
	s := &Scanner{
		Workspace: ws,
		Site:      siteSet("A", "B"),
		History:   domain.NewHistory(ids("c5", "c4", "c3", "c2", "c1"), ids("c4", "c2")),
		Sink:      sink,
		Logger:    quiet(),
	}

	if err := s.Scan(context.Background(), ids("c4", "c2")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if !reflect.DeepEqual(sink.consistent, ids("c4", "c3")) {
		t.Fatalf("期望 c4 一致并传播到 c3，实际 %v", sink.consistent)
	}
	if !reflect.DeepEqual(ws.moves, ids("c4", "c2")) {
		t.Fatalf("传播得到的提交不应被检出：%v", ws.moves)
	}
	if sink.checked["c4"] != Consistent || sink.checked["c2"] != Inconsistent {
		t.Fatalf("判定结果不正确：%v", sink.checked)
	}
}

func TestScan_PropagatesOnlyTowardOlder(t *testing.T) {
	ws := &fakeWorkspace{
		t:     t,
		dir:   filepath.Join(t.TempDir(), "web"),
		snaps: map[domain.CommitID]map[string]string{"c2": {"a.js": "h1", "b.css": "h2", "c.js": "h3"}},
	}
	sink := &recordSink{}
	s := &Scanner{
		Workspace: ws,
		Site:      siteSet("h1", "h2"),
		History:   domain.NewHistory(ids("c3", "c2", "c1"), ids("c2")),
		Sink:      sink,
		Logger:    quiet(),
	}
	if err := s.Scan(context.Background(), ids("c2")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !reflect.DeepEqual(sink.consistent, ids("c2", "c1")) {
		t.Fatalf("只应向更旧方向传播：%v", sink.consistent)
	}
}

func TestScan_MoveFailureIsInconclusive(t *testing.T) {
	ws := &fakeWorkspace{
		t:     t,
		dir:   filepath.Join(t.TempDir(), "web"),
		snaps: map[domain.CommitID]map[string]string{"c1": {"a.js": "A"}},
		fail:  map[domain.CommitID]bool{"c2": true},
	}
	sink := &recordSink{}
	s := &Scanner{
		Workspace: ws,
		Site:      siteSet("A"),
		History:   domain.NewHistory(ids("c2", "c1"), ids("c2", "c1")),
		Sink:      sink,
		Logger:    quiet(),
	}
	if err := s.Scan(context.Background(), ids("c2", "c1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if sink.checked["c2"] != Inconclusive {
		t.Fatalf("检出失败应判为无法判定：%v", sink.checked["c2"])
	}
	if !reflect.DeepEqual(sink.consistent, ids("c1")) {
		t.Fatalf("检出失败后应继续扫描后续提交：%v", sink.consistent)
	}
}

func TestScan_ExtensionFilter(t *testing.T) {
	ws := &fakeWorkspace{
		t:     t,
		dir:   filepath.Join(t.TempDir(), "web"),
		snaps: map[domain.CommitID]map[string]string{"c1": {"a.js": "A", "notes.md": "M"}},
	}
	sink := &recordSink{}
	s := &Scanner{
		Workspace: ws,
		Site:      siteSet("A", "M"),
		Filter:    domain.NewExtFilter("js"),
		History:   domain.NewHistory(ids("c1"), ids("c1")),
		Sink:      sink,
		Logger:    quiet(),
	}
	if err := s.Scan(context.Background(), ids("c1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if sink.checked["c1"] != Inconsistent {
		t.Fatalf("被扩展名过滤掉的文件不应参与比较：%v", sink.checked["c1"])
	}
}

func TestScan_MissingTrackedDirIsInconsistent(t *testing.T) {
	ws := &fakeWorkspace{t: t, dir: filepath.Join(t.TempDir(), "web")}
	sink := &recordSink{}
	s := &Scanner{
		Workspace: ws,
		Site:      siteSet("A"),
		History:   domain.NewHistory(ids("c1"), ids("c1")),
		Sink:      sink,
		Logger:    quiet(),
	}
	if err := s.Scan(context.Background(), ids("c1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if sink.checked["c1"] != Inconsistent || len(sink.consistent) != 0 {
		t.Fatalf("目标目录不存在时应判为不一致：%v %v", sink.checked, sink.consistent)
	}
}

func TestScan_ContextCanceled(t *testing.T) {
	ws := &fakeWorkspace{t: t, dir: filepath.Join(t.TempDir(), "web")}
	sink := &recordSink{}
	s := &Scanner{
		Workspace: ws,
		Site:      siteSet("A"),
		History:   domain.NewHistory(ids("c1"), ids("c1")),
		Sink:      sink,
		Logger:    quiet(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Scan(ctx, ids("c1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if len(ws.moves) != 0 {
		t.Fatalf("取消后不应再检出")
	}
}

func TestVerdict_String(t *testing.T) {
	if Consistent.String() != "consistent" || Inconsistent.String() != "inconsistent" || Inconclusive.String() != "inconclusive" {
		t.Fatalf("Verdict 字符串不正确")
	}
}
