package app

import (
	"context"
	"reflect"
	"testing"

	"github.com/John-Robertt/webappversion/internal/domain"
)

func ids(xs ...string) []domain.CommitID {
	out := make([]domain.CommitID, 0, len(xs))
	for _, x := range xs {
		out = append(out, domain.CommitID(x))
	}
	return out
}

func TestAssemble_DedupeAndHistoryOrder(t *testing.T) {
	h := domain.NewHistory(ids("c5", "c4", "c3", "c2", "c1"), nil)
	tags := map[domain.CommitID][]string{
		"c4": {"v2.0", "latest"},
		"c2": {"v1.1", "latest"},
	}
	var asked []domain.CommitID
	tagsAt := func(ctx context.Context, c domain.CommitID) []string {
		asked = append(asked, c)
		return tags[c]
	}

	got := Assemble(context.Background(), ids("c2", "c4", "c3", "c2", "c4"), h.Less, tagsAt)

	if !reflect.DeepEqual(got.Commits, ids("c4", "c3", "c2")) {
		t.Fatalf("提交应去重并按历史顺序（新在前）排列：%v", got.Commits)
	}
	if !reflect.DeepEqual(got.Tags, []string{"v2.0", "v1.1", "latest"}) {
		t.Fatalf("标签应去重并整体降序：%v", got.Tags)
	}
	if !reflect.DeepEqual(asked, ids("c4", "c3", "c2")) {
		t.Fatalf("每个提交只应查询一次标签：%v", asked)
	}
}

func TestAssemble_TagsSortedAcrossCommits(t *testing.T) {
	h := domain.NewHistory(ids("new", "old"), nil)
	tags := map[domain.CommitID][]string{
		"new": {"v1.0"},
		"old": {"v1.1"},
	}
	got := Assemble(context.Background(), ids("old", "new"), h.Less, func(ctx context.Context, c domain.CommitID) []string {
		return tags[c]
	})
	if !reflect.DeepEqual(got.Commits, ids("new", "old")) {
		t.Fatalf("提交应按历史顺序：%v", got.Commits)
	}
	if !reflect.DeepEqual(got.Tags, []string{"v1.1", "v1.0"}) {
		t.Fatalf("标签顺序不随提交顺序，应整体降序：%v", got.Tags)
	}
}

func TestAssemble_DefaultOrderAndNoTags(t *testing.T) {
	got := Assemble(context.Background(), ids("b", "a", "b"), nil, nil)
	if !reflect.DeepEqual(got.Commits, ids("a", "b")) {
		t.Fatalf("默认应按 ID 字典序：%v", got.Commits)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Fatalf("无标签时应返回空切片而不是 nil：%#v", got.Tags)
	}
}

func TestAssemble_Empty(t *testing.T) {
	got := Assemble(context.Background(), nil, nil, func(context.Context, domain.CommitID) []string {
		t.Fatalf("没有提交时不应查询标签")
		return nil
	})
	if len(got.Commits) != 0 || len(got.Tags) != 0 {
		t.Fatalf("空输入应得到空结果：%+v", got)
	}
}
