package planner

import (
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

func TestSplit_LastChunkAbsorbsRemainder(t *testing.T) {
	got := Split(ids("a", "b", "c", "d", "e", "f", "g"), 3)
	want := [][]domain.CommitID{ids("a", "b"), ids("c", "d"), ids("e", "f", "g")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("切分结果不符合预期：\n got=%v\nwant=%v", got, want)
	}
}

func TestSplit_PreservesOrderAndCoverage(t *testing.T) {
	in := ids("1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11")
	for n := 1; n <= 15; n++ {
		chunks := Split(in, n)
		var flat []domain.CommitID
		for i, c := range chunks {
			if len(c) == 0 {
				t.Fatalf("n=%d：第 %d 个 chunk 为空", n, i)
			}
			flat = append(flat, c...)
		}
		if !reflect.DeepEqual(flat, in) {
			t.Fatalf("n=%d：拼接后应与原序列一致：%v", n, flat)
		}
	}
}

func TestSplit_ClampsWorkerCount(t *testing.T) {
	if got := Split(ids("a", "b"), 10); len(got) != 2 {
		t.Fatalf("worker 数超过提交数时应收缩为 %d，实际 %d", 2, len(got))
	}
	if got := Split(ids("a", "b"), 0); len(got) != 1 {
		t.Fatalf("worker 数 <=0 时应按 1 处理，实际 %d", len(got))
	}
	if got := Split(nil, 4); got != nil {
		t.Fatalf("空输入应返回 nil：%v", got)
	}
}

func TestSplit_ChunksDoNotAlias(t *testing.T) {
	chunks := Split(ids("a", "b", "c", "d"), 2)
	chunks[0] = append(chunks[0], "x")
	if chunks[1][0] != "c" {
		t.Fatalf("向一个 chunk 追加不应覆盖相邻 chunk：%v", chunks[1])
	}
}

func TestWorkers(t *testing.T) {
	cases := []struct{ total, req, want int }{
		{0, 5, 0},
		{10, 0, 1},
		{10, -1, 1},
		{10, 4, 4},
		{3, 10, 3},
	}
	for _, c := range cases {
		if got := Workers(c.total, c.req); got != c.want {
			t.Fatalf("Workers(%d,%d)=%d，期望 %d", c.total, c.req, got, c.want)
		}
	}
}
