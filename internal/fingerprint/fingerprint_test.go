package fingerprint

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/crypto/sha3"
)

func TestSum_StripCRIdempotent(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte(""),
		[]byte("\r"),
		[]byte("a\r\nb\r\n"),
		[]byte("no carriage return"),
		[]byte("\r\r\rx\r"),
	}
	for _, x := range cases {
		if Sum(StripCR(x)) != Sum(x) {
			t.Fatalf("fingerprint(strip_CR(x)) != fingerprint(x)，x=%q", x)
		}
	}
}

func TestSum_LineEndingsEqual(t *testing.T) {
	if Sum([]byte("a\r\nb\r\n")) != Sum([]byte("a\nb\n")) {
		t.Fatalf("CRLF 与 LF 内容应得到相同指纹")
	}
	if Sum([]byte("a\nb")) == Sum([]byte("a\nc")) {
		t.Fatalf("不同内容不应得到相同指纹")
	}
}

func TestSum_EmptyIsSHA3OfEmpty(t *testing.T) {
	want := sha3.Sum256(nil)
	if got := Sum(nil); got != want {
		t.Fatalf("空输入指纹不正确：%x", got)
	}
	if got := Sum([]byte("\r\r")); got != want {
		t.Fatalf("只含 '\\r' 的输入规范化后应等同空输入：%x", got)
	}
}

func TestSumReader_MatchesSum(t *testing.T) {
	// 跨越缓冲区边界的大内容。
	content := []byte(strings.Repeat("line\r\n", 20000))
	got, err := SumReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got != Sum(content) {
		t.Fatalf("SumReader 与 Sum 结果不一致")
	}
}

func TestStripCR_NoCopyWhenClean(t *testing.T) {
	b := []byte("clean")
	if out := StripCR(b); &out[0] != &b[0] {
		t.Fatalf("不含 '\\r' 时不应复制")
	}
}
