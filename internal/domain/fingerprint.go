package domain

import (
	"encoding/hex"
	"fmt"
	"sort"
)

// FingerprintSize 是指纹的字节长度（256 位摘要）。
const FingerprintSize = 32

// Fingerprint 是规范化内容（去掉 '\r'）的定长摘要；一旦计算出来即不可变。
type Fingerprint [FingerprintSize]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Fingerprint) UnmarshalText(b []byte) error {
	p, err := ParseFingerprint(string(b))
	if err != nil {
		return err
	}
	*f = p
	return nil
}

// ParseFingerprint 解析小写/大写十六进制形式的指纹。
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("非法指纹 %q：%w", s, err)
	}
	if len(b) != FingerprintSize {
		return f, fmt.Errorf("非法指纹 %q：长度 %d，期望 %d", s, len(b), FingerprintSize)
	}
	copy(f[:], b)
	return f, nil
}

// HashSet 是指纹集合。站点侧构建一次后只读；每个提交侧各自构建。
// 只读使用时可以在多个 goroutine 间共享，无需加锁。
type HashSet map[Fingerprint]struct{}

func NewHashSet(fps ...Fingerprint) HashSet {
	s := make(HashSet, len(fps))
	for _, f := range fps {
		s[f] = struct{}{}
	}
	return s
}

func (s HashSet) Add(f Fingerprint) { s[f] = struct{}{} }

func (s HashSet) Has(f Fingerprint) bool {
	_, ok := s[f]
	return ok
}

func (s HashSet) Len() int { return len(s) }

// SubsetOf 判断 s ⊆ other。空集是任何集合的子集。
func (s HashSet) SubsetOf(other HashSet) bool {
	if len(s) > len(other) {
		return false
	}
	for f := range s {
		if _, ok := other[f]; !ok {
			return false
		}
	}
	return true
}

// Missing 返回 s 中不在 other 里的指纹，按十六进制排序（用于日志的稳定输出）。
func (s HashSet) Missing(other HashSet) []Fingerprint {
	var out []Fingerprint
	for f := range s {
		if !other.Has(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
