// Package fingerprint 计算规范化内容指纹：去掉所有 '\r' 后做 SHA3-256。
//
// 去掉 '\r' 的目的只有一个：不同换行约定（CRLF/LF）的检出结果与站点内容能够得到相同指纹。
package fingerprint

import (
	"bytes"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/John-Robertt/webappversion/internal/domain"
)

// StripCR 返回去掉所有 '\r' 字节后的内容；不含 '\r' 时直接返回原切片。
func StripCR(b []byte) []byte {
	if bytes.IndexByte(b, '\r') < 0 {
		return b
	}
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != '\r' {
			out = append(out, c)
		}
	}
	return out
}

// Sum 计算 b 的指纹。纯函数；空输入合法。
func Sum(b []byte) domain.Fingerprint {
	return domain.Fingerprint(sha3.Sum256(StripCR(b)))
}

// SumReader 以流式方式计算指纹（用于大文件），语义与 Sum 完全一致。
func SumReader(r io.Reader) (domain.Fingerprint, error) {
	h := sha3.New256()
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = h.Write(StripCR(buf[:n]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.Fingerprint{}, err
		}
	}
	var f domain.Fingerprint
	copy(f[:], h.Sum(nil))
	return f, nil
}
