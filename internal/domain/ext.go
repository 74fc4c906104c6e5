package domain

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// ExtFilter 是受跟踪的文件扩展名集合（规范化为小写并带前导 '.'）。
//
// 空过滤器表示“所有文件都受跟踪”，这一语义必须保持，不能被解释为“什么都不跟踪”。
type ExtFilter struct {
	exts map[string]struct{}
}

// NewExtFilter 规范化扩展名：去空白、转小写、补齐前导 '.'；空串被忽略。
func NewExtFilter(exts ...string) ExtFilter {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = NormalizeExt(e)
		if e == "" {
			continue
		}
		m[e] = struct{}{}
	}
	return ExtFilter{exts: m}
}

// NormalizeExt 把 "JS" / ".Js" / " .js " 统一为 ".js"。
func NormalizeExt(e string) string {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" || e == "." {
		return ""
	}
	if !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}

func (f ExtFilter) Empty() bool { return len(f.exts) == 0 }

// Match 判断文件名（或路径）的扩展名是否受跟踪。
func (f ExtFilter) Match(name string) bool {
	if len(f.exts) == 0 {
		return true
	}
	_, ok := f.exts[strings.ToLower(path.Ext(name))]
	return ok
}

// MatchURL 按 URL 路径部分的扩展名判断（忽略 query/fragment）。
func (f ExtFilter) MatchURL(raw string) bool {
	if len(f.exts) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return f.Match(u.Path)
}

// List 返回排序后的扩展名列表。
func (f ExtFilter) List() []string {
	out := make([]string, 0, len(f.exts))
	for e := range f.exts {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
