package domain

import "strings"

// CommitID 是版本库中的提交标识（内容寻址；只能按历史位置排序，不能按字典序）。
type CommitID string

// ParseCommitID 校验 git log 输出的一行；空行返回 false。
func ParseCommitID(s string) (CommitID, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t") {
		return "", false
	}
	return CommitID(s), true
}

// History 是一次运行内不可变的提交历史索引。
//
// 不变量：
// - order 为完整历史，从新到旧；order[i+1] 是 order[i] 的“下一个更旧提交”
// - touching 是触及受跟踪路径的提交子集（TouchingSet）
// - 构建后只读，可被所有 worker 无锁共享
type History struct {
	order    []CommitID
	pos      map[CommitID]int
	touching map[CommitID]struct{}
}

// NewHistory 以完整历史（从新到旧）与 TouchingSet 构建索引。
// full 中的重复提交只保留第一次出现的位置。
func NewHistory(full, touching []CommitID) *History {
	h := &History{
		order:    make([]CommitID, 0, len(full)),
		pos:      make(map[CommitID]int, len(full)),
		touching: make(map[CommitID]struct{}, len(touching)),
	}
	for _, c := range full {
		if _, ok := h.pos[c]; ok {
			continue
		}
		h.pos[c] = len(h.order)
		h.order = append(h.order, c)
	}
	for _, c := range touching {
		h.touching[c] = struct{}{}
	}
	return h
}

func (h *History) Len() int { return len(h.order) }

// Touches 判断提交是否属于 TouchingSet。
func (h *History) Touches(c CommitID) bool {
	_, ok := h.touching[c]
	return ok
}

// Older 返回 c 的下一个更旧提交；c 不在历史中或已是最旧时返回 false。
func (h *History) Older(c CommitID) (CommitID, bool) {
	i, ok := h.pos[c]
	if !ok || i+1 >= len(h.order) {
		return "", false
	}
	return h.order[i+1], true
}

// PropagateOlder 从一个已判定一致的提交出发，只向更旧方向推进，
// 收集连续的“未触及受跟踪路径”的提交；遇到 TouchingSet 中的提交或历史耗尽即停止。
//
// 停止条件必须保持：TouchingSet 中的提交需要各自独立校验。
func (h *History) PropagateOlder(c CommitID) []CommitID {
	var out []CommitID
	next, ok := h.Older(c)
	for ok && !h.Touches(next) {
		out = append(out, next)
		next, ok = h.Older(next)
	}
	return out
}

// Less 是历史顺序比较器：更新的提交排在前面；不在历史中的提交排在最后（按字典序兜底）。
func (h *History) Less(a, b CommitID) bool {
	ia, oka := h.pos[a]
	ib, okb := h.pos[b]
	switch {
	case oka && okb:
		return ia < ib
	case oka:
		return true
	case okb:
		return false
	default:
		return a < b
	}
}
