package app

import (
	"context"
	"sort"

	"github.com/John-Robertt/webappversion/internal/domain"
)

// TagsFunc 解析直接指向 commit 的标签。
type TagsFunc func(ctx context.Context, commit domain.CommitID) []string

// Assembled 是报告的核心内容：去重、排序后的一致提交及其标签。
type Assembled struct {
	Commits []domain.CommitID
	Tags    []string
}

// Assemble 对 ConsistentSet 去重，用 less 排序，再逐个解析标签。
//
// - less 为 nil 时按提交 ID 字典序
// - 所有提交的标签合并去重后，整体按字符串降序排列
// - tagsAt 为 nil 时不解析标签
func Assemble(ctx context.Context, consistent []domain.CommitID, less func(a, b domain.CommitID) bool, tagsAt TagsFunc) Assembled {
	seen := make(map[domain.CommitID]struct{}, len(consistent))
	commits := make([]domain.CommitID, 0, len(consistent))
	for _, c := range consistent {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		commits = append(commits, c)
	}

	if less == nil {
		less = func(a, b domain.CommitID) bool { return a < b }
	}
	sort.SliceStable(commits, func(i, j int) bool { return less(commits[i], commits[j]) })

	tags := make([]string, 0)
	if tagsAt != nil {
		seenTag := make(map[string]struct{})
		for _, c := range commits {
			if ctx.Err() != nil {
				break
			}
			for _, tag := range tagsAt(ctx, c) {
				if _, ok := seenTag[tag]; ok {
					continue
				}
				seenTag[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
		sort.Sort(sort.Reverse(sort.StringSlice(tags)))
	}
	return Assembled{Commits: commits, Tags: tags}
}
