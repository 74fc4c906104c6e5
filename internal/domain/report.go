package domain

import (
	"time"
)

// Report 是对外稳定输出（report.json / stdout JSON）的结构。
//
// commits/tags 已去重并排序；其余字段用于追溯本次运行。
type Report struct {
	Site       string `json:"site"`
	Repository string `json:"repository"`
	Path       string `json:"path"`

	Extensions []string `json:"extensions"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`

	Commits []CommitID `json:"commits"`
	Tags    []string   `json:"tags"`
}

type ReportSummary struct {
	// SiteAssets 是参与比较的站点指纹数（已按扩展名过滤并去重）。
	SiteAssets int `json:"site_assets"`
	// History 是完整历史的提交数。
	History int `json:"history"`
	// Touching 是触及受跟踪路径的提交数。
	Touching int `json:"touching"`
	// Checked 是真正做过 checkout + 比较的提交数。
	Checked int `json:"checked"`
	// Inconclusive 是因 git/IO 失败而无法判定的提交数（不会被当作一致）。
	Inconclusive int `json:"inconclusive"`
	// Consistent 是最终一致提交数（去重后）。
	Consistent int `json:"consistent"`
	Tags       int `json:"tags"`
	Workers    int `json:"workers"`
}

// Finalize 统一时间为 UTC，保证 nil 切片输出为 []，并由列表计算 summary 中的派生字段。
func (r *Report) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Commits == nil {
		r.Commits = []CommitID{}
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Extensions == nil {
		r.Extensions = []string{}
	}
	r.Summary.Consistent = len(r.Commits)
	r.Summary.Tags = len(r.Tags)
}

// CommitStrings 把提交列表转为字符串（供 CSV 等扁平格式使用）。
func (r Report) CommitStrings() []string {
	out := make([]string, 0, len(r.Commits))
	for _, c := range r.Commits {
		out = append(out, string(c))
	}
	return out
}
