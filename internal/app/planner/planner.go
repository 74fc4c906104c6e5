package planner

import "github.com/John-Robertt/webappversion/internal/domain"

// Split 把 commits 切成 n 个连续、保序的 chunk：每块 len/n 个，最后一块吸收余数。
//
// n 被限制在 [1, len(commits)]：不会产生空 chunk，也就不会启动空闲 worker。
// commits 为空时返回 nil。
func Split(commits []domain.CommitID, n int) [][]domain.CommitID {
	if len(commits) == 0 {
		return nil
	}
	n = Workers(len(commits), n)

	size := len(commits) / n
	chunks := make([][]domain.CommitID, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(commits)
		}
		chunks = append(chunks, commits[start:end:end])
	}
	return chunks
}

// Workers 返回实际使用的 worker 数：requested 被限制在 [1, total]（total 为 0 时返回 0）。
func Workers(total, requested int) int {
	if total <= 0 {
		return 0
	}
	if requested < 1 {
		return 1
	}
	if requested > total {
		return total
	}
	return requested
}
