package crawl

import (
	"context"
	"math"
	"time"
)

// RetryPolicy 决定第 attempt 次重试前的等待时间（attempt 从 1 开始）。
//
// 新的退避策略只需实现该接口，不需要修改爬虫本身。
type RetryPolicy interface {
	Delay(attempt int) time.Duration
}

// Exponential 是指数退避：第 n 次重试等待 Base^n 秒。
//
// 例如 Base=2：2s、4s、8s。
type Exponential struct {
	Base float64
}

func (p Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 || p.Base <= 0 {
		return 0
	}
	sec := math.Pow(p.Base, float64(attempt))
	// 防止溢出：超过一小时的退避没有意义。
	if sec > 3600 {
		sec = 3600
	}
	return time.Duration(sec * float64(time.Second))
}

// Constant 每次重试等待固定时长。
type Constant struct {
	Wait time.Duration
}

func (p Constant) Delay(attempt int) time.Duration {
	if attempt < 1 || p.Wait < 0 {
		return 0
	}
	return p.Wait
}

// SleepFunc 阻塞 d；ctx 取消时提前返回 ctx.Err()。
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
