package crawl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponential_Delay(t *testing.T) {
	p := Exponential{Base: 2}
	want := []time.Duration{0, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Fatalf("attempt=%d：期望 %v，实际 %v", attempt, w, got)
		}
	}
	if got := (Exponential{Base: 3}).Delay(2); got != 9*time.Second {
		t.Fatalf("Base=3 第 2 次重试应等待 9s，实际 %v", got)
	}
	if got := (Exponential{Base: 10}).Delay(100); got != time.Hour {
		t.Fatalf("退避应有上限，实际 %v", got)
	}
	if got := (Exponential{}).Delay(1); got != 0 {
		t.Fatalf("Base=0 不应等待，实际 %v", got)
	}
}

func TestConstant_Delay(t *testing.T) {
	p := Constant{Wait: 500 * time.Millisecond}
	for _, attempt := range []int{1, 2, 7} {
		if got := p.Delay(attempt); got != 500*time.Millisecond {
			t.Fatalf("attempt=%d：期望 500ms，实际 %v", attempt, got)
		}
	}
	if p.Delay(0) != 0 {
		t.Fatalf("attempt=0 不应等待")
	}
}

func TestSleepCtx_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
}
