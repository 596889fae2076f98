package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixed(name string, s Status) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		return Result{Status: s, Message: s.String()}
	})
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("cache", StatusHealthy))
	agg.Register(fixed("upstream.eastmoney", StatusDegraded))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results["upstream.eastmoney"].Status != StatusDegraded {
		t.Errorf("upstream status = %v", results["upstream.eastmoney"].Status)
	}
	if results["cache"].Timestamp.IsZero() {
		t.Error("results should be stamped")
	}
	if got := OverallStatus(results); got != StatusDegraded {
		t.Errorf("OverallStatus = %v, want degraded", got)
	}
}

func TestAggregator_RegisterReplaces(t *testing.T) {
	agg := NewAggregator()
	agg.Register(fixed("cache", StatusUnhealthy))
	agg.Register(fixed("memory", StatusHealthy))
	agg.Register(fixed("cache", StatusHealthy))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "cache" || names[1] != "memory" {
		t.Fatalf("names = %v", names)
	}
	if got := OverallStatus(agg.CheckAll(context.Background())); got != StatusHealthy {
		t.Errorf("OverallStatus = %v, replaced checker still counted", got)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		time.Sleep(time.Second)
		return Healthy("late")
	}))

	res, err := agg.Check(context.Background(), "slow")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusUnhealthy || !errors.Is(res.Error, ErrCheckTimeout) {
		t.Fatalf("result = %+v, want timeout", res)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "nope")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Fatalf("err = %v, want ErrCheckerNotFound", err)
	}
}

func TestOverallStatus_Empty(t *testing.T) {
	if got := OverallStatus(nil); got != StatusHealthy {
		t.Errorf("OverallStatus(nil) = %v", got)
	}
}
