package heartbeat

import (
	"context"
	"fmt"
	"time"

	"pricecmp/model"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

type SessionCounter interface {
	Len() int
}

type CacheProbe interface {
	Enabled() bool
	Healthy() bool
}

const checkTimeout = 5 * time.Second

// StoreCheck reports the persisted store. Without it nothing is remembered,
// so a failure is critical.
func StoreCheck(p Pinger) ComponentChecker {
	return func(ctx context.Context) (model.HealthLevel, string) {
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return model.Critical, fmt.Sprintf("store ping failed: %v", err)
		}
		return model.Healthy, "ok"
	}
}

// SourceCheck reports the aggregation service. Cached datasets still serve
// while it is down.
func SourceCheck(h HealthChecker) ComponentChecker {
	return func(ctx context.Context) (model.HealthLevel, string) {
		ctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			return model.Degraded, fmt.Sprintf("aggregation service unreachable: %v", err)
		}
		return model.Healthy, "ok"
	}
}

// SessionsCheck degrades once open pages reach 90% of max, where the oldest
// start getting evicted.
func SessionsCheck(c SessionCounter, limit int) ComponentChecker {
	return func(context.Context) (model.HealthLevel, string) {
		n := c.Len()
		if limit > 0 && n*10 >= limit*9 {
			return model.Degraded, fmt.Sprintf("%d of %d page sessions open", n, limit)
		}
		return model.Healthy, fmt.Sprintf("%d page sessions open", n)
	}
}

func CacheCheck(c CacheProbe) ComponentChecker {
	return func(context.Context) (model.HealthLevel, string) {
		if !c.Enabled() {
			return model.Healthy, "disabled"
		}
		if !c.Healthy() {
			return model.Unhealthy, "cache inconsistent"
		}
		return model.Healthy, "ok"
	}
}
