package api

import (
	"context"
	"errors"
	"strings"
	"time"
)

var errSchedulerUnavailable = errors.New("scheduler not available")

type adminOpResult struct {
	Message   string `json:"message"`
	TraceID   string `json:"trace_id"`
	LatencyMs int64  `json:"latency_ms"`
}

func (s *Server) executeAdminCacheClearCore(traceID string) (*adminOpResult, error) {
	start := time.Now()
	traceID = normalizeTraceID(traceID)

	s.cache.Invalidate()
	latency := time.Since(start).Milliseconds()
	res := &adminOpResult{
		Message:   "cache cleared",
		TraceID:   traceID,
		LatencyMs: latency,
	}
	s.logAdminCall("CacheClear", traceID, latency, true, nil)
	return res, nil
}

func (s *Server) executeAdminRefreshCore(ctx context.Context, traceID string) (*adminOpResult, error) {
	start := time.Now()
	traceID = normalizeTraceID(traceID)

	if s.sched == nil {
		err := errSchedulerUnavailable
		s.logAdminCall("Refresh", traceID, time.Since(start).Milliseconds(), false, err)
		return nil, err
	}

	err := s.sched.TriggerRefresh(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		s.logAdminCall("Refresh", traceID, latency, false, err)
		return nil, err
	}

	res := &adminOpResult{
		Message:   "vendor directory refreshed",
		TraceID:   traceID,
		LatencyMs: latency,
	}
	s.logAdminCall("Refresh", traceID, latency, true, nil)
	return res, nil
}

func normalizeTraceID(traceID string) string {
	traceID = strings.TrimSpace(traceID)
	if traceID == "" {
		return genRequestID()
	}
	return traceID
}

func (s *Server) logAdminCall(method, traceID string, latencyMs int64, ok bool, err error) {
	if err != nil {
		s.log.Error("admin call failed",
			"method", method,
			"trace_id", traceID,
			"latency_ms", latencyMs,
			"ok", ok,
			"err", err,
		)
		return
	}

	s.log.Info("admin call served",
		"method", method,
		"trace_id", traceID,
		"latency_ms", latencyMs,
		"ok", ok,
	)
}
