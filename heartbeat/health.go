package heartbeat

import (
	"sync"
	"time"

	"pricecmp/model"
)

// Component names whose level decides the service mode.
const (
	ComponentStore  = "store"
	ComponentSource = "source"
)

// Service modes reported in SystemHealth.Mode.
const (
	ModeNormal     = "normal"
	ModeCachedOnly = "cached_only"
	ModeDegraded   = "degraded"
	ModeCritical   = "critical"
)

// SystemHealthTracker keeps the last reported level of every component.
type SystemHealthTracker struct {
	mu         sync.RWMutex
	components map[string]*model.ComponentHealth
	startedAt  time.Time
}

func NewSystemHealthTracker() *SystemHealthTracker {
	return &SystemHealthTracker{
		components: make(map[string]*model.ComponentHealth),
		startedAt:  time.Now(),
	}
}

func (s *SystemHealthTracker) Update(name string, level model.HealthLevel, msg string) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	comp := s.components[name]
	if comp == nil {
		comp = &model.ComponentHealth{Name: name}
		s.components[name] = comp
	}
	comp.Level, comp.LevelStr = level, level.String()
	comp.LastCheck, comp.Message = now, msg
	if level != model.Healthy {
		comp.FailCount++
		return
	}
	comp.LastHealthy, comp.FailCount = now, 0
}

func (s *SystemHealthTracker) GetComponentLevel(name string) model.HealthLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if comp := s.components[name]; comp != nil {
		return comp.Level
	}
	return model.Healthy
}

// GetHealth reports the worst component level as the overall level.
func (s *SystemHealthTracker) GetHealth() *model.SystemHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overall := model.Healthy
	comps := make(map[string]*model.ComponentHealth, len(s.components))
	for name, comp := range s.components {
		c := *comp
		comps[name] = &c
		overall = max(overall, comp.Level)
	}

	return &model.SystemHealth{
		Overall:    overall,
		OverallStr: overall.String(),
		Components: comps,
		StartedAt:  s.startedAt,
		UptimeSec:  int64(time.Since(s.startedAt).Seconds()),
		Mode:       serviceMode(overall, comps),
	}
}

// serviceMode tells clients what still works. Only a failing aggregation
// service means results come from cached datasets alone; any other
// non-healthy component leaves the mode at degraded.
func serviceMode(overall model.HealthLevel, comps map[string]*model.ComponentHealth) string {
	level := func(name string) model.HealthLevel {
		if c := comps[name]; c != nil {
			return c.Level
		}
		return model.Healthy
	}

	switch {
	case overall == model.Critical:
		return ModeCritical
	case level(ComponentSource) >= model.Degraded:
		return ModeCachedOnly
	case overall > model.Healthy:
		return ModeDegraded
	}
	return ModeNormal
}
