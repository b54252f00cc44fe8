package api

import (
	"net/http"
	"time"

	"pricecmp/internal/version"
)

type statusResponse struct {
	Version     string     `json:"version"`
	Commit      string     `json:"commit"`
	BuildTime   string     `json:"build_time"`
	Sessions    int        `json:"sessions"`
	Mode        string     `json:"mode"`
	Health      string     `json:"health"`
	UptimeSec   int64      `json:"uptime_sec"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
	Locale      string     `json:"locale"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buildStatus())
}

func (s *Server) buildStatus() statusResponse {
	health := s.heartbeat.GetHealth()
	resp := statusResponse{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildTime: version.BuildTime,
		Sessions:  s.pages.Len(),
		Mode:      health.Mode,
		Health:    health.OverallStr,
		UptimeSec: health.UptimeSec,
		Locale:    s.locale.String(),
	}
	if s.sched != nil {
		if t := s.sched.LastRefresh(); !t.IsZero() {
			resp.LastRefresh = &t
		}
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.heartbeat.GetHealth()

	status := http.StatusOK
	if health.Overall > 1 {
		status = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status": health.OverallStr,
		"uptime": health.UptimeSec,
		"mode":   health.Mode,
	}

	components := make(map[string]string)
	for name, comp := range health.Components {
		components[name] = comp.LevelStr
	}
	resp["components"] = components

	writeJSON(w, status, resp)
}

func (s *Server) handleAdminCacheClear(w http.ResponseWriter, r *http.Request) {
	res, err := s.executeAdminCacheClearCore(r.Header.Get("X-Trace-Id"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.executeAdminRefreshCore(r.Context(), r.Header.Get("X-Trace-Id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
