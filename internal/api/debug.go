package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"herdroute/internal/buildinfo"
)

// DebugJSON reports build and runtime configuration for operators.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if !s.requireAuth(w, r) {
		return
	}
	info := map[string]any{
		"build":     buildinfo.Info(),
		"time":      time.Now().UTC().Format(time.RFC3339),
		"optimizer": s.Cfg,
		"config": map[string]any{
			"PORT":                os.Getenv("PORT"),
			"CONFIG_PATH":         os.Getenv("CONFIG_PATH"),
			"RATE_RPS":            os.Getenv("RATE_RPS"),
			"RATE_BURST":          os.Getenv("RATE_BURST"),
			"NOTIFY_MAX_ATTEMPTS": os.Getenv("NOTIFY_MAX_ATTEMPTS"),
			"HAS_AUTH_TOKEN":      s.authToken != "",
			"HAS_REDIS_URL":       os.Getenv("REDIS_URL") != "",
			"HAS_NOTIFY_URL":      s.Notify.Enabled(),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
