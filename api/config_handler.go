package api

import (
	"net/http"

	"github.com/seenimoa/bmrs/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config *config.Config `json:"config"`
}

// handleGetConfig returns the running configuration with secrets masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ConfigResponse{Config: redactConfig(s.cfg)},
	})
}

// handleGetConfigKeys returns the status of all sensitive keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	keys := config.CheckAPIKeys(s.cfg)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    keys,
	})
}

// redactConfig returns a copy of cfg safe to expose over HTTP.
func redactConfig(cfg *config.Config) *config.Config {
	out := *cfg
	out.API.CORSOrigins = append([]string(nil), cfg.API.CORSOrigins...)
	if out.BMRS.APIKey != "" {
		out.BMRS.APIKey = "***"
	}
	if out.Sinks.Postgres.DSN != "" {
		out.Sinks.Postgres.DSN = "***"
	}
	return &out
}
