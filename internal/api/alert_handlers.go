package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FairForge/warden/internal/alerting"
	"github.com/FairForge/warden/internal/rbac"
)

func (s *Server) registerAlertRoutes(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		read := rbac.RequirePermission(rbac.PermAlertRead)
		write := rbac.RequirePermission(rbac.PermAlertWrite)

		r.With(read).Get("/", s.handleListAlerts)

		r.Route("/rules", func(r chi.Router) {
			r.With(read).Get("/", s.handleListAlertRules)
			r.With(write).Post("/", s.handleAddAlertRule)
			r.With(write).Delete("/{rule}", s.handleRemoveAlertRule)
		})

		r.Route("/silences", func(r chi.Router) {
			r.With(read).Get("/", s.handleListSilences)
			r.With(write).Post("/", s.handleCreateSilence)
		})
	})
}

// requireAlerting guards routes when no alert manager is configured
func (s *Server) requireAlerting(w http.ResponseWriter) bool {
	if s.alerts == nil {
		respondError(w, http.StatusNotImplemented, "alerting is not configured")
		return false
	}
	return true
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if !s.requireAlerting(w) {
		return
	}
	alerts := s.alerts.GetAlerts(r.URL.Query().Get("state"))
	respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

func (s *Server) handleListAlertRules(w http.ResponseWriter, r *http.Request) {
	if !s.requireAlerting(w) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rules": s.alerts.ListRuleStatuses()})
}

func (s *Server) handleAddAlertRule(w http.ResponseWriter, r *http.Request) {
	if !s.requireAlerting(w) {
		return
	}

	body, err := readValidatedBody(r, alertRuleSchema)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cfg alerting.RuleConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.alerts.AddRule(cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleRemoveAlertRule(w http.ResponseWriter, r *http.Request) {
	if !s.requireAlerting(w) {
		return
	}
	if err := s.alerts.RemoveRule(chi.URLParam(r, "rule")); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSilences(w http.ResponseWriter, r *http.Request) {
	if !s.requireAlerting(w) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"silences": s.alerts.ListSilences()})
}

func (s *Server) handleCreateSilence(w http.ResponseWriter, r *http.Request) {
	if !s.requireAlerting(w) {
		return
	}

	body, err := readValidatedBody(r, silenceSchema)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		RuleName  string    `json:"rule_name"`
		StartsAt  time.Time `json:"starts_at"`
		EndsAt    time.Time `json:"ends_at"`
		CreatedBy string    `json:"created_by"`
		Comment   string    `json:"comment"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	silence, err := s.alerts.CreateSilence(alerting.SilenceConfig{
		RuleName:  req.RuleName,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		CreatedBy: req.CreatedBy,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, silence)
}
