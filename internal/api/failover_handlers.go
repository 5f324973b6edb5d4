package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/FairForge/warden/internal/failover"
	"github.com/FairForge/warden/internal/rbac"
)

func (s *Server) registerFailoverRoutes(r chi.Router) {
	r.Route("/failover", func(r chi.Router) {
		r.With(rbac.RequirePermission(rbac.PermFailoverRead)).Get("/enabled", s.handleGetEnabled)
		r.With(rbac.RequirePermission(rbac.PermFailoverWrite)).Put("/enabled", s.handleSetEnabled)
	})

	r.Route("/services", func(r chi.Router) {
		r.With(rbac.RequirePermission(rbac.PermFailoverRead)).Get("/", s.handleListServices)
		r.With(rbac.RequirePermission(rbac.PermServiceAdmin)).Post("/", s.handleRegisterService)

		r.Route("/{service}", func(r chi.Router) {
			read := rbac.RequirePermission(rbac.PermFailoverRead)
			write := rbac.RequirePermission(rbac.PermFailoverWrite)
			admin := rbac.RequirePermission(rbac.PermServiceAdmin)

			r.With(read).Get("/", s.handleGetService)
			r.With(admin).Put("/", s.handleUpdateService)
			r.With(admin).Delete("/", s.handleUnregisterService)

			r.With(read).Get("/status", s.handleServiceStatus)
			r.With(read).Get("/primary", s.handleGetPrimary)
			r.With(read).Get("/standbys", s.handleListStandbys)
			r.With(read).Get("/history", s.handleHistory)

			r.With(write).Post("/failover", s.handleFailover)
			r.With(write).Put("/enabled", s.handleSetServiceEnabled)

			r.Route("/nodes", func(r chi.Router) {
				r.With(read).Get("/", s.handleListNodes)
				r.With(admin).Post("/", s.handleAddNode)
				r.With(read).Get("/{node}", s.handleGetNode)
				r.With(admin).Delete("/{node}", s.handleRemoveNode)
				r.With(write).Post("/{node}/promote", s.handlePromote)
				r.With(write).Post("/{node}/demote", s.handleDemote)
			})
		})
	})
}

// failoverStatus maps manager errors onto HTTP statuses
func failoverStatus(err error) int {
	switch {
	case errors.Is(err, failover.ErrServiceNotFound), errors.Is(err, failover.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, failover.ErrServiceExists), errors.Is(err, failover.ErrNodeExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"services": s.manager.ListServices(),
	})
}

func (s *Server) handleRegisterService(w http.ResponseWriter, r *http.Request) {
	body, err := readValidatedBody(r, serviceConfigSchema)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cfg failover.ServiceConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.manager.RegisterService(cfg); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.manager.GetServiceConfig(chi.URLParam(r, "service"))
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	body, err := readValidatedBody(r, serviceConfigSchema)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cfg failover.ServiceConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if cfg.ServiceName != chi.URLParam(r, "service") {
		respondError(w, http.StatusBadRequest, "service name in body does not match URL")
		return
	}
	if err := s.manager.UpdateServiceConfig(cfg); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUnregisterService(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.UnregisterService(chi.URLParam(r, "service")); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	status, err := s.manager.ServiceStatus(service)
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"service": service,
		"status":  string(status),
	})
}

func (s *Server) handleGetPrimary(w http.ResponseWriter, r *http.Request) {
	node, err := s.manager.GetPrimary(chi.URLParam(r, "service"))
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, node)
}

func (s *Server) handleListStandbys(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.manager.ListStandbys(chi.URLParam(r, "service"))
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"standbys": nodes})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	history, err := s.manager.GetFailoverHistory(chi.URLParam(r, "service"), limit)
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": history})
}

func (s *Server) handleFailover(w http.ResponseWriter, r *http.Request) {
	body, err := readValidatedBody(r, failoverRequestSchema)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		TargetNodeID string `json:"target_node_id"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	service := chi.URLParam(r, "service")
	var ok bool
	if req.TargetNodeID != "" {
		ok = s.manager.PerformFailover(service, req.TargetNodeID)
	} else {
		ok = s.manager.TriggerFailover(service)
	}
	if !ok {
		respondError(w, http.StatusConflict, "failover did not complete")
		return
	}

	primary, err := s.manager.GetPrimary(service)
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": service,
		"primary": primary,
	})
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.manager.ListNodes(chi.URLParam(r, "service"))
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"nodes": nodes})
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	body, err := readValidatedBody(r, nodeSchema)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var node failover.Node
	if err := json.Unmarshal(body, &node); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.manager.AddNode(chi.URLParam(r, "service"), node); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, node)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.manager.GetNode(chi.URLParam(r, "service"), chi.URLParam(r, "node"))
	if err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, node)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.RemoveNode(chi.URLParam(r, "service"), chi.URLParam(r, "node")); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.SwitchToPrimary(chi.URLParam(r, "service"), chi.URLParam(r, "node")); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDemote(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.SwitchToStandby(chi.URLParam(r, "service"), chi.URLParam(r, "node")); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetEnabled(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": s.manager.Enabled()})
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	enabled, err := decodeEnabled(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.manager.SetEnabled(enabled)
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *Server) handleSetServiceEnabled(w http.ResponseWriter, r *http.Request) {
	enabled, err := decodeEnabled(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.manager.SetServiceEnabled(chi.URLParam(r, "service"), enabled); err != nil {
		respondError(w, failoverStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func decodeEnabled(r *http.Request) (bool, error) {
	body, err := readValidatedBody(r, enabledSchema)
	if err != nil {
		return false, err
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return false, err
	}
	return req.Enabled, nil
}
