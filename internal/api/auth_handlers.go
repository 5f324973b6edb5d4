package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FairForge/warden/internal/auth"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		respondError(w, http.StatusNotImplemented, "authentication is not configured")
		return
	}

	body, err := readValidatedBody(r, loginSchema)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "authentication failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}
