// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/getcarrier/s3gw/pkg/credential"
	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/platform"
)

// createCredentialRequest is the JSON body of POST /api/v1/credentials.
type createCredentialRequest struct {
	Name          string   `json:"name"`
	ExpiresInDays int      `json:"expires_in_days"`
	Permissions   []string `json:"permissions"`
}

type apiError struct {
	Error string `json:"error"`
}

// credentialsAPI is the JSON management surface for access keys. It is
// session-authenticated only; signed S3 requests cannot mint keys.
//
//	GET    /api/v1/credentials?project_id=N        list active credentials
//	POST   /api/v1/credentials?project_id=N        create, returns the secret once
//	POST   /api/v1/credentials/{key}/rotate        regenerate the secret
//	DELETE /api/v1/credentials/{key}               deactivate
func (s *Server) credentialsAPI(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessions.CurrentUser(r)
	if err != nil {
		writeAPIError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/credentials")
	rest = strings.Trim(rest, "/")

	if rest == "" {
		projectID, ok := s.requireProjectAccess(w, r, user, 0)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.listCredentials(w, r, projectID)
		case http.MethodPost:
			s.createCredential(w, r, projectID, user)
		default:
			writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	accessKey, action, _ := strings.Cut(rest, "/")
	projectID, err := credential.DecodeProjectID(accessKey)
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "credential not found")
		return
	}
	if _, ok := s.requireProjectAccess(w, r, user, projectID); !ok {
		return
	}

	switch {
	case r.Method == http.MethodPost && action == "rotate":
		s.rotateCredential(w, r, accessKey)
	case r.Method == http.MethodDelete && action == "":
		s.deleteCredential(w, r, accessKey)
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// requireProjectAccess resolves the project the request targets and
// checks membership. A zero projectID means it comes from the
// project_id query parameter.
func (s *Server) requireProjectAccess(w http.ResponseWriter, r *http.Request, user *platform.User, projectID int64) (int64, bool) {
	if projectID == 0 {
		id, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
		if err != nil || id <= 0 {
			writeAPIError(w, http.StatusBadRequest, "project_id is required")
			return 0, false
		}
		projectID = id
	}

	member, err := s.projects.CheckUserInProject(r.Context(), projectID, user.ID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "project not found")
			return 0, false
		}
		logger.Ctx(r.Context()).Error().Err(err).Int64("project_id", projectID).Msg("check project membership")
		writeAPIError(w, http.StatusInternalServerError, "internal error")
		return 0, false
	}
	if !member {
		writeAPIError(w, http.StatusForbidden, "not a member of this project")
		return 0, false
	}
	return projectID, true
}

func (s *Server) listCredentials(w http.ResponseWriter, r *http.Request, projectID int64) {
	creds, err := s.credentials.List(r.Context(), projectID)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Int64("project_id", projectID).Msg("list credentials")
		writeAPIError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeAPIJSON(w, http.StatusOK, creds)
}

func (s *Server) createCredential(w http.ResponseWriter, r *http.Request, projectID int64, user *platform.User) {
	var req createCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeAPIError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Permissions) == 0 {
		req.Permissions = []string{"read", "write"}
	}

	cred, err := s.credentials.Create(r.Context(), req.Name, projectID, user.ID, req.ExpiresInDays, req.Permissions)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Int64("project_id", projectID).Msg("create credential")
		writeAPIError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeAPIJSON(w, http.StatusCreated, cred)
}

func (s *Server) rotateCredential(w http.ResponseWriter, r *http.Request, accessKey string) {
	cred, err := s.credentials.Rotate(r.Context(), accessKey)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "credential not found")
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Str("access_key", accessKey).Msg("rotate credential")
		writeAPIError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeAPIJSON(w, http.StatusOK, cred)
}

func (s *Server) deleteCredential(w http.ResponseWriter, r *http.Request, accessKey string) {
	if err := s.credentials.Delete(r.Context(), accessKey); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			writeAPIError(w, http.StatusNotFound, "credential not found")
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Str("access_key", accessKey).Msg("delete credential")
		writeAPIError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeAPIJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeAPIJSON(w, status, apiError{Error: msg})
}
