// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

// Package platform talks to the surrounding platform services: the
// configuration registry that stores per-project state, the projects
// service, and the session service that resolves the calling user.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("platform: not found")
	// ErrUnauthorized indicates the caller's token or session is invalid.
	ErrUnauthorized = errors.New("platform: unauthorized")
)

// Config is a configuration item stored in the platform registry.
type Config struct {
	ID        string          `json:"id"`
	ProjectID int64           `json:"project_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// Project describes a platform project.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the resolved principal behind a bearer token or session cookie.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Registry stores and retrieves configuration items for a project.
type Registry interface {
	CreateConfig(ctx context.Context, projectID int64, cfgType string, payload json.RawMessage) (string, error)
	FindConfigs(ctx context.Context, projectID int64, cfgType string) ([]Config, error)
	UpdateConfig(ctx context.Context, id string, payload json.RawMessage) error
}

// Projects resolves project metadata and membership.
type Projects interface {
	GetProjectByID(ctx context.Context, projectID int64) (*Project, error)
	CheckUserInProject(ctx context.Context, projectID, userID int64) (bool, error)
}

// Sessions resolves the calling user from a request's bearer token or
// session cookie.
type Sessions interface {
	CurrentUser(r *http.Request) (*User, error)
}
