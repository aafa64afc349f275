// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
)

// Memory is an in-memory Registry and Projects implementation for tests
// and local development.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	configs  map[string]Config
	projects map[int64]*Project
	members  map[int64]map[int64]bool
}

// NewMemory creates an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{
		configs:  make(map[string]Config),
		projects: make(map[int64]*Project),
		members:  make(map[int64]map[int64]bool),
	}
}

// AddProject registers a project and returns it.
func (m *Memory) AddProject(id int64, name string) *Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Project{ID: id, Name: name}
	m.projects[id] = p
	return p
}

// AddMember marks a user as a member of a project.
func (m *Memory) AddMember(projectID, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[projectID] == nil {
		m.members[projectID] = make(map[int64]bool)
	}
	m.members[projectID][userID] = true
}

func (m *Memory) CreateConfig(_ context.Context, projectID int64, cfgType string, payload json.RawMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := strconv.FormatInt(m.nextID, 10)
	m.configs[id] = Config{
		ID:        id,
		ProjectID: projectID,
		Type:      cfgType,
		Payload:   append(json.RawMessage(nil), payload...),
	}
	return id, nil
}

func (m *Memory) FindConfigs(_ context.Context, projectID int64, cfgType string) ([]Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Config
	for _, cfg := range m.configs {
		if cfg.ProjectID == projectID && cfg.Type == cfgType {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (m *Memory) UpdateConfig(_ context.Context, id string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	if !ok {
		return ErrNotFound
	}
	cfg.Payload = append(json.RawMessage(nil), payload...)
	m.configs[id] = cfg
	return nil
}

func (m *Memory) GetProjectByID(_ context.Context, projectID int64) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *Memory) CheckUserInProject(_ context.Context, projectID, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.members[projectID][userID], nil
}
