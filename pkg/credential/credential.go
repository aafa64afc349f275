// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential manages gateway access keys. Credentials live in the
// platform configuration registry; the access key itself encodes the
// owning project so a lookup never has to scan across projects.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/getcarrier/s3gw/pkg/platform"
)

// ConfigType is the registry item type credentials are stored under.
const ConfigType = "s3_credential"

// ErrNotFound indicates no usable credential matched. Inactive and
// expired credentials are reported identically to missing ones.
var ErrNotFound = errors.New("credential: not found")

// Credential is a gateway access credential scoped to one project.
type Credential struct {
	AccessKeyID     string    `json:"access_key_id"`
	SecretAccessKey string    `json:"secret_access_key,omitempty"`
	Name            string    `json:"name"`
	ProjectID       int64     `json:"project_id"`
	UserID          int64     `json:"user_id"`
	Permissions     []string  `json:"permissions"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the credential has an expiry in the past.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Service implements credential lifecycle on top of the platform registry.
type Service struct {
	registry platform.Registry
	now      func() time.Time
}

// NewService creates a credential service backed by registry.
func NewService(registry platform.Registry) *Service {
	return &Service{
		registry: registry,
		now:      time.Now,
	}
}

// record pairs a credential with the registry item holding it.
type record struct {
	configID string
	cred     Credential
}

func (s *Service) findRecords(ctx context.Context, projectID int64) ([]record, error) {
	configs, err := s.registry.FindConfigs(ctx, projectID, ConfigType)
	if err != nil {
		return nil, fmt.Errorf("find credentials for project %d: %w", projectID, err)
	}
	records := make([]record, 0, len(configs))
	for _, cfg := range configs {
		var cred Credential
		if err := json.Unmarshal(cfg.Payload, &cred); err != nil {
			// Skip malformed registry entries rather than failing the lookup.
			continue
		}
		records = append(records, record{configID: cfg.ID, cred: cred})
	}
	return records, nil
}

func (s *Service) findByAccessKey(ctx context.Context, accessKeyID string) (*record, error) {
	projectID, err := DecodeProjectID(accessKeyID)
	if err != nil {
		return nil, ErrNotFound
	}
	records, err := s.findRecords(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].cred.AccessKeyID == accessKeyID {
			return &records[i], nil
		}
	}
	return nil, ErrNotFound
}

// Lookup resolves an access key to its credential. Inactive or expired
// credentials resolve to ErrNotFound.
func (s *Service) Lookup(ctx context.Context, accessKeyID string) (*Credential, error) {
	rec, err := s.findByAccessKey(ctx, accessKeyID)
	if err != nil {
		return nil, err
	}
	if !rec.cred.IsActive || rec.cred.Expired(s.now()) {
		return nil, ErrNotFound
	}
	cred := rec.cred
	return &cred, nil
}

// Create issues a new credential for a project. The returned credential
// carries the secret; this is the only time callers ever see it.
func (s *Service) Create(ctx context.Context, name string, projectID, userID int64, expiresInDays int, permissions []string) (*Credential, error) {
	accessKey, err := GenerateAccessKeyID(projectID)
	if err != nil {
		return nil, err
	}
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	cred := Credential{
		AccessKeyID:     accessKey,
		SecretAccessKey: secret,
		Name:            name,
		ProjectID:       projectID,
		UserID:          userID,
		Permissions:     permissions,
		IsActive:        true,
		CreatedAt:       now,
	}
	if expiresInDays > 0 {
		cred.ExpiresAt = now.AddDate(0, 0, expiresInDays)
	}

	payload, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("marshal credential: %w", err)
	}
	if _, err := s.registry.CreateConfig(ctx, projectID, ConfigType, payload); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	return &cred, nil
}

// Rotate regenerates the secret of an existing credential. The access
// key, project, and permissions are unchanged.
func (s *Service) Rotate(ctx context.Context, accessKeyID string) (*Credential, error) {
	rec, err := s.findByAccessKey(ctx, accessKeyID)
	if err != nil {
		return nil, err
	}
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}
	rec.cred.SecretAccessKey = secret
	if err := s.update(ctx, rec); err != nil {
		return nil, err
	}
	cred := rec.cred
	return &cred, nil
}

// Delete deactivates a credential. The registry entry is kept so the
// access key can never be reissued to another project.
func (s *Service) Delete(ctx context.Context, accessKeyID string) error {
	rec, err := s.findByAccessKey(ctx, accessKeyID)
	if err != nil {
		return err
	}
	rec.cred.IsActive = false
	return s.update(ctx, rec)
}

// List returns all active credentials for a project with secrets blanked.
func (s *Service) List(ctx context.Context, projectID int64) ([]Credential, error) {
	records, err := s.findRecords(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]Credential, 0, len(records))
	for _, rec := range records {
		if !rec.cred.IsActive {
			continue
		}
		cred := rec.cred
		cred.SecretAccessKey = ""
		out = append(out, cred)
	}
	return out, nil
}

// GetOrCreateBearer returns the user's active credential for a project,
// creating one when none exists. Used by bearer-token auto-provisioning.
func (s *Service) GetOrCreateBearer(ctx context.Context, projectID, userID int64, userName string) (*Credential, error) {
	records, err := s.findRecords(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, rec := range records {
		if rec.cred.UserID == userID && rec.cred.IsActive && !rec.cred.Expired(now) {
			cred := rec.cred
			return &cred, nil
		}
	}
	name := userName + " (auto-provisioned)"
	return s.Create(ctx, name, projectID, userID, 0, []string{"read", "write"})
}

func (s *Service) update(ctx context.Context, rec *record) error {
	payload, err := json.Marshal(rec.cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := s.registry.UpdateConfig(ctx, rec.configID, payload); err != nil {
		return fmt.Errorf("update credential %s: %w", rec.cred.AccessKeyID, err)
	}
	return nil
}
