// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the S3-compatible HTTP surface: request
// parsing, authentication dispatch, handlers, and response encoding.
package gateway

import (
	"context"
	"net/http"

	"github.com/getcarrier/s3gw/pkg/credential"
	"github.com/getcarrier/s3gw/pkg/platform"
	"github.com/getcarrier/s3gw/pkg/s3api/s3action"
	"github.com/getcarrier/s3gw/pkg/s3api/signature"
)

// AuthContext is the resolved identity behind a request. Every
// authenticated request is scoped to exactly one project.
type AuthContext struct {
	ProjectID  int64
	Project    *platform.Project
	Credential *credential.Credential
	User       *platform.User // set on bearer/session auth
	AuthType   signature.AuthType
}

// S3Info carries the parsed operation operands through the chain.
type S3Info struct {
	Action s3action.Action
	Bucket string
	Key    string

	// move_objects extension operands
	SrcBucket string
	SrcKey    string
	DstBucket string
	DstKey    string
}

// Data flows through the filter chain into the handler.
type Data struct {
	Ctx       context.Context
	Req       *http.Request
	S3Info    *S3Info
	Auth      *AuthContext
	RequestID string
}

// NewData creates the per-request Data.
func NewData(ctx context.Context, req *http.Request) *Data {
	return &Data{
		Ctx:    ctx,
		Req:    req,
		S3Info: &S3Info{},
	}
}
