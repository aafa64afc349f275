// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"github.com/google/uuid"

	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
)

// RequestIDFilter assigns each request an id and threads a request-
// scoped logger through the context.
type RequestIDFilter struct{}

func NewRequestIDFilter() *RequestIDFilter {
	return &RequestIDFilter{}
}

func (f *RequestIDFilter) Type() string {
	return "request_id"
}

func (f *RequestIDFilter) Run(d *Data) (Response, error) {
	d.RequestID = uuid.NewString()
	d.Req.Header.Set(s3consts.XAmzRequestID, d.RequestID)

	l := logger.Ctx(d.Ctx).With().
		Str("request_id", d.RequestID).
		Str("method", d.Req.Method).
		Str("path", d.Req.URL.Path).
		Logger()
	d.Ctx = logger.WithLogger(d.Ctx, &l)

	return Next{}, nil
}
