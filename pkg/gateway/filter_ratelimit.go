// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"golang.org/x/time/rate"

	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
)

// RateLimitFilter sheds load once the request rate exceeds the
// configured budget. Disabled when rps is zero.
type RateLimitFilter struct {
	limiter *rate.Limiter
}

func NewRateLimitFilter(rps float64, burst int) *RateLimitFilter {
	if rps <= 0 {
		return &RateLimitFilter{}
	}
	return &RateLimitFilter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (f *RateLimitFilter) Type() string {
	return "rate_limit"
}

func (f *RateLimitFilter) Run(d *Data) (Response, error) {
	if f.limiter != nil && !f.limiter.Allow() {
		return End{}, s3err.ErrSlowDown
	}
	return Next{}, nil
}
