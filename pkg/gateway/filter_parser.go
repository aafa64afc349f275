// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"

	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
)

type ParserFilter struct {
	router *Router
}

func NewParserFilter() *ParserFilter {
	return &ParserFilter{router: NewRouter()}
}

func (f *ParserFilter) Type() string {
	return "parser"
}

func (f *ParserFilter) Run(d *Data) (Response, error) {
	if d.Ctx.Err() != nil {
		return nil, d.Ctx.Err()
	}

	match, err := f.router.MatchRequest(d.Req)
	if err != nil {
		if errors.Is(err, errMethodNotAllowed) {
			return End{}, s3err.ErrMethodNotAllowed
		}
		return End{}, s3err.ErrInvalidRequest
	}
	d.S3Info.Action = match.Action
	d.S3Info.Bucket = match.Bucket
	d.S3Info.Key = match.Key
	d.S3Info.SrcBucket = match.SrcBucket
	d.S3Info.SrcKey = match.SrcKey
	d.S3Info.DstBucket = match.DstBucket
	d.S3Info.DstKey = match.DstKey

	return Next{}, nil
}
