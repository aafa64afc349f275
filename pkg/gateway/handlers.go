// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/base64"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/getcarrier/s3gw/pkg/logger"
)

// amzTimeFormat is the timestamp layout S3 responses use.
const amzTimeFormat = "2006-01-02T15:04:05.000Z"

func amzTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(amzTimeFormat)
}

func quoteETag(etag string) string {
	if etag == "" {
		return etag
	}
	if etag[0] == '"' {
		return etag
	}
	return `"` + etag + `"`
}

func contentTypeForKey(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// readBody drains and returns the request body.
func readBody(d *Data) ([]byte, error) {
	if d.Req.Body == nil {
		return nil, nil
	}
	defer d.Req.Body.Close()
	body, err := io.ReadAll(d.Req.Body)
	if err != nil {
		logger.Ctx(d.Ctx).Error().Err(err).Msg("read request body")
		return nil, err
	}
	return body, nil
}

// Continuation tokens are opaque to clients; under the hood they are
// the base64 of the last key returned.
func encodeContinuationToken(key string) string {
	return base64.StdEncoding.EncodeToString([]byte(key))
}

func decodeContinuationToken(token string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// isValidBucketName applies the subset of S3 naming rules the gateway
// enforces before touching the backend.
func isValidBucketName(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}
	for i := 0; i < len(bucket); i++ {
		c := bucket[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.':
			if i == 0 || i == len(bucket)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
