// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package signature

import (
	"net/url"
	"strings"
)

// encodeCanonicalURI encodes a path for the SigV4 canonical URI. Each
// path segment is URL-encoded separately so slashes stay path
// separators, matching how AWS SDKs encode paths for signing.
func encodeCanonicalURI(path string) string {
	if path == "" || path == "/" {
		return "/"
	}

	path = strings.TrimPrefix(path, "/")
	segments := strings.Split(path, "/")
	encoded := make([]string, len(segments))
	for i, segment := range segments {
		encoded[i] = url.PathEscape(segment)
	}
	return "/" + strings.Join(encoded, "/")
}
