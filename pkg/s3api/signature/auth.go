// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package signature

import (
	"net/http"
	"strings"

	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
)

const (
	// AuthHeaderV4 is the Authorization header scheme for SigV4.
	AuthHeaderV4 = s3consts.SigV4Algorithm

	// HashedEmptyPayload is the precomputed SHA-256 of an empty payload.
	HashedEmptyPayload = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// AuthType classifies how a request authenticates.
type AuthType int

const (
	AuthTypeNone AuthType = iota
	AuthTypeAnonymous
	AuthTypeV4
	AuthTypePresignedV4
	AuthTypeBearer
)

func (a AuthType) String() string {
	switch a {
	case AuthTypeAnonymous:
		return "anonymous"
	case AuthTypeV4:
		return "v4"
	case AuthTypePresignedV4:
		return "presigned_v4"
	case AuthTypeBearer:
		return "bearer"
	default:
		return "unknown"
	}
}

func isRequestSignatureV4(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), AuthHeaderV4+" ")
}

func isRequestPresignedV4(r *http.Request) bool {
	query := r.URL.Query()
	_, hasAlgorithm := query[s3consts.XAmzAlgorithm]
	_, hasCredential := query[s3consts.XAmzCredential]
	_, hasSignature := query[s3consts.XAmzSignature]
	return hasAlgorithm && hasCredential && hasSignature
}

func isRequestBearer(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// GetAuthType classifies the request. Bearer tokens win over signature
// schemes; a request with no auth material at all is anonymous and may
// still carry an ambient platform session.
func GetAuthType(r *http.Request) AuthType {
	switch {
	case isRequestBearer(r):
		return AuthTypeBearer
	case isRequestSignatureV4(r):
		return AuthTypeV4
	case isRequestPresignedV4(r):
		return AuthTypePresignedV4
	case r.Header.Get("Authorization") == "":
		return AuthTypeAnonymous
	}
	return AuthTypeNone
}
