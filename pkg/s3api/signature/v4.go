// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package signature

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getcarrier/s3gw/pkg/credential"
	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
)

// AWS Signature Version 4 implementation following:
// https://docs.aws.amazon.com/general/latest/gr/signature-version-4.html

// CredentialResolver resolves an access key to its credential.
type CredentialResolver interface {
	Lookup(ctx context.Context, accessKeyID string) (*credential.Credential, error)
}

// V4Verifier verifies AWS Signature Version 4 authentication.
type V4Verifier struct {
	creds CredentialResolver
}

// NewV4Verifier creates a new signature v4 verifier.
func NewV4Verifier(creds CredentialResolver) *V4Verifier {
	return &V4Verifier{creds: creds}
}

// authInfo contains parsed authentication information from a request
type authInfo struct {
	accessKey       string
	date            string // YYYYMMDD from credential scope
	timestamp       string // full ISO8601 timestamp (YYYYMMDDTHHMMSSZ)
	region          string
	service         string
	signedHeaders   []string
	signature       string
	credentialScope string
}

// VerifyRequest verifies SigV4 authentication on r, via Authorization
// header or presigned query parameters. It returns the authenticated
// credential or an error code; it never panics on malformed input.
func (v *V4Verifier) VerifyRequest(r *http.Request) (*credential.Credential, s3err.ErrorCode) {
	auth, errCode := v.extractAuthInfo(r)
	if errCode != s3err.ErrNone {
		return nil, errCode
	}

	// Scope date must match the request timestamp's date.
	if !strings.HasPrefix(auth.timestamp, auth.date) {
		return nil, s3err.ErrSignatureDoesNotMatch
	}

	cred, err := v.creds.Lookup(r.Context(), auth.accessKey)
	if err != nil {
		return nil, s3err.ErrInvalidAccessKeyID
	}

	canonicalReq, err := v.buildCanonicalRequest(r, auth.signedHeaders)
	if err != nil {
		return nil, s3err.ErrSignatureDoesNotMatch
	}

	stringToSign := v.buildStringToSign(auth, canonicalReq)
	signingKey := v.deriveSigningKey(cred.SecretAccessKey, auth.date, auth.region, auth.service)
	expectedSig := v.calculateSignature(signingKey, stringToSign)

	if !constantTimeCompare(auth.signature, expectedSig) {
		return nil, s3err.ErrSignatureDoesNotMatch
	}

	return cred, s3err.ErrNone
}

// extractAuthInfo parses auth info from the Authorization header or
// presigned query params.
func (v *V4Verifier) extractAuthInfo(r *http.Request) (*authInfo, s3err.ErrorCode) {
	if r.URL.Query().Get(s3consts.XAmzCredential) != "" {
		return v.extractPresignedAuthInfo(r)
	}

	// "AWS4-HMAC-SHA256 Credential=..., SignedHeaders=..., Signature=..."
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, AuthHeaderV4) {
		return nil, s3err.ErrSignatureVersionNotSupported
	}

	parts := strings.Split(strings.TrimPrefix(authHeader, AuthHeaderV4+" "), ", ")
	auth := &authInfo{}

	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}

		switch kv[0] {
		case "Credential":
			if errCode := auth.parseCredentialScope(kv[1]); errCode != s3err.ErrNone {
				return nil, errCode
			}
		case "SignedHeaders":
			auth.signedHeaders = strings.Split(kv[1], ";")
		case "Signature":
			auth.signature = kv[1]
		}
	}

	if auth.accessKey == "" || auth.signature == "" {
		return nil, s3err.ErrAccessDenied
	}

	auth.timestamp = r.Header.Get(s3consts.XAmzDate)
	if auth.timestamp == "" {
		if dateHeader := r.Header.Get("Date"); dateHeader != "" {
			if t, err := time.Parse(time.RFC1123, dateHeader); err == nil {
				auth.timestamp = t.UTC().Format(s3consts.Iso8601BasicFormat)
			}
		}
	}
	if auth.timestamp == "" {
		return nil, s3err.ErrAccessDenied
	}

	return auth, s3err.ErrNone
}

// extractPresignedAuthInfo parses presigned URL query parameters.
func (v *V4Verifier) extractPresignedAuthInfo(r *http.Request) (*authInfo, s3err.ErrorCode) {
	q := r.URL.Query()

	timestamp := q.Get(s3consts.XAmzDateParam)
	if timestamp == "" {
		return nil, s3err.ErrAccessDenied
	}

	auth := &authInfo{
		timestamp:     timestamp,
		signedHeaders: strings.Split(q.Get(s3consts.XAmzSignedHeaders), ";"),
		signature:     q.Get(s3consts.XAmzSignature),
	}
	if errCode := auth.parseCredentialScope(q.Get(s3consts.XAmzCredential)); errCode != s3err.ErrNone {
		return nil, errCode
	}
	if auth.signature == "" {
		return nil, s3err.ErrAccessDenied
	}

	// X-Amz-Expires is honored when present. URLs without it do not expire.
	if expiresStr := q.Get(s3consts.XAmzExpires); expiresStr != "" {
		signTime, err := time.Parse(s3consts.Iso8601BasicFormat, timestamp)
		if err != nil {
			return nil, s3err.ErrAccessDenied
		}
		expires, err := strconv.ParseInt(expiresStr, 10, 64)
		if err != nil || expires < 0 {
			return nil, s3err.ErrAccessDenied
		}
		if time.Since(signTime) > time.Duration(expires)*time.Second {
			return nil, s3err.ErrExpiredPresignRequest
		}
	}

	return auth, s3err.ErrNone
}

// parseCredentialScope fills in fields from the credential string:
// accessKey/date/region/service/aws4_request
func (a *authInfo) parseCredentialScope(cred string) s3err.ErrorCode {
	credParts := strings.Split(cred, "/")
	if len(credParts) != 5 || credParts[4] != s3consts.SigV4Request {
		return s3err.ErrAccessDenied
	}
	a.accessKey = credParts[0]
	a.date = credParts[1]
	a.region = credParts[2]
	a.service = credParts[3]
	a.credentialScope = strings.Join(credParts[1:], "/")
	return s3err.ErrNone
}

// buildCanonicalRequest creates the canonical request string.
func (v *V4Verifier) buildCanonicalRequest(r *http.Request, signedHeaders []string) (string, error) {
	// Canonical URI must stay URL-encoded. Go decodes req.URL.Path, so
	// prefer RawPath (the original encoded form) and re-encode segment
	// by segment when it is unavailable.
	canonicalURI := r.URL.RawPath
	if canonicalURI == "" {
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		canonicalURI = encodeCanonicalURI(path)
	}

	canonicalQuery := v.buildCanonicalQueryString(r.URL.Query())
	canonicalHeaders, sortedSignedHeaders := v.buildCanonicalHeaders(r, signedHeaders)
	signedHeadersStr := strings.Join(sortedSignedHeaders, ";")

	hashedPayload, err := v.payloadHash(r)
	if err != nil {
		return "", err
	}

	canonical := strings.Join([]string{
		r.Method,
		canonicalURI,
		canonicalQuery,
		canonicalHeaders,
		signedHeadersStr,
		hashedPayload,
	}, "\n")

	return canonical, nil
}

// payloadHash returns the payload hash line for the canonical request.
// The x-amz-content-sha256 header wins when present (including the
// UNSIGNED-PAYLOAD and streaming markers, which are used verbatim);
// otherwise the body is buffered and hashed.
func (v *V4Verifier) payloadHash(r *http.Request) (string, error) {
	if h := r.Header.Get(s3consts.XAmzContentSHA256); h != "" {
		return h, nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return HashedEmptyPayload, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("read body for payload hash: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// buildCanonicalQueryString creates the sorted canonical query string.
func (v *V4Verifier) buildCanonicalQueryString(query url.Values) string {
	// The signature itself is excluded from the canonical query.
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == s3consts.XAmzSignature {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vals := append([]string(nil), query[k]...)
		sort.Strings(vals)
		for _, val := range vals {
			parts = append(parts, queryEscape(k)+"="+queryEscape(val))
		}
	}
	return strings.Join(parts, "&")
}

// queryEscape percent-encodes a query component the way SigV4 requires:
// spaces become %20, never +.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// buildCanonicalHeaders creates the sorted canonical headers string and
// returns the sorted header names for the signed headers line.
func (v *V4Verifier) buildCanonicalHeaders(r *http.Request, signedHeaders []string) (string, []string) {
	headers := make(map[string][]string)

	for _, h := range signedHeaders {
		h = strings.ToLower(strings.TrimSpace(h))

		// Host lives in r.Host, not r.Header.
		if h == "host" {
			if r.Host != "" {
				headers[h] = []string{r.Host}
			}
			continue
		}

		// Content-Length may only exist as r.ContentLength once Go has
		// parsed the request.
		if h == "content-length" {
			if vals := r.Header.Values(h); len(vals) > 0 {
				headers[h] = vals
			} else if r.ContentLength >= 0 {
				headers[h] = []string{strconv.FormatInt(r.ContentLength, 10)}
			}
			continue
		}

		if vals := r.Header.Values(h); len(vals) > 0 {
			headers[h] = vals
		}
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		vals := headers[name]
		trimmed := make([]string, len(vals))
		for i, val := range vals {
			trimmed[i] = strings.TrimSpace(val)
		}
		parts = append(parts, name+":"+strings.Join(trimmed, ","))
	}

	return strings.Join(parts, "\n") + "\n", names
}

// buildStringToSign creates the string to sign.
func (v *V4Verifier) buildStringToSign(auth *authInfo, canonicalRequest string) string {
	sum := sha256.Sum256([]byte(canonicalRequest))
	return strings.Join([]string{
		AuthHeaderV4,
		auth.timestamp,
		auth.credentialScope,
		hex.EncodeToString(sum[:]),
	}, "\n")
}

// deriveSigningKey derives the signing key via the HMAC-SHA256 chain:
// kDate = HMAC("AWS4"+secret, date), kRegion = HMAC(kDate, region),
// kService = HMAC(kRegion, service), kSigning = HMAC(kService, "aws4_request").
func (v *V4Verifier) deriveSigningKey(secretKey, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte(s3consts.SigV4Request))
}

// calculateSignature computes the final hex signature.
func (v *V4Verifier) calculateSignature(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// constantTimeCompare prevents timing attacks on signature comparison.
func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
