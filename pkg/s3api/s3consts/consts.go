// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package s3consts

const (
	// MaxPartID is the maximum Part ID for multipart upload.
	// Acceptable values range from 1 to 10000 inclusive.
	MaxPartID = 10000

	// --- Core request / tracing ---
	XAmzDate      = "x-amz-date"
	XAmzRequestID = "x-amz-request-id"

	// --- Authorization ---
	XAmzAlgorithm     = "X-Amz-Algorithm"
	XAmzCredential    = "X-Amz-Credential"
	XAmzSignedHeaders = "X-Amz-SignedHeaders"
	XAmzSignature     = "X-Amz-Signature"
	XAmzExpires       = "X-Amz-Expires"
	XAmzDateParam     = "X-Amz-Date"

	// --- Content / payload ---
	XAmzContentSHA256 = "x-amz-content-sha256"

	// UnsignedPayload is the literal payload-hash token for unsigned bodies.
	UnsignedPayload = "UNSIGNED-PAYLOAD"
	// StreamingPayload is the chunked-upload payload-hash marker.
	StreamingPayload = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"

	// --- Copy source ---
	XAmzCopySource = "x-amz-copy-source"

	// --- Metadata ---
	XAmzMetaPrefix = "x-amz-meta-"

	// SigV4Algorithm is the signing algorithm identifier.
	SigV4Algorithm = "AWS4-HMAC-SHA256"
	// SigV4Request is the terminal credential-scope component.
	SigV4Request = "aws4_request"

	// Iso8601BasicFormat is the x-amz-date timestamp layout.
	Iso8601BasicFormat = "20060102T150405Z"
	// DateStampFormat is the credential-scope date layout.
	DateStampFormat = "20060102"

	// S3Namespace is the XML namespace on all S3 response roots.
	S3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

	// StorageClassStandard is the only storage class this gateway reports.
	StorageClassStandard = "STANDARD"
)
