package s3err

import (
	"encoding/xml"
	"net/http"
	"strings"
)

// APIError represents an S3 API error with its code, description, and HTTP status.
// Based on: https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
type APIError struct {
	Code           string
	Description    string
	HTTPStatusCode int
}

// Error represents the XML error response returned to S3 clients.
type Error struct {
	XMLName   xml.Name `xml:"Error" json:"-"`
	Code      string `xml:"Code" json:"code"`
	Message   string `xml:"Message" json:"message"`
	Resource  string `xml:"Resource,omitempty" json:"resource,omitempty"`
	RequestID string `xml:"RequestId,omitempty" json:"requestId,omitempty"`
	HTTPCode  int    `xml:"-" json:"-"`
}

func (e Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	if e.Resource != "" {
		b.WriteString(e.Resource)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ErrorCode is an enumeration of the S3 error codes this gateway emits.
type ErrorCode int

const (
	ErrNone ErrorCode = iota

	// Access & authentication
	ErrAccessDenied
	ErrInvalidAccessKeyID
	ErrSignatureDoesNotMatch
	ErrSignatureVersionNotSupported
	ErrExpiredPresignRequest

	// Bucket
	ErrNoSuchBucket
	ErrBucketAlreadyExists
	ErrBucketNotEmpty

	// Object
	ErrNoSuchKey

	// Multipart upload
	ErrNoSuchUpload
	ErrInvalidPart
	ErrEntityTooLarge

	// Request validation
	ErrInvalidRequest
	ErrInvalidArgument

	// Service
	ErrInternalError
	ErrNotImplemented
	ErrMethodNotAllowed
	ErrSlowDown
)

// errorCodeResponse maps error codes to their AWS API error definitions.
var errorCodeResponse = map[ErrorCode]APIError{
	ErrAccessDenied: {
		Code:           "AccessDenied",
		Description:    "Access Denied.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrInvalidAccessKeyID: {
		Code:           "AccessDenied",
		Description:    "The access key ID you provided does not exist in our records.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrSignatureDoesNotMatch: {
		Code:           "AccessDenied",
		Description:    "The request signature we calculated does not match the signature you provided. Check your key and signing method.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrSignatureVersionNotSupported: {
		Code:           "AccessDenied",
		Description:    "The authorization mechanism you have provided is not supported. Please use AWS4-HMAC-SHA256.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrExpiredPresignRequest: {
		Code:           "AccessDenied",
		Description:    "Request has expired.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrNoSuchBucket: {
		Code:           "NoSuchBucket",
		Description:    "The specified bucket does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrBucketAlreadyExists: {
		Code:           "BucketAlreadyExists",
		Description:    "The requested bucket name is not available. Please select a different name and try again.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrBucketNotEmpty: {
		Code:           "BucketNotEmpty",
		Description:    "The bucket you tried to delete is not empty.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrNoSuchKey: {
		Code:           "NoSuchKey",
		Description:    "The specified key does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrNoSuchUpload: {
		Code:           "NoSuchUpload",
		Description:    "The specified multipart upload does not exist. The upload ID may be invalid, or the upload may have been aborted or completed.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrInvalidPart: {
		Code:           "InvalidPart",
		Description:    "One or more of the specified parts could not be found.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrEntityTooLarge: {
		Code:           "EntityTooLarge",
		Description:    "Your proposed upload exceeds the maximum allowed object size.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidRequest: {
		Code:           "InvalidRequest",
		Description:    "Invalid Request.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidArgument: {
		Code:           "InvalidArgument",
		Description:    "Invalid Argument.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInternalError: {
		Code:           "InternalError",
		Description:    "We encountered an internal error. Please try again.",
		HTTPStatusCode: http.StatusInternalServerError,
	},
	ErrNotImplemented: {
		Code:           "NotImplemented",
		Description:    "A header or query you provided implies functionality that is not implemented.",
		HTTPStatusCode: http.StatusNotImplemented,
	},
	ErrMethodNotAllowed: {
		Code:           "MethodNotAllowed",
		Description:    "The specified method is not allowed against this resource.",
		HTTPStatusCode: http.StatusMethodNotAllowed,
	},
	ErrSlowDown: {
		Code:           "SlowDown",
		Description:    "Please reduce your request rate.",
		HTTPStatusCode: http.StatusServiceUnavailable,
	},
}

// APIError returns the full APIError struct for this error code.
func (e ErrorCode) APIError() APIError {
	if err, ok := errorCodeResponse[e]; ok {
		return err
	}
	return APIError{
		Code:           "InternalError",
		Description:    "We encountered an internal error. Please try again.",
		HTTPStatusCode: http.StatusInternalServerError,
	}
}

// Code returns the S3 error code string.
func (e ErrorCode) Code() string {
	return e.APIError().Code
}

// Description returns the error description.
func (e ErrorCode) Description() string {
	return e.APIError().Description
}

// Error implements the error interface.
func (e ErrorCode) Error() string {
	return e.Description()
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e ErrorCode) HTTPStatusCode() int {
	return e.APIError().HTTPStatusCode
}

// ToErrorResponse creates an Error response suitable for serialization.
func (e ErrorCode) ToErrorResponse(resource string) Error {
	api := e.APIError()
	return Error{
		Code:     api.Code,
		Message:  api.Description,
		Resource: resource,
		HTTPCode: api.HTTPStatusCode,
	}
}

// ToErrorResponseWithMessage creates an Error response with a custom message.
func (e ErrorCode) ToErrorResponseWithMessage(resource, message string) Error {
	api := e.APIError()
	return Error{
		Code:     api.Code,
		Message:  message,
		Resource: resource,
		HTTPCode: api.HTTPStatusCode,
	}
}
