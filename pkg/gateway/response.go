// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"net/http"

	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
)

type wrappedResponseRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *wrappedResponseRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *wrappedResponseRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// wantsJSON reports whether the client asked for the JSON rendering of
// a response via the format query parameter. XML is the default.
func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json"
}

// writeResponse encodes v as XML or JSON depending on the request.
func writeResponse(w http.ResponseWriter, d *Data, status int, v any) {
	w.Header().Set(s3consts.XAmzRequestID, d.RequestID)

	var (
		buf bytes.Buffer
		err error
	)
	if wantsJSON(d.Req) {
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(&buf).Encode(v)
	} else {
		w.Header().Set("Content-Type", "application/xml")
		buf.WriteString(xml.Header)
		err = xml.NewEncoder(&buf).Encode(v)
	}
	if err != nil {
		logger.Ctx(d.Ctx).Error().Err(err).Msg("encode response")
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeEmptyResponse writes a status with no body.
func writeEmptyResponse(w http.ResponseWriter, d *Data, status int) {
	w.Header().Set(s3consts.XAmzRequestID, d.RequestID)
	w.WriteHeader(status)
}

func writeErrorResponse(w http.ResponseWriter, d *Data, code s3err.ErrorCode) {
	writeError(w, d, code.ToErrorResponse(errorResource(d)))
}

// writeErrorWithMessage overrides the canned description.
func writeErrorWithMessage(w http.ResponseWriter, d *Data, code s3err.ErrorCode, message string) {
	writeError(w, d, code.ToErrorResponseWithMessage(errorResource(d), message))
}

func writeError(w http.ResponseWriter, d *Data, s3error s3err.Error) {
	if d.RequestID != "" {
		s3error.RequestID = d.RequestID
	} else {
		s3error.RequestID = "NotAvailable"
	}

	var buf bytes.Buffer
	if wantsJSON(d.Req) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(&buf).Encode(s3error)
	} else {
		w.Header().Set("Content-Type", "application/xml")
		buf.WriteString(xml.Header)
		_ = xml.NewEncoder(&buf).Encode(s3error)
	}

	w.Header().Set(s3consts.XAmzRequestID, s3error.RequestID)
	w.WriteHeader(s3error.HTTPCode)
	if buf.Len() > 0 {
		_, _ = w.Write(buf.Bytes())
	}
}

func errorResource(d *Data) string {
	if d.S3Info == nil {
		return ""
	}
	if d.S3Info.Key != "" {
		return "/" + d.S3Info.Bucket + "/" + d.S3Info.Key
	}
	if d.S3Info.Bucket != "" {
		return "/" + d.S3Info.Bucket
	}
	return ""
}
