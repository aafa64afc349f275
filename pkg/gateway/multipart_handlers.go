// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/getcarrier/s3gw/pkg/logger"
	"github.com/getcarrier/s3gw/pkg/multipart"
	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
	"github.com/getcarrier/s3gw/pkg/s3api/s3types"
	"github.com/getcarrier/s3gw/pkg/storage"
)

// CreateMultipartUploadHandler serves POST /{bucket}/{key}?uploads.
func (s *Server) CreateMultipartUploadHandler(d *Data, w http.ResponseWriter) {
	upload, err := s.tracker.Create(d.Ctx, d.Auth.ProjectID, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		s.handleMultipartError(w, d, err)
		return
	}

	writeResponse(w, d, http.StatusOK, s3types.InitiateMultipartUploadResult{
		Xmlns:    s3consts.S3Namespace,
		Bucket:   upload.Bucket,
		Key:      upload.Key,
		UploadID: upload.UploadID,
	})
}

// UploadPartHandler serves PUT /{bucket}/{key}?partNumber=N&uploadId=X.
func (s *Server) UploadPartHandler(d *Data, w http.ResponseWriter) {
	q := d.Req.URL.Query()
	uploadID := q.Get("uploadId")
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeErrorWithMessage(w, d, s3err.ErrInvalidArgument, "Part number must be an integer.")
		return
	}

	body, err := readBody(d)
	if err != nil {
		writeErrorResponse(w, d, s3err.ErrInvalidRequest)
		return
	}

	etag, err := s.tracker.UploadPart(d.Ctx, d.Auth.ProjectID, uploadID, d.S3Info.Bucket, d.S3Info.Key, partNumber, body)
	if err != nil {
		s.handleMultipartError(w, d, err)
		return
	}

	w.Header().Set("ETag", quoteETag(etag))
	writeEmptyResponse(w, d, http.StatusOK)
}

// CompleteMultipartUploadHandler serves POST /{bucket}/{key}?uploadId=X.
func (s *Server) CompleteMultipartUploadHandler(d *Data, w http.ResponseWriter) {
	uploadID := d.Req.URL.Query().Get("uploadId")

	body, err := readBody(d)
	if err != nil {
		writeErrorResponse(w, d, s3err.ErrInvalidRequest)
		return
	}

	completed, err := s.tracker.Complete(d.Ctx, d.Auth.ProjectID, uploadID, d.S3Info.Bucket, d.S3Info.Key, body)
	if err != nil {
		logger.Ctx(d.Ctx).Debug().Err(err).Str("upload_id", uploadID).Msg("complete multipart upload")
		s.handleMultipartError(w, d, err)
		return
	}

	writeResponse(w, d, http.StatusOK, s3types.CompleteMultipartUploadResult{
		Xmlns:    s3consts.S3Namespace,
		Location: "/" + completed.Bucket + "/" + completed.Key,
		Bucket:   completed.Bucket,
		Key:      completed.Key,
		ETag:     quoteETag(completed.ETag),
	})
}

// AbortMultipartUploadHandler serves DELETE /{bucket}/{key}?uploadId=X.
func (s *Server) AbortMultipartUploadHandler(d *Data, w http.ResponseWriter) {
	uploadID := d.Req.URL.Query().Get("uploadId")

	if err := s.tracker.Abort(d.Ctx, d.Auth.ProjectID, uploadID, d.S3Info.Bucket, d.S3Info.Key); err != nil {
		s.handleMultipartError(w, d, err)
		return
	}
	writeEmptyResponse(w, d, http.StatusNoContent)
}

// ListPartsHandler serves GET /{bucket}/{key}?uploadId=X.
func (s *Server) ListPartsHandler(d *Data, w http.ResponseWriter) {
	uploadID := d.Req.URL.Query().Get("uploadId")

	upload, err := s.tracker.ListParts(d.Ctx, d.Auth.ProjectID, uploadID, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		s.handleMultipartError(w, d, err)
		return
	}

	result := s3types.ListPartsResult{
		Xmlns:        s3consts.S3Namespace,
		Bucket:       upload.Bucket,
		Key:          upload.Key,
		UploadID:     upload.UploadID,
		StorageClass: s3consts.StorageClassStandard,
		MaxParts:     s3consts.MaxPartID,
	}
	for _, p := range upload.Parts {
		result.Parts = append(result.Parts, s3types.PartInfo{
			PartNumber:   p.Number,
			LastModified: amzTime(p.LastModified),
			ETag:         quoteETag(p.ETag),
			Size:         p.Size,
		})
	}

	writeResponse(w, d, http.StatusOK, result)
}

func (s *Server) handleMultipartError(w http.ResponseWriter, d *Data, err error) {
	switch {
	case errors.Is(err, multipart.ErrNoSuchUpload):
		writeErrorResponse(w, d, s3err.ErrNoSuchUpload)
	case errors.Is(err, multipart.ErrInvalidPartNumber):
		writeErrorWithMessage(w, d, s3err.ErrInvalidArgument, "Part number must be between 1 and 10000.")
	case errors.Is(err, multipart.ErrInvalidPart):
		writeErrorResponse(w, d, s3err.ErrInvalidPart)
	case errors.Is(err, storage.ErrBucketNotFound):
		writeErrorResponse(w, d, s3err.ErrNoSuchBucket)
	default:
		logger.Ctx(d.Ctx).Error().Err(err).Msg("multipart operation")
		writeErrorResponse(w, d, s3err.ErrInternalError)
	}
}
