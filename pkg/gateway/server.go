// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/getcarrier/s3gw/pkg/credential"
	"github.com/getcarrier/s3gw/pkg/multipart"
	"github.com/getcarrier/s3gw/pkg/platform"
	"github.com/getcarrier/s3gw/pkg/s3api/s3action"
	"github.com/getcarrier/s3gw/pkg/s3api/s3err"
	"github.com/getcarrier/s3gw/pkg/s3api/signature"
	"github.com/getcarrier/s3gw/pkg/storage"
)

// DefaultMoveMaxSize caps the copy and move paths, which buffer the
// whole object server-side.
const DefaultMoveMaxSize = 512 << 20

type Handler func(*Data, http.ResponseWriter)

// Config holds everything a Server needs.
type Config struct {
	Backend     storage.Backend
	Tracker     *multipart.Tracker
	Credentials *credential.Service
	Projects    platform.Projects
	Sessions    platform.Sessions
	Registerer  prometheus.Registerer

	// MoveMaxSize limits the move/copy paths; 0 means DefaultMoveMaxSize.
	MoveMaxSize int64
	// RateLimitRPS enables the rate-limit filter when positive.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the S3 gateway HTTP server.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	backend     storage.Backend
	tracker     *multipart.Tracker
	credentials *credential.Service
	projects    platform.Projects
	sessions    platform.Sessions

	moveMaxSize int64

	chain    *Chain
	handlers map[s3action.Action]Handler

	metricsRequest         *prometheus.CounterVec
	metricsRequestDuration *prometheus.HistogramVec
}

// NewServer wires up the filter chain and handler table.
func NewServer(ctx context.Context, cfg Config) *Server {
	ctx, cancel := context.WithCancel(ctx)

	moveMaxSize := cfg.MoveMaxSize
	if moveMaxSize <= 0 {
		moveMaxSize = DefaultMoveMaxSize
	}

	s := &Server{
		ctx:         ctx,
		cancel:      cancel,
		backend:     cfg.Backend,
		tracker:     cfg.Tracker,
		credentials: cfg.Credentials,
		projects:    cfg.Projects,
		sessions:    cfg.Sessions,
		moveMaxSize: moveMaxSize,
		handlers:    make(map[s3action.Action]Handler),
		metricsRequest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3gw_requests_counter",
			Help: "Number of S3 API requests received",
		}, []string{"action", "status_code"}),
		metricsRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "s3gw_request_duration_seconds",
			Help:    "Duration of S3 API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "status_code"}),
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(s.metricsRequest, s.metricsRequestDuration)
	}

	verifier := signature.NewV4Verifier(cfg.Credentials)

	s.chain = NewChain(cfg.Registerer)
	s.chain.AddFilter(NewRequestIDFilter())
	if cfg.RateLimitRPS > 0 {
		s.chain.AddFilter(NewRateLimitFilter(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	s.chain.AddFilter(NewParserFilter())
	s.chain.AddFilter(NewAuthenticationFilter(verifier, cfg.Credentials, cfg.Projects, cfg.Sessions))

	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.handlers[s3action.ListBuckets] = s.ListBucketsHandler
	s.handlers[s3action.CreateBucket] = s.CreateBucketHandler
	s.handlers[s3action.DeleteBucket] = s.DeleteBucketHandler
	s.handlers[s3action.HeadBucket] = s.HeadBucketHandler
	s.handlers[s3action.GetBucketLocation] = s.GetBucketLocationHandler
	s.handlers[s3action.ListObjectsV2] = s.ListObjectsV2Handler
	s.handlers[s3action.PutObject] = s.PutObjectHandler
	s.handlers[s3action.GetObject] = s.GetObjectHandler
	s.handlers[s3action.HeadObject] = s.HeadObjectHandler
	s.handlers[s3action.DeleteObject] = s.DeleteObjectHandler
	s.handlers[s3action.DeleteObjects] = s.DeleteObjectsHandler
	s.handlers[s3action.CopyObject] = s.CopyObjectHandler
	s.handlers[s3action.MoveObjects] = s.MoveObjectsHandler
	s.handlers[s3action.CreateMultipartUpload] = s.CreateMultipartUploadHandler
	s.handlers[s3action.UploadPart] = s.UploadPartHandler
	s.handlers[s3action.CompleteMultipartUpload] = s.CompleteMultipartUploadHandler
	s.handlers[s3action.AbortMultipartUpload] = s.AbortMultipartUploadHandler
	s.handlers[s3action.ListParts] = s.ListPartsHandler
}

// Handler returns the full HTTP surface: the credential management API
// and the S3 protocol catch-all.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/credentials", http.HandlerFunc(s.credentialsAPI))
	mux.Handle("/api/v1/credentials/", http.HandlerFunc(s.credentialsAPI))
	mux.Handle("/", s)
	return mux
}

// Close stops the server context.
func (s *Server) Close() {
	s.cancel()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	wrapped := &wrappedResponseRecorder{ResponseWriter: w}

	d := NewData(r.Context(), r)
	_, err := s.chain.Run(d)

	defer func() {
		// A client hangup mid-request is not a server error.
		if wrapped.statusCode == http.StatusInternalServerError && errors.Is(r.Context().Err(), context.Canceled) {
			wrapped.statusCode = 0
		}
		status := strconv.Itoa(wrapped.statusCode)
		s.metricsRequest.WithLabelValues(d.S3Info.Action.String(), status).Inc()
		s.metricsRequestDuration.WithLabelValues(d.S3Info.Action.String(), status).Observe(time.Since(start).Seconds())
	}()

	if err != nil {
		var code s3err.ErrorCode
		if errors.As(err, &code) {
			writeErrorResponse(wrapped, d, code)
		} else {
			writeErrorResponse(wrapped, d, s3err.ErrInternalError)
		}
		return
	}

	handler, exists := s.handlers[d.S3Info.Action]
	if !exists {
		writeErrorResponse(wrapped, d, s3err.ErrNotImplemented)
		return
	}

	if d.S3Info.Action.IsWrite() && !hasPermission(d.Auth, "write") {
		writeErrorResponse(wrapped, d, s3err.ErrAccessDenied)
		return
	}

	handler(d, wrapped)
}

// hasPermission checks the authenticated credential's permission list.
func hasPermission(auth *AuthContext, perm string) bool {
	if auth == nil || auth.Credential == nil {
		return false
	}
	for _, p := range auth.Credential.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// handleStorageError maps backend sentinel errors to S3 responses.
func (s *Server) handleStorageError(w http.ResponseWriter, d *Data, err error) {
	switch {
	case errors.Is(err, storage.ErrBucketNotFound):
		writeErrorResponse(w, d, s3err.ErrNoSuchBucket)
	case errors.Is(err, storage.ErrBucketExists):
		writeErrorResponse(w, d, s3err.ErrBucketAlreadyExists)
	case errors.Is(err, storage.ErrBucketNotEmpty):
		writeErrorResponse(w, d, s3err.ErrBucketNotEmpty)
	case errors.Is(err, storage.ErrObjectNotFound):
		writeErrorResponse(w, d, s3err.ErrNoSuchKey)
	default:
		writeErrorResponse(w, d, s3err.ErrInternalError)
	}
}
