// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/getcarrier/s3gw/pkg/s3api/s3action"
)

var (
	// errNoRoute means no resource shape matched the request path.
	errNoRoute = errors.New("no route matches the request")
	// errMethodNotAllowed means the path matched a known resource but
	// the method is not supported on it.
	errMethodNotAllowed = errors.New("method not allowed on this resource")
)

// Match is a successfully parsed S3 operation.
type Match struct {
	Action s3action.Action
	Bucket string
	Key    string

	SrcBucket string
	SrcKey    string
	DstBucket string
	DstKey    string
}

// Router parses path-style S3 requests into operations. Route order
// matters: conditional routes come before their unconditional
// fallbacks.
type Router struct {
	bucketRoutes []route
	keyRoutes    []route
}

type condition func(r *http.Request, v url.Values) bool

func queryExists(key string) condition {
	return func(_ *http.Request, v url.Values) bool {
		_, ok := v[key]
		return ok
	}
}

func headerExists(key string) condition {
	key = http.CanonicalHeaderKey(key)
	return func(r *http.Request, _ url.Values) bool {
		_, ok := r.Header[key]
		return ok
	}
}

type route struct {
	method     string
	action     s3action.Action
	conditions []condition
}

func NewRouter() *Router {
	return &Router{
		bucketRoutes: []route{
			{http.MethodGet, s3action.GetBucketLocation, []condition{queryExists("location")}},
			{http.MethodPost, s3action.DeleteObjects, []condition{queryExists("delete")}},
			{http.MethodPut, s3action.CreateBucket, nil},
			{http.MethodDelete, s3action.DeleteBucket, nil},
			{http.MethodHead, s3action.HeadBucket, nil},
			{http.MethodGet, s3action.ListObjectsV2, nil},
		},
		keyRoutes: []route{
			{http.MethodDelete, s3action.AbortMultipartUpload, []condition{queryExists("uploadId")}},
			{http.MethodGet, s3action.ListParts, []condition{queryExists("uploadId")}},
			{http.MethodPost, s3action.CreateMultipartUpload, []condition{queryExists("uploads")}},
			{http.MethodPost, s3action.CompleteMultipartUpload, []condition{queryExists("uploadId")}},
			{http.MethodPut, s3action.UploadPart, []condition{queryExists("partNumber"), queryExists("uploadId")}},
			{http.MethodPut, s3action.CopyObject, []condition{headerExists("x-amz-copy-source")}},
			{http.MethodDelete, s3action.DeleteObject, nil},
			{http.MethodGet, s3action.GetObject, nil},
			{http.MethodHead, s3action.HeadObject, nil},
			{http.MethodPut, s3action.PutObject, nil},
		},
	}
}

// MatchRequest parses a request into a Match. A request whose path
// matches a resource but whose method fits no route on it reports
// errMethodNotAllowed; anything else unroutable reports errNoRoute.
func (r *Router) MatchRequest(req *http.Request) (Match, error) {
	v := req.URL.Query()
	path := strings.TrimPrefix(req.URL.Path, "/")

	if path == "" {
		if req.Method == http.MethodGet {
			return Match{Action: s3action.ListBuckets}, nil
		}
		return Match{}, errMethodNotAllowed
	}

	if match, ok := matchMoveObjects(req, path); ok {
		return match, nil
	}

	bucket, key, _ := strings.Cut(path, "/")
	if !utf8.ValidString(bucket) || !utf8.ValidString(key) {
		return Match{}, errNoRoute
	}

	routes := r.bucketRoutes
	if key != "" {
		routes = r.keyRoutes
	}

	methodMismatch := false
	for _, rt := range routes {
		matched := true
		for _, cond := range rt.conditions {
			if !cond(req, v) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if rt.method != req.Method {
			methodMismatch = true
			continue
		}
		return Match{Action: rt.action, Bucket: bucket, Key: key}, nil
	}
	if methodMismatch {
		return Match{}, errMethodNotAllowed
	}
	return Match{}, errNoRoute
}

// matchMoveObjects handles the non-standard extension route
// POST /move_objects/{srcBucket}/{srcKey}/{dstBucket}/{dstKey}.
// Keys are single path segments on this route.
func matchMoveObjects(req *http.Request, path string) (Match, bool) {
	if !strings.HasPrefix(path, "move_objects/") {
		return Match{}, false
	}
	if req.Method != http.MethodPost {
		return Match{}, false
	}

	segments := strings.Split(path, "/")
	if len(segments) != 5 {
		return Match{}, false
	}
	for _, s := range segments[1:] {
		if s == "" || !utf8.ValidString(s) {
			return Match{}, false
		}
	}

	return Match{
		Action:    s3action.MoveObjects,
		SrcBucket: segments[1],
		SrcKey:    segments[2],
		DstBucket: segments[3],
		DstKey:    segments[4],
	}, true
}
