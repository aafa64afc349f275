// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getcarrier/s3gw/pkg/s3api/s3action"
)

func TestRouter_MatchRequest(t *testing.T) {
	t.Parallel()

	router := NewRouter()

	tests := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		action  s3action.Action
		bucket  string
		key     string
		wantErr error
	}{
		{name: "list buckets", method: "GET", target: "/", action: s3action.ListBuckets},
		{name: "create bucket", method: "PUT", target: "/mybucket", action: s3action.CreateBucket, bucket: "mybucket"},
		{name: "delete bucket", method: "DELETE", target: "/mybucket", action: s3action.DeleteBucket, bucket: "mybucket"},
		{name: "head bucket", method: "HEAD", target: "/mybucket", action: s3action.HeadBucket, bucket: "mybucket"},
		{name: "bucket location", method: "GET", target: "/mybucket?location", action: s3action.GetBucketLocation, bucket: "mybucket"},
		{name: "list objects", method: "GET", target: "/mybucket?prefix=a/", action: s3action.ListObjectsV2, bucket: "mybucket"},
		{name: "bulk delete", method: "POST", target: "/mybucket?delete", action: s3action.DeleteObjects, bucket: "mybucket"},
		{name: "put object", method: "PUT", target: "/mybucket/a/b.txt", action: s3action.PutObject, bucket: "mybucket", key: "a/b.txt"},
		{name: "get object", method: "GET", target: "/mybucket/a/b.txt", action: s3action.GetObject, bucket: "mybucket", key: "a/b.txt"},
		{name: "head object", method: "HEAD", target: "/mybucket/a/b.txt", action: s3action.HeadObject, bucket: "mybucket", key: "a/b.txt"},
		{name: "delete object", method: "DELETE", target: "/mybucket/a/b.txt", action: s3action.DeleteObject, bucket: "mybucket", key: "a/b.txt"},
		{
			name:    "copy object",
			method:  "PUT",
			target:  "/mybucket/dst.txt",
			headers: map[string]string{"x-amz-copy-source": "/src-bucket/src.txt"},
			action:  s3action.CopyObject,
			bucket:  "mybucket",
			key:     "dst.txt",
		},
		{name: "create multipart", method: "POST", target: "/mybucket/big.bin?uploads", action: s3action.CreateMultipartUpload, bucket: "mybucket", key: "big.bin"},
		{name: "upload part", method: "PUT", target: "/mybucket/big.bin?partNumber=1&uploadId=u1", action: s3action.UploadPart, bucket: "mybucket", key: "big.bin"},
		{name: "complete multipart", method: "POST", target: "/mybucket/big.bin?uploadId=u1", action: s3action.CompleteMultipartUpload, bucket: "mybucket", key: "big.bin"},
		{name: "abort multipart", method: "DELETE", target: "/mybucket/big.bin?uploadId=u1", action: s3action.AbortMultipartUpload, bucket: "mybucket", key: "big.bin"},
		{name: "list parts", method: "GET", target: "/mybucket/big.bin?uploadId=u1", action: s3action.ListParts, bucket: "mybucket", key: "big.bin"},
		// A recognized resource with a method no route allows is a
		// method mismatch, not an unroutable request.
		{name: "post root", method: "POST", target: "/", wantErr: errMethodNotAllowed},
		{name: "post bucket without delete", method: "POST", target: "/mybucket", wantErr: errMethodNotAllowed},
		{name: "post key without multipart query", method: "POST", target: "/mybucket/key", wantErr: errMethodNotAllowed},
		{name: "patch bucket", method: "PATCH", target: "/mybucket", wantErr: errMethodNotAllowed},
		{name: "invalid utf8 bucket", method: "GET", target: "/%ff%fe", wantErr: errNoRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			match, err := router.MatchRequest(req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, match.Action)
			assert.Equal(t, tt.bucket, match.Bucket)
			assert.Equal(t, tt.key, match.Key)
		})
	}
}

func TestRouter_MoveObjects(t *testing.T) {
	t.Parallel()

	router := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/move_objects/src-bucket/report.csv/dst-bucket/archived.csv", nil)
	match, err := router.MatchRequest(req)
	require.NoError(t, err)
	assert.Equal(t, s3action.MoveObjects, match.Action)
	assert.Equal(t, "src-bucket", match.SrcBucket)
	assert.Equal(t, "report.csv", match.SrcKey)
	assert.Equal(t, "dst-bucket", match.DstBucket)
	assert.Equal(t, "archived.csv", match.DstKey)

	// Keys are single segments on this route; the wrong segment count
	// falls through to the key routes, where POST fits no method.
	req = httptest.NewRequest(http.MethodPost, "/move_objects/src/a/b/dst/key", nil)
	_, err = router.MatchRequest(req)
	assert.ErrorIs(t, err, errMethodNotAllowed)

	// GET falls through to the bucket routes, where "move_objects" is
	// just a bucket name.
	req = httptest.NewRequest(http.MethodGet, "/move_objects/src/key/dst/key2", nil)
	match, err = router.MatchRequest(req)
	require.NoError(t, err)
	assert.Equal(t, s3action.GetObject, match.Action)
	assert.Equal(t, "move_objects", match.Bucket)
}
