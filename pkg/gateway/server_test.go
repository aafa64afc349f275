// Copyright 2025 Carrier Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getcarrier/s3gw/pkg/credential"
	"github.com/getcarrier/s3gw/pkg/multipart"
	"github.com/getcarrier/s3gw/pkg/platform"
	"github.com/getcarrier/s3gw/pkg/s3api/s3consts"
	"github.com/getcarrier/s3gw/pkg/s3api/s3types"
	"github.com/getcarrier/s3gw/pkg/storage"
)

const (
	testProjectID     = int64(7)
	testUserID        = int64(42)
	testSessionSecret = "test-session-secret"
)

type testEnv struct {
	ts        *httptest.Server
	mem       *platform.Memory
	creds     *credential.Service
	accessKey string
	secretKey string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, err := storage.New(storage.Config{Type: storage.TypeMemory})
	require.NoError(t, err)

	mem := platform.NewMemory()
	mem.AddProject(testProjectID, "acme")
	mem.AddMember(testProjectID, testUserID)

	creds := credential.NewService(mem)
	cred, err := creds.Create(context.Background(), "ci", testProjectID, testUserID, 0, []string{"read", "write"})
	require.NoError(t, err)

	tracker := multipart.NewTracker(multipart.NewMemoryStore(), backend)

	srv := NewServer(context.Background(), Config{
		Backend:     backend,
		Tracker:     tracker,
		Credentials: creds,
		Projects:    mem,
		Sessions:    platform.NewSessionService(testSessionSecret),
		Registerer:  prometheus.NewRegistry(),
	})
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:        ts,
		mem:       mem,
		creds:     creds,
		accessKey: cred.AccessKeyID,
		secretKey: cred.SecretAccessKey,
	}
}

// do sends a SigV4-signed request to the test server.
func (e *testEnv) do(t *testing.T, method, target string, body []byte) *http.Response {
	t.Helper()
	return e.doWithKeys(t, method, target, body, e.accessKey, e.secretKey)
}

func (e *testEnv) doWithKeys(t *testing.T, method, target string, body []byte, accessKey, secretKey string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.ts.URL+target, bytes.NewReader(body))
	require.NoError(t, err)
	signTestRequest(req, accessKey, secretKey)

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// doSession sends a bearer-token request.
func (e *testEnv) doSession(t *testing.T, method, target string, body []byte, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.ts.URL+target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func sessionToken(t *testing.T, userID, name string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   userID,
		"name":  name,
		"email": name + "@example.com",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSessionSecret))
	require.NoError(t, err)
	return token
}

// signTestRequest signs with the unsigned-payload marker the way a
// client over TLS would.
func signTestRequest(req *http.Request, accessKey, secretKey string) {
	const (
		region  = "us-east-1"
		service = "s3"
	)
	now := time.Now().UTC()
	dateStamp := now.Format(s3consts.DateStampFormat)
	amzDate := now.Format(s3consts.Iso8601BasicFormat)

	if req.Host == "" {
		req.Host = req.URL.Host
	}
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Content-Sha256", s3consts.UnsignedPayload)

	signedHeaders := []string{"host", "x-amz-content-sha256", "x-amz-date"}
	canonicalHeaders := "host:" + req.Host + "\n" +
		"x-amz-content-sha256:" + s3consts.UnsignedPayload + "\n" +
		"x-amz-date:" + amzDate + "\n"

	canonicalRequest := req.Method + "\n" +
		req.URL.Path + "\n" +
		canonicalQuery(req.URL.Query()) + "\n" +
		canonicalHeaders + "\n" +
		strings.Join(signedHeaders, ";") + "\n" +
		s3consts.UnsignedPayload

	h := sha256.Sum256([]byte(canonicalRequest))
	scope := dateStamp + "/" + region + "/" + service + "/aws4_request"
	stringToSign := s3consts.SigV4Algorithm + "\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(h[:])

	key := testHMAC([]byte("AWS4"+secretKey), dateStamp)
	key = testHMAC(key, region)
	key = testHMAC(key, service)
	key = testHMAC(key, "aws4_request")
	sig := hex.EncodeToString(testHMAC(key, stringToSign))

	req.Header.Set("Authorization", s3consts.SigV4Algorithm+" "+
		"Credential="+accessKey+"/"+scope+", "+
		"SignedHeaders="+strings.Join(signedHeaders, ";")+", "+
		"Signature="+sig)
}

func testHMAC(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func canonicalQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	escape := func(s string) string {
		return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, escape(k)+"="+escape(query.Get(k)))
	}
	return strings.Join(parts, "&")
}

func decodeXML[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGateway_BucketAndObjectLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/reports", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodHead, "/reports", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Duplicate create conflicts.
	resp = env.do(t, http.MethodPut, "/reports", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/Bad_Name", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	content := []byte("hello,world\n1,2\n")
	contentSum := md5.Sum(content)
	wantETag := `"` + hex.EncodeToString(contentSum[:]) + `"`
	resp = env.do(t, http.MethodPut, "/reports/q1/data.csv", content)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wantETag, resp.Header.Get("ETag"))

	resp = env.do(t, http.MethodGet, "/reports/q1/data.csv", nil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Equal(t, wantETag, resp.Header.Get("ETag"))

	resp = env.do(t, http.MethodHead, "/reports/q1/data.csv", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, wantETag, resp.Header.Get("ETag"))
	assert.Equal(t, strconv.Itoa(len(content)), resp.Header.Get("Content-Length"))

	resp = env.do(t, http.MethodHead, "/reports/q1/missing.csv", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/reports/q1/missing.csv", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	errResp := decodeXML[struct {
		Code string `xml:"Code"`
	}](t, resp)
	assert.Equal(t, "NoSuchKey", errResp.Code)

	result := decodeXML[s3types.ListAllMyBucketsResult](t, env.do(t, http.MethodGet, "/", nil))
	require.Len(t, result.Buckets.Buckets, 1)
	assert.Equal(t, "reports", result.Buckets.Buckets[0].Name)
	assert.Equal(t, "acme", result.Owner.DisplayName)

	// Bucket with an object in it cannot be deleted.
	resp = env.do(t, http.MethodDelete, "/reports", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Deleting a missing key still succeeds.
	resp = env.do(t, http.MethodDelete, "/reports/q1/missing.csv", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/reports/q1/data.csv", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/reports", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodHead, "/reports", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateway_ListObjectsV2(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/data", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, key := range []string{"logs/a.log", "logs/b.log", "models/m1.bin", "readme.md"} {
		resp := env.do(t, http.MethodPut, "/data/"+key, []byte(key))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// Delimiter groups directories.
	result := decodeXML[s3types.ListBucketResult](t, env.do(t, http.MethodGet, "/data?delimiter=%2F", nil))
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "readme.md", result.Contents[0].Key)
	require.Len(t, result.CommonPrefixes, 2)
	assert.Equal(t, "logs/", result.CommonPrefixes[0].Prefix)
	assert.Equal(t, "models/", result.CommonPrefixes[1].Prefix)
	assert.Equal(t, 3, result.KeyCount)
	assert.False(t, result.IsTruncated)

	// Prefix narrows the listing.
	result = decodeXML[s3types.ListBucketResult](t, env.do(t, http.MethodGet, "/data?prefix=logs%2F", nil))
	require.Len(t, result.Contents, 2)
	assert.Equal(t, "logs/a.log", result.Contents[0].Key)

	// Pagination walks all keys through continuation tokens.
	var keys []string
	token := ""
	for {
		target := "/data?max-keys=2"
		if token != "" {
			target += "&continuation-token=" + url.QueryEscape(token)
		}
		page := decodeXML[s3types.ListBucketResult](t, env.do(t, http.MethodGet, target, nil))
		for _, c := range page.Contents {
			keys = append(keys, c.Key)
		}
		if !page.IsTruncated {
			break
		}
		require.NotEmpty(t, page.NextContinuationToken)
		token = page.NextContinuationToken
	}
	assert.Equal(t, []string{"logs/a.log", "logs/b.log", "models/m1.bin", "readme.md"}, keys)

	// max-keys=0 yields an empty, untruncated page.
	result = decodeXML[s3types.ListBucketResult](t, env.do(t, http.MethodGet, "/data?max-keys=0", nil))
	assert.Empty(t, result.Contents)
	assert.Equal(t, 0, result.KeyCount)
	assert.False(t, result.IsTruncated)
	assert.Empty(t, result.NextContinuationToken)

	resp = env.do(t, http.MethodGet, "/data?continuation-token=%21%21not-base64%21%21", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/missing-bucket", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateway_DeleteObjects(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/data", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, key := range []string{"a.txt", "b.txt"} {
		resp := env.do(t, http.MethodPut, "/data/"+key, []byte("x"))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	reqBody := `<Delete><Object><Key>a.txt</Key></Object><Object><Key>b.txt</Key></Object><Object><Key>never-existed.txt</Key></Object></Delete>`
	result := decodeXML[s3types.DeleteResult](t, env.do(t, http.MethodPost, "/data?delete", []byte(reqBody)))
	assert.Len(t, result.Deleted, 3)
	assert.Empty(t, result.Errors)

	listing := decodeXML[s3types.ListBucketResult](t, env.do(t, http.MethodGet, "/data", nil))
	assert.Zero(t, listing.KeyCount)

	resp = env.do(t, http.MethodPost, "/data?delete", []byte("<Delete></Delete>"))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_CopyAndMove(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	for _, bucket := range []string{"src", "dst"} {
		resp := env.do(t, http.MethodPut, "/"+bucket, nil)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	content := []byte("payload")
	resp := env.do(t, http.MethodPut, "/src/orig.txt", content)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, env.ts.URL+"/dst/copy.txt", nil)
	require.NoError(t, err)
	req.Header.Set("x-amz-copy-source", "/src/orig.txt")
	signTestRequest(req, env.accessKey, env.secretKey)
	resp, err = env.ts.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	copyResult := decodeXML[s3types.CopyObjectResult](t, resp)
	assert.NotEmpty(t, copyResult.ETag)

	// Source stays after a copy.
	resp = env.do(t, http.MethodGet, "/src/orig.txt", nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, content, body)

	resp = env.do(t, http.MethodPost, "/move_objects/src/orig.txt/dst/moved.txt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	moveResult := decodeXML[s3types.MoveObjectsResult](t, resp)
	assert.Equal(t, 1, moveResult.Moved)

	// Source is gone after a move.
	resp = env.do(t, http.MethodGet, "/src/orig.txt", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/dst/moved.txt", nil)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, content, body)

	// Move from a missing bucket.
	resp = env.do(t, http.MethodPost, "/move_objects/ghost/key/dst/key", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Copy with a malformed source header.
	req, err = http.NewRequest(http.MethodPut, env.ts.URL+"/dst/bad.txt", nil)
	require.NoError(t, err)
	req.Header.Set("x-amz-copy-source", "no-key")
	signTestRequest(req, env.accessKey, env.secretKey)
	resp, err = env.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_MultipartLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/media", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	initiated := decodeXML[s3types.InitiateMultipartUploadResult](t,
		env.do(t, http.MethodPost, "/media/video.bin?uploads", nil))
	require.NotEmpty(t, initiated.UploadID)
	assert.Equal(t, "media", initiated.Bucket)
	assert.Equal(t, "video.bin", initiated.Key)

	uploadID := url.QueryEscape(initiated.UploadID)

	// Upload parts out of order.
	resp = env.do(t, http.MethodPut, "/media/video.bin?partNumber=2&uploadId="+uploadID, []byte("-part-two"))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag2 := resp.Header.Get("ETag")

	resp = env.do(t, http.MethodPut, "/media/video.bin?partNumber=1&uploadId="+uploadID, []byte("part-one"))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag1 := resp.Header.Get("ETag")

	resp = env.do(t, http.MethodPut, "/media/video.bin?partNumber=0&uploadId="+uploadID, []byte("nope"))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	parts := decodeXML[s3types.ListPartsResult](t,
		env.do(t, http.MethodGet, "/media/video.bin?uploadId="+uploadID, nil))
	require.Len(t, parts.Parts, 2)
	assert.Equal(t, 1, parts.Parts[0].PartNumber)
	assert.Equal(t, 2, parts.Parts[1].PartNumber)

	completeBody := `<CompleteMultipartUpload>` +
		`<Part><PartNumber>1</PartNumber><ETag>` + etag1 + `</ETag></Part>` +
		`<Part><PartNumber>2</PartNumber><ETag>` + etag2 + `</ETag></Part>` +
		`</CompleteMultipartUpload>`
	completed := decodeXML[s3types.CompleteMultipartUploadResult](t,
		env.do(t, http.MethodPost, "/media/video.bin?uploadId="+uploadID, []byte(completeBody)))
	assert.Equal(t, "/media/video.bin", completed.Location)
	assert.True(t, strings.HasSuffix(strings.Trim(completed.ETag, `"`), "-2"))

	resp = env.do(t, http.MethodGet, "/media/video.bin", nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "part-one-part-two", string(body))

	// Upload state is gone after completion.
	resp = env.do(t, http.MethodGet, "/media/video.bin?uploadId="+uploadID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Abort flow on a second upload.
	initiated = decodeXML[s3types.InitiateMultipartUploadResult](t,
		env.do(t, http.MethodPost, "/media/other.bin?uploads", nil))
	uploadID = url.QueryEscape(initiated.UploadID)

	resp = env.do(t, http.MethodDelete, "/media/other.bin?uploadId="+uploadID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/media/other.bin?uploadId="+uploadID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Initiating against a missing bucket fails.
	resp = env.do(t, http.MethodPost, "/missing/f.bin?uploads", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateway_AuthFailures(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	// Wrong secret.
	resp := env.doWithKeys(t, http.MethodGet, "/", nil, env.accessKey, "wrong-secret-0000000000000000000000000")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	errResp := decodeXML[struct {
		Code string `xml:"Code"`
	}](t, resp)
	assert.Equal(t, "AccessDenied", errResp.Code)

	// Unknown access key.
	resp = env.doWithKeys(t, http.MethodGet, "/", nil, "ELITEA000007ZZZZZZZ9", env.secretKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// No credentials at all.
	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/", nil)
	require.NoError(t, err)
	resp, err = env.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Deactivated credential stops working.
	require.NoError(t, env.creds.Delete(context.Background(), env.accessKey))
	resp = env.do(t, http.MethodGet, "/", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGateway_BearerSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := sessionToken(t, "42", "alice")

	// Bearer requests must name a project.
	resp := env.doSession(t, http.MethodGet, "/", nil, token)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.doSession(t, http.MethodGet, "/?project_id=7", nil, token)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.doSession(t, http.MethodPut, "/session-bucket?project_id=7", nil, token)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A credential was auto-provisioned for the user.
	creds, err := env.creds.List(context.Background(), testProjectID)
	require.NoError(t, err)
	var provisioned bool
	for _, c := range creds {
		if strings.Contains(c.Name, "auto-provisioned") {
			provisioned = true
		}
	}
	assert.True(t, provisioned)

	// Non-members are rejected.
	outsider := sessionToken(t, "99", "mallory")
	resp = env.doSession(t, http.MethodGet, "/?project_id=7", nil, outsider)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Garbage tokens are rejected.
	resp = env.doSession(t, http.MethodGet, "/?project_id=7", nil, "not-a-jwt")
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGateway_CredentialsAPI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := sessionToken(t, "42", "alice")

	createBody := []byte(`{"name":"deploy key","expires_in_days":30}`)
	resp := env.doSession(t, http.MethodPost, "/api/v1/credentials?project_id=7", createBody, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created credential.Credential
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.NotEmpty(t, created.SecretAccessKey)
	assert.Equal(t, testProjectID, created.ProjectID)

	// The new key signs S3 requests.
	resp = env.doWithKeys(t, http.MethodGet, "/", nil, created.AccessKeyID, created.SecretAccessKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Listing never exposes secrets.
	resp = env.doSession(t, http.MethodGet, "/api/v1/credentials?project_id=7", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []credential.Credential
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.NotEmpty(t, listed)
	for _, c := range listed {
		assert.Empty(t, c.SecretAccessKey)
	}

	// Rotation invalidates the old secret.
	resp = env.doSession(t, http.MethodPost, "/api/v1/credentials/"+created.AccessKeyID+"/rotate", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rotated credential.Credential
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rotated))
	resp.Body.Close()
	assert.Equal(t, created.AccessKeyID, rotated.AccessKeyID)
	assert.NotEqual(t, created.SecretAccessKey, rotated.SecretAccessKey)

	resp = env.doWithKeys(t, http.MethodGet, "/", nil, created.AccessKeyID, created.SecretAccessKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = env.doWithKeys(t, http.MethodGet, "/", nil, rotated.AccessKeyID, rotated.SecretAccessKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Deactivation.
	resp = env.doSession(t, http.MethodDelete, "/api/v1/credentials/"+created.AccessKeyID, nil, token)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.doWithKeys(t, http.MethodGet, "/", nil, rotated.AccessKeyID, rotated.SecretAccessKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Non-members cannot touch credentials.
	outsider := sessionToken(t, "99", "mallory")
	resp = env.doSession(t, http.MethodGet, "/api/v1/credentials?project_id=7", nil, outsider)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// No session, no API.
	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/v1/credentials?project_id=7", nil)
	require.NoError(t, err)
	resp, err = env.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/area", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// POST on a bucket without ?delete matches the resource but fits no
	// method on it.
	resp = env.do(t, http.MethodPost, "/area", nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	errResp := decodeXML[struct {
		Code string `xml:"Code"`
	}](t, resp)
	assert.Equal(t, "MethodNotAllowed", errResp.Code)

	resp = env.do(t, http.MethodPost, "/area/file.txt", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGateway_ReadOnlyCredential(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/data", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPut, "/data/a.txt", []byte("x"))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readOnly, err := env.creds.Create(context.Background(), "read only", testProjectID, testUserID, 0, []string{"read"})
	require.NoError(t, err)

	resp = env.doWithKeys(t, http.MethodGet, "/data/a.txt", nil, readOnly.AccessKeyID, readOnly.SecretAccessKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.doWithKeys(t, http.MethodPut, "/data/b.txt", []byte("y"), readOnly.AccessKeyID, readOnly.SecretAccessKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.doWithKeys(t, http.MethodDelete, "/data/a.txt", nil, readOnly.AccessKeyID, readOnly.SecretAccessKey)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGateway_JSONFormat(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/data", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/?format=json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var result s3types.ListAllMyBucketsResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	require.Len(t, result.Buckets.Buckets, 1)
	assert.Equal(t, "data", result.Buckets.Buckets[0].Name)

	resp = env.do(t, http.MethodGet, "/missing/key.txt?format=json", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errBody map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	resp.Body.Close()
	assert.Equal(t, "NoSuchBucket", errBody["code"])
}
