package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantor/bucketscope/internal/browse"
	"github.com/vantor/bucketscope/internal/bucketsize"
	"github.com/vantor/bucketscope/internal/kv/memory"
	"github.com/vantor/bucketscope/internal/listcache"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
	"github.com/vantor/bucketscope/internal/objstore/objstoretest"
	"github.com/vantor/bucketscope/internal/session"
)

type testAPI struct {
	srv  *httptest.Server
	fake *objstoretest.Fake
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	backend := memory.New()
	fake := objstoretest.New()
	log := logger.Nop()

	sessions := session.New(backend, nil, log)
	cache := listcache.New(backend, &listcache.Config{Enabled: true, TTL: 300 * time.Second}, log)
	agg := bucketsize.New(backend, fake, nil, log)
	svc := browse.New(sessions, cache, agg, fake, log)

	srv := httptest.NewServer(New(":0", svc, log).Router())
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, fake: fake}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) login(t *testing.T) string {
	t.Helper()
	body := bytes.NewBufferString(`{"access_key_id":"AKIAEXAMPLE","secret_access_key":"secret"}`)
	resp := a.do(t, http.MethodPost, "/api/login", "", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.NotEmpty(t, parsed.Token)
	return parsed.Token
}

func TestAPI_Login(t *testing.T) {
	api := newTestAPI(t)
	api.fake.RequireCreds(objstore.Credentials{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "valid credentials",
			body:       `{"access_key_id":"AKIAEXAMPLE","secret_access_key":"secret"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong credentials",
			body:       `{"access_key_id":"AKIAEXAMPLE","secret_access_key":"nope"}`,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "missing fields",
			body:       `{"access_key_id":"AKIAEXAMPLE"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{broken`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.do(t, http.MethodPost, "/api/login", "", bytes.NewBufferString(tt.body))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAPI_AuthRequired(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/api/buckets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "missing token")

	resp = api.do(t, http.MethodGet, "/api/buckets", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "unknown token")
}

func TestAPI_Logout(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t)

	resp := api.do(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/buckets", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token is dead after logout")
}

func TestAPI_ListWithCacheHeader(t *testing.T) {
	api := newTestAPI(t)
	api.fake.Seed("photos", "a.jpg", []byte("xx"))
	token := api.login(t)

	resp := api.do(t, http.MethodGet, "/api/buckets/photos/objects", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	var page objstore.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "a.jpg", page.Entries[0].Key)

	resp = api.do(t, http.MethodGet, "/api/buckets/photos/objects", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
}

func TestAPI_ListRejectsBadPageSize(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t)

	resp := api.do(t, http.MethodGet, "/api/buckets/photos/objects?page_size=banana", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/buckets/photos/objects?page_size=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UploadDownloadRemove(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t)

	resp := api.do(t, http.MethodPut, "/api/buckets/photos/objects/dir/new.txt", token,
		bytes.NewBufferString("hello"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/buckets/photos/objects/dir/new.txt", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "5", resp.Header.Get("Content-Length"))

	resp = api.do(t, http.MethodDelete, "/api/buckets/photos/objects/dir/new.txt", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/buckets/photos/objects/dir/new.txt", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_RemovePrefix(t *testing.T) {
	api := newTestAPI(t)
	api.fake.Seed("photos", "a/1.txt", []byte("x"))
	api.fake.Seed("photos", "a/2.txt", []byte("x"))
	api.fake.Seed("photos", "b/3.txt", []byte("x"))
	token := api.login(t)

	resp := api.do(t, http.MethodDelete, "/api/buckets/photos/prefix", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "prefix query parameter is required")

	resp = api.do(t, http.MethodDelete, "/api/buckets/photos/prefix?prefix=a/", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.Equal(t, 2, parsed.Removed)
}

func TestAPI_Presign(t *testing.T) {
	api := newTestAPI(t)
	api.fake.Seed("photos", "a.jpg", []byte("x"))
	token := api.login(t)

	resp := api.do(t, http.MethodGet, "/api/buckets/photos/presign/a.jpg", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		URL       string `json:"url"`
		ExpiresIn string `json:"expires_in"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	assert.NotEmpty(t, parsed.URL)
	assert.Equal(t, "15m0s", parsed.ExpiresIn)

	resp = api.do(t, http.MethodGet, "/api/buckets/photos/presign/a.jpg?ttl=1h", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/buckets/photos/presign/a.jpg?ttl=48h", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "ttl beyond the cap is rejected")
}

func TestAPI_BucketSize(t *testing.T) {
	api := newTestAPI(t)
	api.fake.Seed("photos", "a.jpg", make([]byte, 1024))
	token := api.login(t)

	resp := api.do(t, http.MethodGet, "/api/buckets/photos/size", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "nothing calculated yet")

	resp = api.do(t, http.MethodPost, "/api/buckets/photos/size", token, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The computation is fire-and-forget; poll until the result lands.
	require.Eventually(t, func() bool {
		resp := api.do(t, http.MethodGet, "/api/buckets/photos/size", token, nil)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	resp = api.do(t, http.MethodGet, "/api/buckets/photos/size", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result bucketsize.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, int64(1), result.ObjectCount)
	assert.Equal(t, int64(1024), result.TotalSize)
	assert.Equal(t, "1.00 KiB", result.TotalSizeHuman)
}
