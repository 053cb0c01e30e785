package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdstudio/engine/internal/testutil"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type apiClient struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testutil.NewDB(t)
	srv := httptest.NewServer(NewRouter(NewDependencies(db, []byte("secret"))))
	t.Cleanup(srv.Close)
	return srv
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.srv.URL+"/api/v1"+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && env.Success {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	if !env.Success {
		require.NotNil(c.t, env.Error)
	}
	return resp.StatusCode
}

func signUp(t *testing.T, srv *httptest.Server, email string) *apiClient {
	t.Helper()
	c := &apiClient{t: t, srv: srv}
	creds := map[string]string{"email": email, "password": "password123", "name": "tester"}
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/auth/register", creds, nil))
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/login", creds, &tok))
	c.token = tok.AccessToken
	return c
}

type project struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type changelog struct {
	ID             string `json:"id"`
	Data           string `json:"data"`
	CurrentVersion bool   `json:"current_version"`
}

func TestSaveAndReadBackOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	c := signUp(t, srv, "a@example.com")

	var p project
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/projects", map[string]string{"name": "P"}, &p))

	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/projects/"+p.ID+"/data", map[string]string{"data": "A"}, nil))
	var list []changelog
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/projects/"+p.ID+"/changelogs", nil, &list))
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Data)
	assert.True(t, list[0].CurrentVersion)

	var full changelog
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/projects/"+p.ID+"/changelogs/"+list[0].ID, nil, &full))
	assert.Equal(t, "A", full.Data)

	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/projects/"+p.ID+"/data", map[string]string{"data": "B"}, nil))
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/projects/"+p.ID+"/changelogs", nil, &list))
	require.Len(t, list, 2)
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/projects/"+p.ID+"/changelogs/"+list[0].ID, nil, &full))
	assert.Equal(t, "B", full.Data)

	var got project
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/projects/"+p.ID, nil, &got))
	assert.Equal(t, "B", got.Data)
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	owner := signUp(t, srv, "owner@example.com")
	other := signUp(t, srv, "other@example.com")

	var p project
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/projects", map[string]string{"name": "P"}, &p))

	assert.Equal(t, http.StatusForbidden, other.do(http.MethodPut, "/projects/"+p.ID+"/data", map[string]string{"data": "x"}, nil))
	assert.Equal(t, http.StatusNotFound, owner.do(http.MethodGet, "/projects/6f1c2b1e-8a43-4d55-9a7e-0b0e6a3f9c11", nil, nil))
	assert.Equal(t, http.StatusBadRequest, owner.do(http.MethodGet, "/projects/not-a-uuid", nil, nil))

	anon := &apiClient{t: t, srv: srv}
	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodGet, "/projects", nil, nil))

	var v struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, owner.do(http.MethodPost, "/projects/"+p.ID+"/versions", map[string]string{"name": "v1"}, &v))
	assert.Equal(t, http.StatusConflict, owner.do(http.MethodPost, "/projects/"+p.ID+"/versions", map[string]string{"name": "v1"}, nil))
	assert.Equal(t, http.StatusBadRequest, owner.do(http.MethodPost, "/auth/register", map[string]string{"email": "bad"}, nil))
}

func TestRollbackOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	c := signUp(t, srv, "a@example.com")

	var p project
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/projects", map[string]string{"name": "P"}, &p))
	var v struct {
		ID             string `json:"id"`
		CurrentHistory string `json:"current_history"`
	}
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/projects/"+p.ID+"/versions", map[string]string{"name": "main"}, &v))

	type history struct {
		ID         string `json:"id"`
		Data       string `json:"data"`
		IsRollback bool   `json:"is_rollback"`
	}
	var h1, h2, rb history
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/versions/"+v.ID+"/histories", map[string]string{"data": "one"}, &h1))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/versions/"+v.ID+"/histories", map[string]string{"data": "two"}, &h2))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/versions/"+v.ID+"/rollback/"+h1.ID, nil, &rb))
	assert.True(t, rb.IsRollback)
	assert.Equal(t, "one", rb.Data)

	var list []history
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/versions/"+v.ID+"/histories", nil, &list))
	assert.Len(t, list, 3)

	var del struct {
		Deleted map[string]int64 `json:"deleted"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/histories/"+h2.ID, nil, &del))
	assert.EqualValues(t, 2, del.Deleted["histories"])

	require.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/projects/"+p.ID, nil, &del))
	assert.EqualValues(t, 1, del.Deleted["versions"])
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/versions/"+v.ID+"/histories", nil, nil))
}

func TestDeleteAccount(t *testing.T) {
	srv := newTestServer(t)
	c := signUp(t, srv, "a@example.com")

	var st struct {
		Theme string `json:"theme"`
	}
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/users/me/settings", map[string]string{"theme": "dark"}, &st))
	assert.Equal(t, "dark", st.Theme)

	var p project
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/projects", map[string]string{"name": "P"}, &p))
	require.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/users/me", nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/users/me", nil, nil))
}
