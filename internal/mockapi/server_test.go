package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func post(t *testing.T, srv *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func bodyOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	email := "owner@test.local"

	resp := post(t, srv, "/auth/register", "", map[string]string{"email": email})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = post(t, srv, "/test/activate-user", "", map[string]string{"email": email})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = post(t, srv, "/auth/login", "", map[string]string{"email": email})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := gjson.Get(bodyOf(t, resp), "accessToken").String()
	require.NotEmpty(t, token)
	return token
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	token := login(t, srv)

	resp := get(t, srv, "/auth/profile", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, gjson.Get(bodyOf(t, resp), "organizationId").String())
}

func TestLoginWithoutActivationFails(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	resp := post(t, srv, "/auth/register", "", map[string]string{"email": "x@y.z"})
	resp.Body.Close()

	resp = post(t, srv, "/auth/login", "", map[string]string{"email": "x@y.z"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	for _, path := range []string{"/auth/profile", "/customers", "/pipelines", "/ai/capabilities"} {
		resp := get(t, srv, path, "")
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRateLimitedRegistration(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{RateLimited: true}))
	defer srv.Close()

	resp := post(t, srv, "/auth/register", "", map[string]string{"email": "x@y.z"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPipelineStagesLocalized(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	token := login(t, srv)

	body := bodyOf(t, get(t, srv, "/pipelines", token))
	pipelineID := gjson.Get(body, "data.0.id").String()
	require.NotEmpty(t, pipelineID)

	body = bodyOf(t, get(t, srv, "/pipelines/"+pipelineID+"/stages", token))
	names := gjson.Get(body, "data.stages.#.name").Array()
	require.Len(t, names, 4)
	assert.Equal(t, "Лиды", names[0].String())
}

func TestUnknownPipeline(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	token := login(t, srv)

	resp := get(t, srv, "/pipelines/nope/stages", token)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCustomerCreateAndList(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	token := login(t, srv)

	resp := post(t, srv, "/customers", token, map[string]string{"firstName": "A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, gjson.Get(bodyOf(t, resp), "id").String())

	body := bodyOf(t, get(t, srv, "/customers", token))
	assert.Equal(t, int64(1), gjson.Get(body, "total").Int())
}

func TestChatEchoesMessage(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{}))
	defer srv.Close()

	token := login(t, srv)

	resp := post(t, srv, "/ai/chat", token, map[string]string{"message": "привет"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, gjson.Get(bodyOf(t, resp), "response").String(), "привет")
}

func TestInjectedFailures(t *testing.T) {
	srv := httptest.NewServer(Handler(ServerConfig{FailureRate: 1.0}))
	defer srv.Close()

	resp := get(t, srv, "/customers", "some-token")
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
