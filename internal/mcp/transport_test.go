package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, tools ...*Tool) (*httptest.Server, *SessionStore) {
	t.Helper()
	store := NewSessionStore(testDispatcher(t, tools...))
	srv := httptest.NewServer(NewHTTPHandler(store))
	t.Cleanup(srv.Close)
	return srv, store
}

func postEnvelope(t *testing.T, url, sessionID string, body string, accept string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, r io.Reader) *Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(r).Decode(&resp))
	return &resp
}

func TestPostInitializeCreatesSession(t *testing.T) {
	srv, store := testServer(t)

	resp := postEnvelope(t, srv.URL, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	sessionID := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, sessionID)
	_, ok := store.Get(sessionID)
	assert.True(t, ok)

	envelope := decodeResponse(t, resp.Body)
	assert.Nil(t, envelope.Error)
	assert.Equal(t, json.RawMessage(`1`), envelope.ID)
}

func TestPostClientSuppliedSessionID(t *testing.T) {
	srv, store := testServer(t)

	resp := postEnvelope(t, srv.URL, "my-session", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, "")
	resp.Body.Close()
	assert.Equal(t, "my-session", resp.Header.Get(SessionHeader))

	first, ok := store.Get("my-session")
	require.True(t, ok)

	// Retry of the establishing call reuses the instance.
	resp = postEnvelope(t, srv.URL, "my-session", `{"jsonrpc":"2.0","id":2,"method":"initialize","params":{}}`, "")
	resp.Body.Close()
	again, ok := store.Get("my-session")
	require.True(t, ok)
	assert.Same(t, first, again)
	assert.Equal(t, 1, store.Len())
}

func TestPostNonEstablishingWithoutSession(t *testing.T) {
	srv, _ := testServer(t)

	resp := postEnvelope(t, srv.URL, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Invalid or missing session ID", strings.TrimSpace(string(body)))
}

func TestPostParseError(t *testing.T) {
	srv, _ := testServer(t)

	resp := postEnvelope(t, srv.URL, "", `{not json`, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope := decodeResponse(t, resp.Body)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, CodeParseError, envelope.Error.Code)
}

func TestPostNotificationAccepted(t *testing.T) {
	srv, _ := testServer(t)

	resp := postEnvelope(t, srv.URL, "n1", `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"x"}}`, "")
	resp.Body.Close()
	// Establish first so the follow-up notification has a session.
	resp = postEnvelope(t, srv.URL, "n1", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestPostEventStreamNegotiation(t *testing.T) {
	srv, _ := testServer(t)

	resp := postEnvelope(t, srv.URL, "", `{"jsonrpc":"2.0","id":7,"method":"initialize","params":{}}`, "text/event-stream")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, _ := io.ReadAll(resp.Body)
	require.True(t, strings.HasPrefix(string(body), "event: message\ndata: "))

	data := strings.TrimPrefix(strings.Split(string(body), "\n")[1], "data: ")
	envelope := decodeResponse(t, strings.NewReader(data))
	assert.Nil(t, envelope.Error)
	assert.Equal(t, json.RawMessage(`7`), envelope.ID)
}

func TestGetWithoutSessionHeader(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Invalid or missing session ID", strings.TrimSpace(string(body)))
}

func TestGetUnknownSession(t *testing.T) {
	srv, _ := testServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set(SessionHeader, "never-created")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStreamDeliversNotifications(t *testing.T) {
	srv, store := testServer(t)

	transport, err := store.ResolveOrCreate("push-me", true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	req.Header.Set(SessionHeader, "push-me")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.True(t, transport.Notify(newResult(json.RawMessage(`"srv-1"`), map[string]string{"hello": "client"})))

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data, "expected a data frame on the push stream")

	envelope := decodeResponse(t, strings.NewReader(data))
	assert.Equal(t, json.RawMessage(`"srv-1"`), envelope.ID)

	// Termination closes the hanging stream.
	require.NoError(t, store.Terminate("push-me"))
	for scanner.Scan() {
	}
	_, err = resp.Body.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestDeleteTerminatesSession(t *testing.T) {
	srv, store := testServer(t)

	resp := postEnvelope(t, srv.URL, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, "")
	resp.Body.Close()
	sessionID := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, sessionID)

	del := func() *http.Response {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL, nil)
		req.Header.Set(SessionHeader, sessionID)
		r, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		r.Body.Close()
		return r
	}

	assert.Equal(t, http.StatusOK, del().StatusCode)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, http.StatusBadRequest, del().StatusCode, "second terminate is a client error")
}

func TestUnsupportedHTTPMethod(t *testing.T) {
	srv, _ := testServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
