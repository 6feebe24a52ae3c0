package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairtrack/handler"
	"repairtrack/internal/store"
	"repairtrack/router"
	"repairtrack/socket"
)

type wsConn struct {
	conn *websocket.Conn
}

func dialWs(t *testing.T, wsURL string) *wsConn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "Failed to connect")
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &wsConn{conn: conn}
}

func (c *wsConn) writeJSON(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, c.conn.WriteJSON(v))
}

func (c *wsConn) readMessage(t *testing.T) socket.Message {
	t.Helper()
	var msg socket.Message
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := c.conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	require.NoError(t, json.Unmarshal(p, &msg))
	return msg
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, string) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	hub := socket.NewHub(st)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	staticDir := t.TempDir()
	server := httptest.NewServer(router.Setup(st, hub, staticDir, time.Now()))
	t.Cleanup(server.Close)
	return server, st, staticDir
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestGetMissingDocumentReturnsEmptyArray(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := get(t, server.URL+"/data/repairs.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, "[]", body)
}

func TestPostThenGetRoundTrip(t *testing.T) {
	server, _, _ := newTestServer(t)

	content := `[{"id":"t1","brand":"Lenovo"}]`
	resp, err := http.Post(server.URL+"/data/repairs.json", "application/json", strings.NewReader(content))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, body := get(t, server.URL+"/data/repairs.json")
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, content, body)
}

func TestPostInvalidJSONRejectedAndStateUnchanged(t *testing.T) {
	server, st, _ := newTestServer(t)

	prior := `[{"id":"t1"}]`
	require.NoError(t, st.Write("repairs.json", []byte(prior)))

	resp, err := http.Post(server.URL+"/data/repairs.json", "application/json", strings.NewReader("not-json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Invalid JSON data"}`, string(errBody))

	_, body := get(t, server.URL+"/data/repairs.json")
	assert.Equal(t, prior, body)
}

func TestPostBroadcastsToConnectedClients(t *testing.T) {
	server, _, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	connA := dialWs(t, wsURL)
	connB := dialWs(t, wsURL)
	for _, conn := range []*wsConn{connA, connB} {
		conn.writeJSON(t, socket.Message{Type: socket.RequestDataType, File: "repairs.json"})
		conn.readMessage(t)
	}

	// Two writes from different HTTP clients; both subscribers must see
	// both updates in order, and the final GET returns the second.
	for _, content := range []string{`[{"a":1}]`, `[{"a":1},{"a":2}]`} {
		resp, err := http.Post(server.URL+"/data/repairs.json", "application/json", strings.NewReader(content))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	for _, conn := range []*wsConn{connA, connB} {
		first := conn.readMessage(t)
		assert.Equal(t, socket.DataUpdateType, first.Type)
		assert.JSONEq(t, `[{"a":1}]`, string(first.Data))

		second := conn.readMessage(t)
		assert.Equal(t, socket.DataUpdateType, second.Type)
		assert.JSONEq(t, `[{"a":1},{"a":2}]`, string(second.Data))
	}

	_, body := get(t, server.URL+"/data/repairs.json")
	assert.Equal(t, `[{"a":1},{"a":2}]`, body)
}

func TestDeleteMethodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/data/repairs.json", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := get(t, server.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"timestamp"`)
	assert.Contains(t, body, `"uptime"`)
}

func TestCORSPreflight(t *testing.T) {
	server, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/data/repairs.json", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticFileServing(t *testing.T) {
	server, _, staticDir := newTestServer(t)

	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>home</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.css"), []byte("body{}"), 0o644))

	resp, body := get(t, server.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "<html>home</html>", body)

	resp, _ = get(t, server.URL+"/app.css")
	assert.Equal(t, "text/css", resp.Header.Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))

	resp, _ = get(t, server.URL+"/nope.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticRejectsTraversal(t *testing.T) {
	staticDir := t.TempDir()
	outside := filepath.Join(filepath.Dir(staticDir), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	static := &handler.StaticHandler{Root: staticDir}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret.txt"
	rec := httptest.NewRecorder()
	static.Handle(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
