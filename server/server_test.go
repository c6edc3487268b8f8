package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/kun/exception"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node"
	nodeexception "github.com/yaoapp/node/exception"
)

var testRoot string

func TestMain(m *testing.M) {
	log.SetLevel(log.ErrorLevel)
	gin.SetMode(gin.ReleaseMode)

	dir, err := os.MkdirTemp("", "node-server-*")
	if err != nil {
		panic(err)
	}
	testRoot = dir

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func prepare(t *testing.T) *Server {
	engine, err := node.New(node.Option{LogLevel: "error"})
	require.NoError(t, err)

	server := New(engine, Option{Root: testRoot})
	t.Cleanup(func() {
		server.Close()
		engine.Close()
	})
	return server
}

func request(t *testing.T, server *Server, method string, path string, body string) (int, map[string]interface{}) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	res := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	}
	return w.Code, res
}

func TestAPI(t *testing.T) {
	server := prepare(t)

	code, res := request(t, server, "GET", "/api/status", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, false, res["started"])
	assert.Equal(t, "main.js", res["main"])
	assert.Equal(t, float64(0), res["pending"])
	assert.NotEmpty(t, res["id"])

	code, res = request(t, server, "POST", "/api/call", `{"code": "1 + 1"}`)
	assert.Equal(t, 409, code)
	assert.Equal(t, "InvalidState", res["kind"])

	code, _ = request(t, server, "POST", "/api/files", `{"name": "test.js", "code": "module.exports = { hello: function (name) { return 'Hello ' + name; } };"}`)
	assert.Equal(t, 200, code)

	code, res = request(t, server, "POST", "/api/start", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, true, res["started"])

	code, res = request(t, server, "POST", "/api/start", "")
	assert.Equal(t, 409, code)
	assert.Equal(t, "Node engine is already started.", res["message"])

	code, res = request(t, server, "POST", "/api/call", `{"code": "({ sum: 1 + 1, list: [1, 2] })"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, map[string]interface{}{"sum": float64(2), "list": []interface{}{float64(1), float64(2)}}, res["result"])

	code, res = request(t, server, "POST", "/api/call", `{"code": "require('test.js').hello('node')"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, "Hello node", res["result"])

	code, res = request(t, server, "POST", "/api/call", `{"code": "undefined"}`)
	assert.Equal(t, 200, code)
	assert.Contains(t, res, "result")
	assert.Nil(t, res["result"])

	code, res = request(t, server, "POST", "/api/call", `{"code": "throw new Error('boom')"}`)
	assert.Equal(t, 500, code)
	assert.Equal(t, "EngineEvaluation", res["kind"])
	assert.Contains(t, res["message"], "boom")

	code, _ = request(t, server, "POST", "/api/stop", "")
	assert.Equal(t, 200, code)

	code, res = request(t, server, "POST", "/api/stop", "")
	assert.Equal(t, 409, code)
	assert.Equal(t, "Node engine is not started.", res["message"])
}

func TestAPIInvalidRequest(t *testing.T) {
	server := prepare(t)

	code, res := request(t, server, "POST", "/api/call", "")
	assert.Equal(t, 400, code)
	assert.Equal(t, "InvalidArgument", res["kind"])

	code, _ = request(t, server, "POST", "/api/call", "{")
	assert.Equal(t, 400, code)

	code, res = request(t, server, "POST", "/api/functions", `{"name": "not valid"}`)
	assert.Equal(t, 400, code)
	assert.Equal(t, "InvalidArgument", res["kind"])

	code, _ = request(t, server, "POST", "/api/files", `{"name": "", "code": ""}`)
	assert.Equal(t, 400, code)
}

func TestEvents(t *testing.T) {
	server := prepare(t)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return server.hub.Online() == 1 }, 2*time.Second, 10*time.Millisecond)

	code, _ := request(t, server, "POST", "/api/functions", `{"name": "notify"}`)
	require.Equal(t, 200, code)
	code, _ = request(t, server, "POST", "/api/start", "")
	require.Equal(t, 200, code)

	code, _ = request(t, server, "POST", "/api/call", `{"code": "notify(1, 'a')"}`)
	require.Equal(t, 200, code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	event := node.CallEvent{}
	require.NoError(t, jsoniter.Unmarshal(message, &event))
	assert.Equal(t, "notify", event.Name)
	assert.Equal(t, `[1,"a"]`, event.ArgsJSON)

	server.hub.Stop()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"localhost:8000"})

	req := httptest.NewRequest("GET", "/api/events", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:8000")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://example.com")
	assert.False(t, check(req))

	assert.True(t, checkOrigin(nil)(req))
}

func TestStartStop(t *testing.T) {
	server := prepare(t)
	server.option.Host = "127.0.0.1"

	errs := make(chan error, 1)
	go func() { errs <- server.Start() }()

	assert.Equal(t, READY, <-server.Event())
	assert.True(t, server.Ready())

	port, err := server.Port()
	require.NoError(t, err)
	assert.Greater(t, port, 0)

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/api/status")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(body), `"started":false`)

	require.NoError(t, server.Stop())
	assert.Equal(t, CLOSED, <-server.Event())
	assert.NoError(t, <-errs)
	assert.False(t, server.Ready())
	assert.Error(t, server.Stop())
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(gin.CustomRecovery(recovery))
	router.GET("/kun", func(c *gin.Context) { exception.New("I'm a teapot", 418).Throw() })
	router.GET("/timeout", func(c *gin.Context) { fail(context.DeadlineExceeded) })
	router.GET("/engine", func(c *gin.Context) { fail(nodeexception.New(nodeexception.InvalidState, "stopped")) })
	router.GET("/panic", func(c *gin.Context) { panic("exploded") })

	for path, want := range map[string][]interface{}{
		"/kun":     {418, "InvalidArgument", "I'm a teapot"},
		"/timeout": {504, "EngineInternal", "the engine operation timed out"},
		"/engine":  {409, "InvalidState", "stopped"},
		"/panic":   {500, "EngineInternal", "exploded"},
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, want[0], w.Code, path)

		res := map[string]interface{}{}
		require.NoError(t, jsoniter.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, want[1], res["kind"], path)
		assert.Equal(t, want[2], res["message"], path)
	}
}
