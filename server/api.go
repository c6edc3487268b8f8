package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/exception"
	"github.com/yaoapp/node"
	nodeexception "github.com/yaoapp/node/exception"
)

func (server *Server) setRouter() {
	group := server.router.Group("/api")
	group.GET("/status", server.state)
	group.POST("/start", server.start)
	group.POST("/stop", server.stop)
	group.POST("/files", server.define)
	group.POST("/functions", server.function)
	group.POST("/call", server.call)
	group.GET("/events", server.events)
}

// GET /api/status
func (server *Server) state(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"id":      server.engine.ID,
		"runtime": server.engine.Option().Runtime,
		"started": server.engine.Started(),
		"pending": server.engine.Pending(),
		"main":    server.engine.GetMainScriptFileName(),
		"root":    node.WorkingDirectory(),
		"online":  server.hub.Online(),
	})
}

// POST /api/start {"root": "/data/scripts"}
func (server *Server) start(c *gin.Context) {
	var req startRequest
	bind(c, &req, true)
	if req.Root == "" {
		req.Root = server.option.Root
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), server.option.Timeout)
	defer cancel()
	if err := server.engine.StartWait(ctx, req.Root); err != nil {
		fail(err)
	}
	respond(c, http.StatusOK, gin.H{"started": true, "root": node.WorkingDirectory()})
}

// POST /api/stop
func (server *Server) stop(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), server.option.Timeout)
	defer cancel()
	if err := server.engine.StopWait(ctx); err != nil {
		fail(err)
	}
	respond(c, http.StatusOK, gin.H{"started": false})
}

// POST /api/files {"name": "test.js", "code": "module.exports = ..."}
func (server *Server) define(c *gin.Context) {
	var req fileRequest
	bind(c, &req, false)
	if err := server.engine.DefineScriptFile(req.Name, req.Code); err != nil {
		fail(err)
	}
	respond(c, http.StatusOK, gin.H{"name": req.Name})
}

// POST /api/functions {"name": "notify"}
func (server *Server) function(c *gin.Context) {
	var req functionRequest
	bind(c, &req, false)
	if err := server.engine.RegisterCallFromScript(req.Name, nil); err != nil {
		fail(err)
	}
	respond(c, http.StatusOK, gin.H{"name": req.Name})
}

// POST /api/call {"code": "1 + 1"}
func (server *Server) call(c *gin.Context) {
	var req callRequest
	bind(c, &req, false)

	ctx, cancel := context.WithTimeout(c.Request.Context(), server.option.Timeout)
	defer cancel()
	result, err := server.engine.CallScriptWait(ctx, req.Code)
	if err != nil {
		fail(err)
	}

	var value interface{}
	if result != "" {
		value = jsoniter.RawMessage(result)
	}
	respond(c, http.StatusOK, map[string]interface{}{"result": value})
}

// GET /api/events
func (server *Server) events(c *gin.Context) {
	if _, err := server.hub.Upgrade(c.Writer, c.Request); err != nil {
		c.Abort()
	}
}

// bind decode the request body, panics with a 400 exception
func bind(c *gin.Context, v interface{}, optional bool) {
	data, err := c.GetRawData()
	if err != nil {
		exception.Err(err, http.StatusBadRequest).Throw()
	}

	if len(data) == 0 {
		if optional {
			return
		}
		exception.New("the request body is required", http.StatusBadRequest).Throw()
	}

	if err := jsoniter.Unmarshal(data, v); err != nil {
		exception.New("invalid request body: %s", http.StatusBadRequest, err.Error()).Throw()
	}
}

// fail panics with the engine error, the engine errors are already typed
func fail(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		exception.New("the engine operation timed out", http.StatusGatewayTimeout).Throw()
	}
	panic(nodeexception.Wrap(nodeexception.EngineInternal, err))
}

func respond(c *gin.Context, code int, v interface{}) {
	data, err := jsoniter.Marshal(v)
	if err != nil {
		exception.Err(err, http.StatusInternalServerError).Throw()
	}
	c.Data(code, "application/json; charset=utf-8", data)
}
