// Package server exposes a Node engine over HTTP. The call-from-script events
// are streamed to the websocket clients of /api/events.
package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node"
	"github.com/yaoapp/node/exception"
)

// New create a new server of the engine
func New(engine *node.Engine, option Option) *Server {

	if option.Timeout == 0 {
		option.Timeout = 5 * time.Second
	}

	server := &Server{
		engine: engine,
		option: &option,
		signal: make(chan uint8, 1),
		event:  make(chan uint8, 4),
		hub:    newHub(option.Allows),
	}
	server.status.Store(uint32(CREATED))

	server.router = gin.New()
	server.router.Use(gin.CustomRecovery(recovery), trace)
	server.setRouter()

	go server.hub.run()
	server.listener = engine.AddCallListener(func(event node.CallEvent) {
		message, err := jsoniter.Marshal(event)
		if err != nil {
			log.Error("[Server] %s", err.Error())
			return
		}
		server.hub.Broadcast(message)
	})

	return server
}

// Router the gin router of the server
func (server *Server) Router() *gin.Engine {
	return server.router
}

// Event get event signal
func (server *Server) Event() chan uint8 {
	return server.event
}

// Port get server port
func (server *Server) Port() (int, error) {
	addr, ok := server.addr.(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("can't get port %v", server.addr)
	}
	return addr.Port, nil
}

// Ready check if the status is ready
func (server *Server) Ready() bool {
	return uint8(server.status.Load()) == READY
}

// Start a http server, blocks until the server is stopped
func (server *Server) Start() error {

	switch uint8(server.status.Load()) {
	case READY:
		return exception.New(exception.InvalidState, "server already started")

	case STARTING:
		return exception.New(exception.InvalidState, "server is starting")
	}

	server.status.Store(uint32(STARTING))

	addr := fmt.Sprintf("%s:%d", server.option.Host, server.option.Port)
	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Error("[Server] %s %s", addr, err.Error())
		server.status.Store(uint32(CREATED))
		server.emit(CLOSED)
		return err
	}

	server.addr = listener.Addr()
	srv := &http.Server{Addr: server.addr.String(), Handler: server.router}

	errs := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	defer func() {
		server.status.Store(uint32(CLOSED))
		server.emit(CLOSED)
	}()

	server.status.Store(uint32(READY))
	server.emit(READY)
	log.Info("[Server] %s is ready", srv.Addr)

	select {
	case <-server.signal:
		if err := srv.Close(); err != nil {
			log.Error("[Server] %s close error (%s)", srv.Addr, err.Error())
			return err
		}
		log.Info("[Server] %s was closed", srv.Addr)
		return nil

	case err := <-errs:
		log.Error("[Server] %s was closed (%s)", srv.Addr, err.Error())
		return err
	}
}

// Stop a http server
func (server *Server) Stop() error {
	if !server.Ready() {
		return exception.New(exception.InvalidState, "server is not ready")
	}
	server.signal <- CLOSE
	return nil
}

// Close release the event hub and the engine listener. The engine is not
// closed.
func (server *Server) Close() {
	server.engine.RemoveCallListener(server.listener)
	server.hub.Stop()
}

func (server *Server) emit(status uint8) {
	select {
	case server.event <- status:
	default:
	}
}

// recovery answer the panics of the handlers, the kun exceptions keep their
// code and the engine exceptions carry their kind
func recovery(c *gin.Context, recovered interface{}) {
	err := exception.Recover(recovered)
	if err.Kind == exception.EngineInternal && err.Stack() != "" {
		log.Error("[Server] %s\n%s", err.Message, err.Stack())
	}
	c.JSON(err.Code, gin.H{"code": err.Code, "kind": err.Kind.String(), "message": err.Message})
	c.AbortWithStatus(err.Code)
}

func trace(c *gin.Context) {
	start := time.Now()
	c.Next()
	log.Trace("[Server] %s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
}
