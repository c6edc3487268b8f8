package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yaoapp/node"
)

const (
	// CREATED the server instance was created
	CREATED = uint8(iota)
	// STARTING the server instance is starting
	STARTING
	// READY the server instance is ready
	READY
	// CLOSED the server instance was stopped
	CLOSED
)

const (
	// CLOSE close signal
	CLOSE = uint8(iota)
)

// Server the HTTP host of a Node engine
type Server struct {
	engine   *node.Engine
	router   *gin.Engine
	option   *Option
	addr     net.Addr
	hub      *Hub
	listener int
	signal   chan uint8
	event    chan uint8
	status   atomic.Uint32
}

// Option the server option
//
//	{
//		"host": "127.0.0.1",
//		"port": 5099,
//		"root": "/data/scripts",
//		"timeout": "10s",
//		"allows": ["localhost:8000"]
//	}
type Option struct {
	Host    string        `json:"host,omitempty" yaml:"host,omitempty"`
	Port    int           `json:"port,omitempty" yaml:"port,omitempty"`
	Root    string        `json:"root,omitempty" yaml:"root,omitempty"`       // the default working directory of /api/start
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"` // the engine operations timeout
	Allows  []string      `json:"allows,omitempty" yaml:"allows,omitempty"`   // the allowed websocket origins, all if empty
}

// Hub maintains the set of event stream clients and broadcasts the call events
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	once       sync.Once
	online     atomic.Int32
	up         *websocket.Upgrader
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte
}

type startRequest struct {
	Root string `json:"root"`
}

type fileRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type functionRequest struct {
	Name string `json:"name"`
}

type callRequest struct {
	Code string `json:"code"`
}
