package websockettest

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gorilla/websocket"
)

// Server is an in-process websocket endpoint for transport tests. Every
// incoming connection is upgraded and handed to the configured handler on the
// request goroutine; the connection is closed when the handler returns.
type Server struct {
	httpServer *httptest.Server
}

// NewServer starts a websocket test server that runs handle for each accepted
// connection.
func NewServer(handle func(*websocket.Conn)) *Server {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	return &Server{httpServer: httpServer}
}

// URL returns the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http")
}

// Close shuts the server down and severs every open connection.
func (s *Server) Close() {
	s.httpServer.CloseClientConnections()
	s.httpServer.Close()
}
