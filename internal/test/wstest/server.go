//go:build !js

// Package wstest provides WebSocket servers for tests: an httptest
// Server routing canned behaviours and a Peer scripting raw frames.
package wstest

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server is an httptest.Server with these routes:
//
//	/echo    echoes every message with its type
//	/ping    sends a ping with the payload query parameter, pongs go to Pongs
//	/close   sends a close frame after the first message
//	/text    answers every message with a text message and a binary echo
//	/greet   sends the binary message "hello" right after the handshake
//	/big     sends a binary message of size query parameter bytes
//	/drop    drops the TCP connection after the first message
//	/reject  refuses the handshake with 403
//	/handshake  selects the first offered subprotocol and sends a binary
//	            message with the X-Test header and that subprotocol
type Server struct {
	*httptest.Server

	// Pongs receives the payload of every pong read on /ping.
	Pongs chan []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewServer starts a plain text Server.
func NewServer() *Server {
	s := &Server{
		Pongs: make(chan []byte, 16),
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// NewTLSServer starts a Server using TLS. Use TLSConfig to trust it.
func NewTLSServer() *Server {
	s := &Server{
		Pongs: make(chan []byte, 16),
	}
	s.Server = httptest.NewTLSServer(s.router())
	return s
}

// URL returns the ws:// or wss:// URL of path on s.
func (s *Server) URL(path string) string {
	return strings.Replace(s.Server.URL, "http", "ws", 1) + path
}

// TLSConfig returns a client config trusting the certificate of a Server
// started with NewTLSServer.
func (s *Server) TLSConfig() *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(s.Certificate())
	return &tls.Config{
		RootCAs: pool,
	}
}

func (s *Server) router() http.Handler {
	r := gin.New()
	r.GET("/echo", upgrade(echo))
	r.GET("/ping", upgrade(s.ping))
	r.GET("/close", upgrade(closeAfterFirst))
	r.GET("/text", upgrade(textThenBinary))
	r.GET("/greet", upgrade(greet))
	r.GET("/big", upgrade(big))
	r.GET("/drop", upgrade(drop))
	r.GET("/handshake", handshake)
	r.GET("/reject", func(c *gin.Context) {
		c.String(http.StatusForbidden, "go away")
	})
	return r
}

func upgrade(fn func(c *gin.Context, conn *websocket.Conn)) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(c, conn)
	}
}

func echo(_ *gin.Context, conn *websocket.Conn) {
	for {
		typ, p, err := conn.ReadMessage()
		if err != nil {
			return
		}
		err = conn.WriteMessage(typ, p)
		if err != nil {
			return
		}
	}
}

func (s *Server) ping(c *gin.Context, conn *websocket.Conn) {
	conn.SetPongHandler(func(data string) error {
		s.Pongs <- []byte(data)
		return nil
	})

	err := conn.WriteControl(websocket.PingMessage, []byte(c.Query("payload")), time.Now().Add(time.Second))
	if err != nil {
		return
	}
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func closeAfterFirst(_ *gin.Context, conn *websocket.Conn) {
	_, _, err := conn.ReadMessage()
	if err != nil {
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	err = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	if err != nil {
		return
	}
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func textThenBinary(_ *gin.Context, conn *websocket.Conn) {
	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			return
		}
		err = conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
		if err != nil {
			return
		}
		err = conn.WriteMessage(websocket.BinaryMessage, p)
		if err != nil {
			return
		}
	}
}

func greet(c *gin.Context, conn *websocket.Conn) {
	err := conn.WriteMessage(websocket.BinaryMessage, []byte("hello"))
	if err != nil {
		return
	}
	echo(c, conn)
}

func big(c *gin.Context, conn *websocket.Conn) {
	n, err := strconv.Atoi(c.Query("size"))
	if err != nil {
		return
	}
	err = conn.WriteMessage(websocket.BinaryMessage, make([]byte, n))
	if err != nil {
		return
	}
	echo(c, conn)
}

func drop(_ *gin.Context, conn *websocket.Conn) {
	_, _, err := conn.ReadMessage()
	if err != nil {
		return
	}
	conn.UnderlyingConn().Close()
}

func handshake(c *gin.Context) {
	var protocol string
	if p := websocket.Subprotocols(c.Request); len(p) > 0 {
		protocol = p[0]
	}
	u := websocket.Upgrader{
		Subprotocols: []string{protocol},
		CheckOrigin:  upgrader.CheckOrigin,
	}
	conn, err := u.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	msg := c.GetHeader("X-Test") + " " + conn.Subprotocol()
	err = conn.WriteMessage(websocket.BinaryMessage, []byte(msg))
	if err != nil {
		return
	}
	echo(c, conn)
}
