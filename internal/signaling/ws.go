package signaling

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/1ureka/wsxfer/internal/util"
)

// Path is where the signaling endpoint is served.
const Path = "/ws"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server is the sender-side WebSocket endpoint. It admits the first client
// presenting the right PIN and turns away everyone after that.
type Server struct {
	pin     string
	addr    string
	httpSrv *http.Server

	admitted atomic.Bool
	accepted chan *websocket.Conn // the admitted client, until WaitForClient takes it
}

// NewServer creates a signaling server for addr (":0" picks a free port).
func NewServer(pin, addr string) *Server {
	return &Server{pin: pin, addr: addr, accepted: make(chan *websocket.Conn, 1)}
}

// Start binds the listener, serves Path in the background and returns the
// bound port.
func (s *Server) Start() (int, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return 0, fmt.Errorf("listen for signaling on %q: %w", s.addr, err)
	}

	routes := http.NewServeMux()
	routes.HandleFunc(Path, s.handleWS)
	s.httpSrv = &http.Server{Handler: routes}
	go func() { _ = s.httpSrv.Serve(ln) }()

	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("pin") != s.pin {
		util.LogWarning("rejected signaling client %s: invalid PIN", r.RemoteAddr)
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	// Claim the single slot before the handshake completes, so the client
	// that sees its upgrade first is the one admitted.
	first := s.admitted.CompareAndSwap(false, true)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("signaling upgrade from %s failed: %v", r.RemoteAddr, err)
		if first {
			s.admitted.Store(false)
		}
		return
	}

	if !first {
		util.LogWarning("rejected signaling client %s: already connected", r.RemoteAddr)
		reject(conn, "already connected")
		return
	}
	util.LogDebug("signaling client %s accepted", r.RemoteAddr)
	s.accepted <- conn
}

func reject(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	conn.Close()
}

// WaitForClient blocks until a client is accepted or ctx is done.
func (s *Server) WaitForClient(ctx context.Context) (*websocket.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case conn := <-s.accepted:
		return conn, nil
	}
}

// Close stops accepting. A client already handed out stays open.
func (s *Server) Close() {
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

// ErrUnauthorized is returned by Connect when the server rejects the PIN.
var ErrUnauthorized = errors.New("signaling server rejected the PIN")

// Connect dials a signaling URL such as ws://192.168.1.20:8080/ws?pin=123456.
func Connect(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	switch {
	case err == nil:
		return conn, nil
	case resp != nil && resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	default:
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}
}

// GeneratePIN returns a uniformly random decimal PIN of n digits, leading
// zeros included.
func GeneratePIN(n int) string {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	s := v.String()
	return strings.Repeat("0", n-len(s)) + s
}
