// Package ws serves the relay's message channel over websockets. Each
// connection gets one read loop, so messages from a client are handled in
// the order they were sent.
package ws

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/metrics"
	"github.com/dmitrijs2005/vaultrelay/internal/server/protocol"
	"github.com/dmitrijs2005/vaultrelay/internal/server/ratelimit"
	"github.com/dmitrijs2005/vaultrelay/internal/server/sessions"
	"github.com/gorilla/websocket"
)

// Dispatcher handles one inbound text frame of a session.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *sessions.Session, frame []byte)
}

type Options struct {
	MaxMessageBytes int64
	TrustProxy      bool
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxMessageBytes: 100 * 1024 * 1024,
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
	}
}

type Handler struct {
	ctx        context.Context
	upgrader   websocket.Upgrader
	sessions   *sessions.Registry
	dispatcher Dispatcher
	gate       *ratelimit.Gate
	metrics    *metrics.Metrics
	logger     logging.Logger
	opts       Options

	// wg tracks connections that are still inside ServeHTTP.
	wg sync.WaitGroup
}

// NewHandler builds the websocket endpoint. ctx bounds the lifetime of every
// connection served by the handler.
func NewHandler(ctx context.Context, r *sessions.Registry, d Dispatcher, g *ratelimit.Gate, m *metrics.Metrics, logger logging.Logger, opts Options) *Handler {
	return &Handler{
		ctx: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions:   r,
		dispatcher: d,
		gate:       g,
		metrics:    m,
		logger:     logger.With("module", "ws"),
		opts:       opts,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug(r.Context(), "upgrade failed", "error", err)
		return
	}
	h.wg.Add(1)
	defer h.wg.Done()

	ip := ClientIP(r, h.opts.TrustProxy)
	c := &conn{ws: wsConn, writeWait: h.opts.WriteWait}
	sess := h.sessions.Open(c, ip)

	h.metrics.Connections.Inc()
	h.logger.Info(h.ctx, "client connected", "conn_id", sess.ID(), "remote", ip)

	defer func() {
		h.sessions.Close(sess.ID())
		_ = c.Close()
		h.metrics.Connections.Dec()
		h.logger.Info(h.ctx, "client disconnected", "conn_id", sess.ID())
	}()

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go h.keepalive(ctx, c)
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	h.readLoop(ctx, c, sess, ip)
}

// Wait blocks until every connection served so far has left its read loop.
// http.Server.Shutdown does not wait for hijacked connections, so callers
// close the sessions and then Wait before releasing the store.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) readLoop(ctx context.Context, c *conn, sess *sessions.Session, ip string) {
	c.ws.SetReadLimit(h.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		kind, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Warn(ctx, "connection error", "conn_id", sess.ID(), "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))

		if kind != websocket.TextMessage {
			h.reject(ctx, sess, protocol.CodeParseError, "binary frames are not supported")
			continue
		}

		if scope := h.gate.Admit(ip, protocol.PeekVaultID(frame)); scope != ratelimit.ScopeNone {
			h.metrics.RateLimited.WithLabelValues(string(scope)).Inc()
			h.reject(ctx, sess, protocol.CodeRateLimited, common.ErrorRateLimited.Error())
			continue
		}

		h.dispatcher.Dispatch(ctx, sess, frame)
	}
}

func (h *Handler) reject(ctx context.Context, sess *sessions.Session, code protocol.Code, msg string) {
	h.metrics.Errors.WithLabelValues(string(code)).Inc()
	if err := sess.Send(protocol.NewError(code, msg)); err != nil {
		h.logger.Warn(ctx, "failed to send reply", "conn_id", sess.ID(), "error", err)
	}
}

func (h *Handler) keepalive(ctx context.Context, c *conn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// ClientIP returns the peer address of r, or the first X-Forwarded-For hop
// when trustProxy is set.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
