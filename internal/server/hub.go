package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/config"
	"github.com/Tyrowin/chatrelay/internal/observability"
)

// Hub is the connection lifecycle manager. Its Run loop is the only goroutine
// that touches the protocol handler, so accepts, frames and disconnections are
// applied strictly one at a time in arrival order.
type Hub struct {
	handler    *chat.Handler
	clients    map[chat.ConnID]*Client
	register   chan *Client
	unregister chan disconnect
	inbound    chan inboundFrame
	cfg        config.Config
	metrics    *observability.Metrics
	logger     zerolog.Logger
	sessions   atomic.Int64
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub with its own protocol handler, roster and history.
func NewHub(cfg config.Config, metrics *observability.Metrics, logger zerolog.Logger) *Hub {
	cfg = config.Sanitize(cfg)
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	handler := chat.NewHandler(chat.Options{
		HistoryLimit:      cfg.HistoryLimit,
		MaxUsernameLength: cfg.MaxUsernameLength,
		Logger:            logger,
		Recorder:          metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		handler:    handler,
		clients:    make(map[chat.ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan disconnect),
		inbound:    make(chan inboundFrame),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger.With().Str("component", "hub").Logger(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SessionCount returns the number of registered sessions. Safe for concurrent use.
func (h *Hub) SessionCount() int {
	return int(h.sessions.Load())
}

// Register hands an accepted client to the event loop. It returns false when
// the hub is shutting down; the caller then owns the connection.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// deliver forwards a frame to the event loop. It returns false once the hub
// has stopped.
func (h *Hub) deliver(client *Client, payload []byte) bool {
	select {
	case h.inbound <- inboundFrame{client: client, payload: payload}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// deregister reports a closed or failed connection to the event loop.
func (h *Hub) deregister(client *Client, cause error) {
	select {
	case h.unregister <- disconnect{client: client, cause: cause}:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's event loop. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn().Msg("Received nil client registration; skipping")
				continue
			}
			h.accept(client)

		case d := <-h.unregister:
			h.drop(d.client, d.cause)

		case f := <-h.inbound:
			if _, ok := h.clients[f.client.id]; !ok {
				continue
			}
			// Errors are already logged by the handler; the connection stays open.
			_ = h.handler.HandleFrame(f.client.id, f.payload)
		}
	}
}

func (h *Hub) accept(client *Client) {
	h.clients[client.id] = client
	h.handler.Connect(client)
	h.sessions.Store(int64(h.handler.Roster().Len()))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// drop is the single deregistration path for both orderly closes and
// transport errors. Repeated calls for the same client are no-ops.
func (h *Hub) drop(client *Client, cause error) {
	if client == nil {
		return
	}
	if cause != nil {
		h.logger.Error().Err(cause).Str("conn", string(client.id)).Str("addr", client.addr).
			Msg("WebSocket error; treating as disconnection")
	}
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		client.markClosed()
	}
	h.handler.Disconnect(client.id)
	h.sessions.Store(int64(h.handler.Roster().Len()))
}

// shutdownClients closes every connection without announcing departures.
func (h *Hub) shutdownClients() {
	h.logger.Info().Int("clients", len(h.clients)).Msg("Shutting down all client connections")

	for id, client := range h.clients {
		client.markClosed()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Warn().Err(err).Str("conn", string(id)).Msg("Error closing client connection")
			}
		}
		delete(h.clients, id)
	}
	h.sessions.Store(0)
}

// Shutdown stops the event loop and waits for all client goroutines to finish
// or for ctx to be done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info().Msg("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("Hub shutdown completed successfully")
		return nil
	case <-ctx.Done():
		h.logger.Warn().Err(ctx.Err()).Msg("Hub shutdown interrupted, some goroutines may still be running")
		return ctx.Err()
	}
}
