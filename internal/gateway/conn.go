package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/leechcore/internal/logging"
)

const (
	writeTimeout  = 10 * time.Second
	sendQueueSize = 64
)

var (
	// ErrClientClosed is returned when writing to, or reading from, a closed
	// connection.
	ErrClientClosed = errors.New("client connection closed")
	// ErrSlowClient is returned when a client's outbound queue is full. The
	// client is disconnected.
	ErrSlowClient = errors.New("client not reading; disconnected")
)

// Client is an authenticated WebSocket connection. Frames are queued and
// written by the client's own writer goroutine.
type Client struct {
	ConnID     string
	Info       ClientInfo
	AuthMethod string
	Connected  time.Time

	ws        *websocket.Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(ws *websocket.Conn, info ClientInfo, authMethod string) *Client {
	c := &Client{
		ConnID:     uuid.New().String(),
		Info:       info,
		AuthMethod: authMethod,
		Connected:  time.Now(),
		ws:         ws,
		out:        make(chan []byte, sendQueueSize),
		done:       make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send encodes a frame and queues it, waiting while the queue is full.
func (c *Client) Send(f Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- raw:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// trySend queues raw without waiting. A full queue disconnects the client.
func (c *Client) trySend(raw []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- raw:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		_ = c.Close()
		return ErrSlowClient
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case raw := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// Respond sends a success response for the given request ID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for the given request ID.
func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

func (c *Client) readFrame() (Frame, error) {
	var f Frame
	err := c.ws.ReadJSON(&f)
	return f, err
}

// Close stops the writer and closes the connection. Closing twice is a
// no-op.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			err = c.ws.Close()
		}
	})
	return err
}

// clientSet holds the connected clients of a server.
type clientSet struct {
	mu  sync.RWMutex
	m   map[string]*Client
	log *logging.Logger
}

func newClientSet(log *logging.Logger) *clientSet {
	return &clientSet{m: make(map[string]*Client), log: log}
}

func (s *clientSet) add(c *Client) {
	s.mu.Lock()
	s.m[c.ConnID] = c
	n := len(s.m)
	s.mu.Unlock()
	s.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Int("clients", n).Msg("client connected")
}

func (s *clientSet) remove(connID string) {
	s.mu.Lock()
	_, ok := s.m[connID]
	delete(s.m, connID)
	s.mu.Unlock()
	if ok {
		s.log.Info().Str("connId", connID).Msg("client disconnected")
	}
}

func (s *clientSet) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func (s *clientSet) snapshot() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Client, 0, len(s.m))
	for _, c := range s.m {
		out = append(out, c)
	}
	return out
}

// broadcast encodes an event once and queues it for every client without
// blocking. A client whose queue is full is dropped.
func (s *clientSet) broadcast(event string, payload any, seq int64) {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("encoding broadcast")
		return
	}
	raw, err := json.Marshal(f)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("encoding broadcast")
		return
	}
	for _, c := range s.snapshot() {
		switch err := c.trySend(raw); {
		case errors.Is(err, ErrSlowClient):
			s.log.Warn().Str("connId", c.ConnID).Msg("dropping client that stopped reading")
			s.remove(c.ConnID)
		case err != nil:
			s.log.Debug().Err(err).Str("connId", c.ConnID).Msg("broadcast skipped closed client")
		}
	}
}

func (s *clientSet) closeAll() {
	for _, c := range s.snapshot() {
		_ = c.Close()
		s.remove(c.ConnID)
	}
}
