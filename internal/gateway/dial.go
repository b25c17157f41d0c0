package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/leechcore/internal/config"
	"github.com/soyeahso/leechcore/internal/version"
)

// Remote is an authenticated client connection to a running gateway.
type Remote struct {
	ws    *websocket.Conn
	hello HelloOK

	wmu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Frame
	err     error

	events chan Frame
	done   chan struct{}
}

// URL returns the WebSocket URL of the gateway described by cfg.
func URL(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	if cfg.Bind == "custom" && cfg.CustomBindHost != "" && cfg.CustomBindHost != "0.0.0.0" {
		host = cfg.CustomBindHost
	}
	scheme := "ws"
	if cfg.TLS.Enabled {
		scheme = "wss"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + "/ws"
}

// Dial connects to url and completes the connect handshake.
func Dial(ctx context.Context, url string, auth ConnectAuth) (*Remote, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}
	ws.SetReadLimit(maxPayload)

	hello, err := clientHandshake(ws, auth)
	if err != nil {
		ws.Close()
		return nil, err
	}

	r := &Remote{
		ws:      ws,
		hello:   hello,
		pending: make(map[string]chan Frame),
		events:  make(chan Frame, 64),
		done:    make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func clientHandshake(ws *websocket.Conn, auth ConnectAuth) (HelloOK, error) {
	var challenge Frame
	if err := ws.ReadJSON(&challenge); err != nil {
		return HelloOK{}, fmt.Errorf("reading challenge: %w", err)
	}
	if challenge.Type != FrameTypeEvent || challenge.Event != EventChallenge {
		return HelloOK{}, fmt.Errorf("expected %s, got %s %s", EventChallenge, challenge.Type, challenge.Event)
	}

	req, err := NewRequest(uuid.New().String(), "connect", ConnectParams{
		MinProtocol: ProtocolVersion,
		MaxProtocol: ProtocolVersion,
		Client: ClientInfo{
			ID:       "leechcore-cli",
			Version:  version.Version,
			Platform: runtime.GOOS,
		},
		Auth: &auth,
	})
	if err != nil {
		return HelloOK{}, err
	}
	if err := ws.WriteJSON(req); err != nil {
		return HelloOK{}, fmt.Errorf("sending connect: %w", err)
	}

	var resp Frame
	if err := ws.ReadJSON(&resp); err != nil {
		return HelloOK{}, fmt.Errorf("reading hello: %w", err)
	}
	if resp.Error != nil {
		return HelloOK{}, resp.Error
	}
	var hello HelloOK
	if err := json.Unmarshal(resp.Payload, &hello); err != nil {
		return HelloOK{}, fmt.Errorf("parsing hello: %w", err)
	}
	return hello, nil
}

// Hello returns the server's handshake answer.
func (r *Remote) Hello() HelloOK { return r.hello }

// Events delivers event frames. Events arriving while the channel is full
// are dropped.
func (r *Remote) Events() <-chan Frame { return r.events }

// Call sends a request and decodes the response payload into out, which may
// be nil. Error responses are returned as *ErrorShape.
func (r *Remote) Call(ctx context.Context, method string, params, out any) error {
	id := uuid.New().String()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return err
	}

	ch := make(chan Frame, 1)
	r.mu.Lock()
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return err
	}
	r.pending[id] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	r.wmu.Lock()
	err = r.ws.WriteJSON(req)
	r.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil || len(resp.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Payload, out)
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the connection.
func (r *Remote) Close() error {
	r.wmu.Lock()
	_ = r.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.wmu.Unlock()
	err := r.ws.Close()
	<-r.done
	return err
}

func (r *Remote) readLoop() {
	defer close(r.done)
	defer close(r.events)
	for {
		var f Frame
		if err := r.ws.ReadJSON(&f); err != nil {
			r.mu.Lock()
			r.err = errors.Join(ErrClientClosed, err)
			r.mu.Unlock()
			return
		}

		switch f.Type {
		case FrameTypeResponse:
			r.mu.Lock()
			ch, ok := r.pending[f.ID]
			r.mu.Unlock()
			if ok {
				ch <- f
			}
		case FrameTypeEvent:
			select {
			case r.events <- f:
			default:
			}
		}
	}
}
