package gateway

import (
	"encoding/json"
	"time"

	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/routing"
)

// Frame types for the WebSocket protocol.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Events pushed to authenticated clients.
const (
	EventChallenge  = "connect.challenge"
	EventDispatched = "entity.dispatched"
)

// Frame is the base envelope for all WebSocket messages.
// The Type field discriminates between request, response, and event frames.
type Frame struct {
	Type string `json:"type"`

	// Request fields
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response fields
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Event fields
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	// Error (response only)
	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the standard error format in response frames.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ErrorShape) Error() string { return e.Code + ": " + e.Message }

// ConnectParams are sent by the client in the initial "connect" request.
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Platform string `json:"platform,omitempty"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK is the server's response payload after successful authentication.
type HelloOK struct {
	Protocol int          `json:"protocol"`
	Server   ServerInfo   `json:"server"`
	Features Features     `json:"features"`
	Policy   ServerPolicy `json:"policy"`
}

// ServerInfo identifies the gateway server.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features advertises available RPC methods and events.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// ServerPolicy communicates protocol limits to the client.
type ServerPolicy struct {
	MaxPayload int `json:"maxPayload"`
}

// EntityParams is an entity as sent over the wire. Flags are given by name.
type EntityParams struct {
	Payload    any            `json:"payload"`
	Mime       string         `json:"mime,omitempty"`
	Location   string         `json:"location,omitempty"`
	Flags      []string       `json:"flags,omitempty"`
	Additional map[string]any `json:"additional,omitempty"`
}

// Entity converts the params into an entity, rejecting unknown flags.
func (p EntityParams) Entity() (entity.Entity, error) {
	if p.Payload == nil {
		return entity.Entity{}, errs.New(errs.CodeRequestInvalid, "entity payload is required")
	}
	flags, unknown := entity.ParseFlags(p.Flags)
	if len(unknown) > 0 {
		return entity.Entity{}, errs.New(errs.CodeRequestInvalid, "unknown entity flags", errs.Field("flags", unknown))
	}
	e := entity.MakeEntity(p.Payload, p.Location, flags, p.Mime)
	for k, v := range p.Additional {
		e.Additional[k] = v
	}
	return e, nil
}

// DispatchedEvent is the payload of the entity.dispatched event.
type DispatchedEvent struct {
	Result routing.Result `json:"result"`
	Mime   string         `json:"mime,omitempty"`
	Flags  []string       `json:"flags,omitempty"`
	Time   time.Time      `json:"time"`
}

// StatusResponse is returned by the status method.
type StatusResponse struct {
	Version  string   `json:"version"`
	Phase    string   `json:"phase"`
	UptimeMs int64    `json:"uptimeMs"`
	Plugins  int      `json:"plugins"`
	Handlers []string `json:"handlers"`
	Hooks    int      `json:"hooks"`
	Clients  int      `json:"clients"`
}

// HistoryParams select journal records.
type HistoryParams struct {
	Limit int    `json:"limit,omitempty"`
	Query string `json:"query,omitempty"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:   FrameTypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	ok := true
	return Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		OK:      &ok,
		Payload: raw,
	}, nil
}

// NewErrorResponse creates an error response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	ok := false
	return Frame{
		Type:  FrameTypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &errShape,
	}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}

// errorShape converts an error into the wire format, keeping its code.
func errorShape(err error) ErrorShape {
	code := string(errs.CodeOf(err))
	if code == "" {
		code = "internal_error"
	}
	shape := ErrorShape{Code: code, Message: err.Error()}
	if fields := errs.FieldsOf(err); len(fields) > 0 {
		shape.Details = fields
	}
	return shape
}

// Protocol version supported by this server.
const ProtocolVersion = 1
