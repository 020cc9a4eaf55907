package gateway

import (
	"encoding/json"

	"github.com/soyeahso/helix/internal/domain"
)

// ProtocolVersion is the frame protocol version spoken by this server.
const ProtocolVersion = 1

// Frame types.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Server-pushed events. All but the challenge go to a session's room.
const (
	EventChallenge       = "connect.challenge"
	EventSequenceUpdated = "sequence.updated"
	EventChatMessage     = "chat.message"
	EventToolCall        = "tool.call"
)

// Events is advertised to clients in the hello payload.
var Events = []string{EventChallenge, EventSequenceUpdated, EventChatMessage, EventToolCall}

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocol       = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeMethodNotFound = "method_not_found"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal"
)

// Frame is the envelope for every WebSocket message; Type selects which
// of the remaining fields are set.
type Frame struct {
	Type string `json:"type"`

	// req
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// res
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// event
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	Error *ErrorShape `json:"error,omitempty"`
}

// ErrorShape is the error body of a failed response.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ConnectParams are sent by the client in the "connect" request that
// answers the challenge.
type ConnectParams struct {
	Protocol int          `json:"protocol"`
	Client   ClientInfo   `json:"client"`
	Auth     *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
}

// ConnectAuth carries credentials in the connect request.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// ChallengePayload opens every connection.
type ChallengePayload struct {
	Nonce string `json:"nonce"`
	TS    int64  `json:"ts"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
}

// ServerInfo identifies the gateway.
type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// Features lists the RPC methods and events this server supports.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// SequencePayload carries a session's full sequence. It is the
// sequence.updated event body and the session.join result.
type SequencePayload struct {
	SessionID string                   `json:"session_id"`
	Sequence  []domain.OutreachMessage `json:"sequence"`
}

// ChatPayload is a chat.message event body and the chat.send result.
type ChatPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Role      string `json:"role"`
}

// ToolPayload is a tool.call event body: a human-readable progress label.
type ToolPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// NewRequest creates a request frame.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, nil
}

// NewResponse creates a success response frame.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeResponse, ID: id, OK: boolPtr(true), Payload: raw}, nil
}

// NewErrorResponse creates a failed response frame.
func NewErrorResponse(id string, errShape ErrorShape) Frame {
	return Frame{Type: FrameTypeResponse, ID: id, OK: boolPtr(false), Error: &errShape}
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, nil
}

func boolPtr(b bool) *bool { return &b }
