package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/acrbridge/internal/bridge"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeCall              MessageType = "call"
	MessageTypePermission        MessageType = "permission"
	MessageTypePing              MessageType = "ping"
	MessageTypeReply             MessageType = "reply"
	MessageTypeError             MessageType = "error"
	MessageTypeNotImplemented    MessageType = "not_implemented"
	MessageTypeEvent             MessageType = "event"
	MessageTypePermissionRequest MessageType = "permission_request"
	MessageTypePong              MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// CallMessage asks the bridge to run an operation
type CallMessage struct {
	BaseMessage
	ID        string           `json:"id"`
	Method    string           `json:"method"`
	Arguments bridge.Arguments `json:"arguments,omitempty"`
}

// PermissionMessage answers a permission request
type PermissionMessage struct {
	BaseMessage
	Granted *bool `json:"granted"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ReplyMessage carries the successful result of a call
type ReplyMessage struct {
	BaseMessage
	ID     string      `json:"id"`
	Result interface{} `json:"result"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	ID      string      `json:"id,omitempty"`
	Code    bridge.Code `json:"error_code"`
	Message string      `json:"message"`
}

// NotImplementedMessage answers a call naming an unknown operation
type NotImplementedMessage struct {
	BaseMessage
	ID     string `json:"id"`
	Method string `json:"method"`
}

// EventMessage carries an asynchronous vendor callback
type EventMessage struct {
	BaseMessage
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments"`
}

// PermissionRequestMessage asks the host for a capture permission
type PermissionRequestMessage struct {
	BaseMessage
	Permission string `json:"permission"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage decodes and validates an incoming envelope
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeCall:
		var msg CallMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid call message: %w", err)
		}
		if msg.ID == "" {
			return nil, fmt.Errorf("id is required")
		}
		if msg.Method == "" {
			return nil, fmt.Errorf("method is required")
		}
		return &msg, nil

	case MessageTypePermission:
		var msg PermissionMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid permission message: %w", err)
		}
		if msg.Granted == nil {
			return nil, fmt.Errorf("granted is required")
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateReplyMessage encodes a bridge reply as the matching envelope
func CreateReplyMessage(reply bridge.Reply) interface{} {
	switch {
	case reply.NotImplemented:
		return &NotImplementedMessage{
			BaseMessage: newBase(MessageTypeNotImplemented),
			ID:          reply.CallID,
			Method:      reply.Method,
		}
	case reply.Err != nil:
		return CreateErrorMessage(reply.CallID, reply.Err.Code, reply.Err.Message)
	default:
		return &ReplyMessage{
			BaseMessage: newBase(MessageTypeReply),
			ID:          reply.CallID,
			Result:      reply.Result,
		}
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(id string, code bridge.Code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		ID:          id,
		Code:        code,
		Message:     message,
	}
}

// CreateEventMessage creates an event envelope
func CreateEventMessage(event bridge.Event) *EventMessage {
	return &EventMessage{
		BaseMessage: newBase(MessageTypeEvent),
		Method:      event.Method,
		Arguments:   event.Payload,
	}
}

// CreatePermissionRequestMessage creates a permission request envelope
func CreatePermissionRequestMessage(permission string) *PermissionRequestMessage {
	return &PermissionRequestMessage{
		BaseMessage: newBase(MessageTypePermissionRequest),
		Permission:  permission,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}
