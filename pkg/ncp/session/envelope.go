// Package session implements the Control Protocol Session: a WebSocket peer
// that frames command/response/notification/subscription/error messages
// over a device model, enforcing per-session subscription filters and
// serializing concurrent command batches.
package session

import (
	"github.com/nmos-controlflow/ncp/pkg/ncp/classregistry"
	"github.com/nmos-controlflow/ncp/pkg/ncp/devicemodel"
	"github.com/nmos-controlflow/ncp/pkg/ncp/resourcestore"
)

// MessageType is the six-member envelope discriminator.
type MessageType int

const (
	MessageTypeCommand              MessageType = 0
	MessageTypeCommandResponse      MessageType = 1
	MessageTypeNotification         MessageType = 2
	MessageTypeSubscription         MessageType = 3
	MessageTypeSubscriptionResponse MessageType = 4
	MessageTypeError                MessageType = 5
)

// Command is one entry of a Command message's commands array.
type Command struct {
	Handle    int32                   `json:"handle"`
	OID       resourcestore.OID       `json:"oid"`
	MethodID  classregistry.ElementID `json:"methodId"`
	Arguments map[string]any          `json:"arguments,omitempty"`
}

// CommandMessage is messageType 0.
type CommandMessage struct {
	MessageType MessageType `json:"messageType"`
	Commands    []Command   `json:"commands"`
}

// CommandResult pairs a command's handle with its MethodResult.
type CommandResult struct {
	Handle int32                    `json:"handle"`
	Result devicemodel.MethodResult `json:"result"`
}

// CommandResponseMessage is messageType 1. Responses appear in the same
// order as the commands in the triggering batch.
type CommandResponseMessage struct {
	MessageType MessageType     `json:"messageType"`
	Responses   []CommandResult `json:"responses"`
}

// NotificationItem is one entry of a Notification message.
type NotificationItem struct {
	OID       resourcestore.OID `json:"oid"`
	EventID   string            `json:"eventId"`
	EventData any               `json:"eventData"`
}

// NotificationMessage is messageType 2. Multiple events MAY be coalesced
// into one message; coalesced events retain source order.
type NotificationMessage struct {
	MessageType   MessageType        `json:"messageType"`
	Notifications []NotificationItem `json:"notifications"`
}

// SubscriptionMessage is messageType 3: it replaces, not adds to, the
// session's subscription set.
type SubscriptionMessage struct {
	MessageType   MessageType         `json:"messageType"`
	Subscriptions []resourcestore.OID `json:"subscriptions"`
}

// SubscriptionResponseMessage is messageType 4: the subscription set now in
// effect, which may differ from requested if any oid was unknown (unknown
// oids are silently dropped).
type SubscriptionResponseMessage struct {
	MessageType   MessageType         `json:"messageType"`
	Subscriptions []resourcestore.OID `json:"subscriptions"`
}

// ErrorMessage is messageType 5, terminal: sent only when the session
// cannot continue.
type ErrorMessage struct {
	MessageType  MessageType            `json:"messageType"`
	Status       devicemodel.StatusCode `json:"status"`
	ErrorMessage string                 `json:"errorMessage"`
}
