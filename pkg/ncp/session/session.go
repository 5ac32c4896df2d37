package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nmos-controlflow/ncp/pkg/ncp/devicemodel"
	"github.com/nmos-controlflow/ncp/pkg/ncp/metrics"
	"github.com/nmos-controlflow/ncp/pkg/ncp/resourcestore"
)

// State is the Control Protocol Session's lifecycle.
type State int

const (
	StateOpening State = iota
	StateActive
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	pingInterval       = 30 * time.Second
	writeWait          = 10 * time.Second
	defaultOutboundCap = 256
)

type rawFrame struct {
	data []byte
	err  error
}

type envelopePeek struct {
	MessageType MessageType `json:"messageType"`
}

// Session is one WebSocket peer of the Control Protocol: one goroutine
// reads frames off the socket, a second owns the bounded outbound queue and
// writes frames plus ping keep-alives on a ticker (the
// cooperative-scheduling model translated to goroutines-per-connection).
type Session struct {
	id    string
	conn  *websocket.Conn
	model *devicemodel.Model
	hub   *resourcestore.Hub
	log   logrus.FieldLogger

	subID      uint64
	events     <-chan resourcestore.ChangeEvent
	overflowed <-chan struct{}

	outbound chan []byte
	state    State

	metrics      *metrics.Metrics
	pingInterval time.Duration
}

// SetMetrics attaches a counter sink; nil (the default) disables recording
// rather than requiring every caller to pass one.
func (s *Session) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetPingInterval overrides the keep-alive ping cadence; zero or negative
// leaves the default (pingInterval) in place.
func (s *Session) SetPingInterval(d time.Duration) {
	if d > 0 {
		s.pingInterval = d
	}
}

// New builds a Session bound to conn, serving commands against model and
// subscribing to hub for change notifications. outboundQueueLen bounds the
// per-session notification mailbox (the backpressure rule); 0
// selects a sane default.
func New(conn *websocket.Conn, model *devicemodel.Model, hub *resourcestore.Hub, log logrus.FieldLogger, outboundQueueLen int) *Session {
	if outboundQueueLen <= 0 {
		outboundQueueLen = defaultOutboundCap
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.New().String()
	s := &Session{
		id:           id,
		conn:         conn,
		model:        model,
		hub:          hub,
		log:          log,
		outbound:     make(chan []byte, outboundQueueLen),
		state:        StateOpening,
		pingInterval: pingInterval,
	}
	s.log = log.WithField("session_id", id)
	s.subID, s.events, s.overflowed = hub.Subscribe(outboundQueueLen, func(resourcestore.OID) bool { return false })
	return s
}

// Run drives the session until ctx is cancelled, the peer disconnects, or
// the session terminates itself (overflow, unparseable envelope). It
// blocks until the session is fully torn down.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.hub.Unsubscribe(s.subID)

	if s.metrics != nil {
		s.metrics.SessionsOpened.Inc()
		s.metrics.SessionsActive.Inc()
		defer s.metrics.SessionsActive.Dec()
		defer s.metrics.SessionsClosed.Inc()
	}

	s.state = StateActive

	raw := make(chan rawFrame)
	go s.readSocket(raw)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(ctx)
	}()

	defer func() {
		close(s.outbound)
		<-writerDone
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			s.state = StateClosed
			return

		case ev := <-s.events:
			s.enqueueNotifications(s.encodeNotifications([]resourcestore.ChangeEvent{ev}))

		case <-s.overflowed:
			s.terminate(devicemodel.StatusBufferOverflow, "outbound notification queue overflowed")
			return

		case frame := <-raw:
			if frame.err != nil {
				s.state = StateClosed
				return
			}
			if !s.handleFrame(frame.data) {
				return
			}
		}
	}
}

func (s *Session) readSocket(out chan<- rawFrame) {
	for {
		_, data, err := s.conn.ReadMessage()
		out <- rawFrame{data: data, err: err}
		if err != nil {
			return
		}
	}
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.outbound:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.WithError(err).Debug("control protocol session write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) enqueue(frame []byte) {
	select {
	case s.outbound <- frame:
	default:
		s.log.Warn("control protocol session outbound queue full, dropping frame")
	}
}

// enqueueNotifications is enqueue plus the notification-specific counters;
// kept separate from enqueue since the latter also carries command
// responses and terminal error frames, which aren't notifications.
func (s *Session) enqueueNotifications(frame []byte) {
	select {
	case s.outbound <- frame:
		if s.metrics != nil {
			s.metrics.NotificationsSent.Inc()
		}
	default:
		s.log.Warn("control protocol session outbound queue full, dropping frame")
		if s.metrics != nil {
			s.metrics.NotificationsDropped.Inc()
		}
	}
}

// handleFrame processes one inbound WebSocket text frame. It returns false
// when the session must stop (a terminal Error message was sent).
func (s *Session) handleFrame(data []byte) bool {
	var peek envelopePeek
	if err := json.Unmarshal(data, &peek); err != nil {
		s.terminate(devicemodel.StatusBadCommandFormat, fmt.Sprintf("unparseable envelope: %v", err))
		return false
	}

	switch peek.MessageType {
	case MessageTypeCommand:
		var msg CommandMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.terminate(devicemodel.StatusBadCommandFormat, fmt.Sprintf("malformed command message: %v", err))
			return false
		}
		s.handleCommandBatch(msg.Commands)
		return true

	case MessageTypeSubscription:
		var msg SubscriptionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.terminate(devicemodel.StatusBadCommandFormat, fmt.Sprintf("malformed subscription message: %v", err))
			return false
		}
		s.handleSubscription(msg.Subscriptions)
		return true

	default:
		s.terminate(devicemodel.StatusBadCommandFormat, "unexpected message type from controller")
		return false
	}
}

// handleCommandBatch dispatches every command in order and, before
// enqueueing the batch's CommandResponseMessage, drains any notifications
// this batch's mutations just published to this session's own mailbox —
// the session loop is the sole consumer of s.events, so nothing else can
// race it for those events, which is what guarantees
// (notifications precede their triggering batch's response).
func (s *Session) handleCommandBatch(commands []Command) {
	results := make([]CommandResult, 0, len(commands))
	for _, cmd := range commands {
		result := s.model.Dispatch(cmd.OID, cmd.MethodID, cmd.Arguments)
		results = append(results, CommandResult{Handle: cmd.Handle, Result: result})
		if s.metrics != nil {
			s.metrics.CommandsProcessed.WithLabelValues(
				fmt.Sprintf("%d.%d", cmd.MethodID.Level, cmd.MethodID.Index)).Inc()
		}
	}

	var pending []resourcestore.ChangeEvent
	for {
		select {
		case ev := <-s.events:
			pending = append(pending, ev)
			continue
		default:
		}
		break
	}
	if len(pending) > 0 {
		s.enqueue(s.encodeNotifications(pending))
	}

	s.enqueue(s.encode(CommandResponseMessage{MessageType: MessageTypeCommandResponse, Responses: results}))
}

// handleSubscription implements Subscription's replace-not-add semantics:
// unknown oids are silently dropped from the set now in effect (see
// §6.1).
func (s *Session) handleSubscription(requested []resourcestore.OID) {
	effective := make([]resourcestore.OID, 0, len(requested))
	wanted := make(map[resourcestore.OID]struct{}, len(requested))
	for _, oid := range requested {
		if _, err := s.model.Store.Get(oid); err != nil {
			continue
		}
		wanted[oid] = struct{}{}
		effective = append(effective, oid)
	}

	s.hub.Rebind(s.subID, func(oid resourcestore.OID) bool {
		_, ok := wanted[oid]
		return ok
	})

	s.enqueue(s.encode(SubscriptionResponseMessage{MessageType: MessageTypeSubscriptionResponse, Subscriptions: effective}))
}

func (s *Session) encodeNotifications(events []resourcestore.ChangeEvent) []byte {
	items := make([]NotificationItem, 0, len(events))
	for _, ev := range events {
		items = append(items, NotificationItem{OID: ev.OID, EventID: ev.Name, EventData: ev.Data})
	}
	return s.encode(NotificationMessage{MessageType: MessageTypeNotification, Notifications: items})
}

func (s *Session) encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).Error("failed to encode control protocol message")
		return nil
	}
	return data
}

// terminate sends a terminal Error message (messageType 5) and marks the
// session as failed; the caller is responsible for returning from Run.
func (s *Session) terminate(status devicemodel.StatusCode, message string) {
	s.state = StateError
	frame := s.encode(ErrorMessage{MessageType: MessageTypeError, Status: status, ErrorMessage: message})
	if frame != nil {
		select {
		case s.outbound <- frame:
		default:
		}
	}
	s.log.WithField("status", status).Warn("control protocol session terminated: " + message)
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}
