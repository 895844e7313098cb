package obex

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
)

// ConnectionState tracks the lifecycle of a client session.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dialer opens the underlying byte-stream socket to a device's service.
type Dialer interface {
	DialDevice(device string, service uuid.UUID) (net.Conn, error)
}

// ClientSession is an OBEX client session over a stream socket.
//
// State transitions are strictly Idle -> Connecting -> Connected, falling
// back to Idle on any failure. All state-mutating operations are serialized
// behind a single mutex: connect, request and disconnect are mutually
// exclusive.
type ClientSession struct {
	mu sync.Mutex

	state        ConnectionState
	device       string
	service      uuid.UUID
	target       []byte
	dialer       Dialer
	conn         net.Conn
	maxPacket    uint16
	connectionID []byte // assigned by the peer at connect time

	tag string
}

// NewClientSession creates a session targeting the given device. The target
// is the fixed 16-byte service identifier carried in the CONNECT handshake.
func NewClientSession(device string, service uuid.UUID, target []byte, dialer Dialer) *ClientSession {
	return &ClientSession{
		state:     StateIdle,
		device:    device,
		service:   service,
		target:    target,
		dialer:    dialer,
		maxPacket: DefaultMaxPacket,
		tag:       "ObexClient",
	}
}

// State returns the current connection state.
func (s *ClientSession) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is in the Connected state.
func (s *ClientSession) IsConnected() bool {
	return s.State() == StateConnected
}

// Device returns the target device identity.
func (s *ClientSession) Device() string {
	return s.device
}

// ConnectionID returns a copy of the connection id assigned by the peer at
// connect time, or nil before a successful connect.
func (s *ClientSession) ConnectionID() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectionID == nil {
		return nil
	}
	return append([]byte(nil), s.connectionID...)
}

// Connect opens the socket and performs the OBEX CONNECT handshake carrying
// the 16-byte target identifier, capturing the peer-assigned connection id.
// On any failure the session reverts to Idle; Connecting is never a resting
// state.
func (s *ClientSession) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateConnected:
		return ErrAlreadyConnected
	case StateConnecting:
		return ErrConnectInProgress
	}
	if s.device == "" {
		return ErrNoTarget
	}

	s.state = StateConnecting
	connected := false
	defer func() {
		if connected {
			s.state = StateConnected
		} else {
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connectionID = nil
			s.state = StateIdle
		}
	}()

	conn, err := s.dialer.DialDevice(s.device, s.service)
	if err != nil {
		return fmt.Errorf("obex: dial %s: %w", s.device, err)
	}
	s.conn = conn

	payload, err := encodeConnectPayload(s.maxPacket, &HeaderSet{Target: s.target})
	if err != nil {
		return err
	}
	if err := writePacket(s.conn, OpConnect, payload); err != nil {
		return err
	}

	code, resp, err := readPacket(s.conn)
	if err != nil {
		return fmt.Errorf("obex: read connect response: %w", err)
	}
	if code != ResponseSuccess {
		return fmt.Errorf("obex: connect rejected with response 0x%02X", code)
	}

	peerMax, headers, err := decodeConnectPayload(resp)
	if err != nil {
		return fmt.Errorf("obex: parse connect response: %w", err)
	}
	if peerMax < s.maxPacket {
		s.maxPacket = peerMax
	}
	s.connectionID = headers.ConnectionID

	logger.Debug(s.tag, "session created to %s (connection id % X, max packet %d)",
		s.device, s.connectionID, s.maxPacket)
	connected = true
	return nil
}

// GetContent issues a GET with the given headers, drains the response body
// across as many Continue round trips as the server needs, and returns it
// decoded as a string.
//
// On an I/O failure mid-transfer a best-effort ABORT is sent for the
// in-flight operation; a failure to abort is logged, never escalated, and
// the original error is returned.
func (s *ClientSession) GetContent(req *HeaderSet) (string, error) {
	body, _, err := s.Get(req)
	return body, err
}

// Get is GetContent plus the application parameter block of the final
// response packet, nil when the server sent none.
func (s *ClientSession) Get(req *HeaderSet) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected || s.conn == nil {
		return "", nil, ErrNotConnected
	}

	var body strings.Builder
	respApp, err := s.get(req, &body)
	if err != nil {
		s.abortInFlight()
		return "", nil, err
	}
	return body.String(), respApp, nil
}

func (s *ClientSession) get(req *HeaderSet, body *strings.Builder) ([]byte, error) {
	headers, err := req.Encode()
	if err != nil {
		return nil, err
	}
	if err := writePacket(s.conn, OpGetFinal, headers); err != nil {
		return nil, err
	}

	cont := &HeaderSet{ConnectionID: s.connectionID}
	contHeaders, err := cont.Encode()
	if err != nil {
		return nil, err
	}

	var respApp []byte
	for {
		code, payload, err := readPacket(s.conn)
		if err != nil {
			return nil, fmt.Errorf("obex: read get response: %w", err)
		}
		resp, err := DecodeHeaders(payload)
		if err != nil {
			return nil, fmt.Errorf("obex: parse get response: %w", err)
		}
		body.Write(resp.Body)
		body.Write(resp.EndOfBody)
		if resp.AppParams != nil {
			respApp = resp.AppParams
		}

		switch code {
		case ResponseContinue:
			if err := writePacket(s.conn, OpGetFinal, contHeaders); err != nil {
				return nil, err
			}
		case ResponseSuccess:
			return respApp, nil
		default:
			return nil, fmt.Errorf("obex: get failed with response 0x%02X", code)
		}
	}
}

// abortInFlight makes a best-effort attempt to abort the current operation.
func (s *ClientSession) abortInFlight() {
	if s.conn == nil {
		return
	}
	if err := writePacket(s.conn, OpAbort, nil); err != nil {
		logger.Warn(s.tag, "abort after failed get: %v", err)
		return
	}
	// Wait briefly for the abort response so the stream is not left with a
	// packet in flight.
	s.conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := readPacket(s.conn); err != nil {
		logger.Warn(s.tag, "read abort response: %v", err)
	}
	s.conn.SetReadDeadline(time.Time{})
}

// Disconnect tears the session down. Each step — session DISCONNECT,
// transport close — is attempted independently and a failure in one does
// not prevent the next. Idempotent; the state becomes Idle only once the
// transport has been closed.
func (s *ClientSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && s.state == StateConnected {
		h := &HeaderSet{ConnectionID: s.connectionID}
		headers, err := h.Encode()
		if err == nil {
			err = writePacket(s.conn, OpDisconnect, headers)
		}
		if err != nil {
			logger.Warn(s.tag, "session disconnect: %v", err)
		} else {
			s.conn.SetReadDeadline(time.Now().Add(time.Second))
			if _, _, err := readPacket(s.conn); err != nil {
				logger.Warn(s.tag, "read disconnect response: %v", err)
			}
			s.conn.SetReadDeadline(time.Time{})
			logger.Debug(s.tag, "session disconnected from %s", s.device)
		}
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logger.Warn(s.tag, "transport close: %v", err)
		}
		s.conn = nil
	}
	s.connectionID = nil
	s.state = StateIdle
}

// Shutdown closes the session. Equivalent to Disconnect.
func (s *ClientSession) Shutdown() {
	s.Disconnect()
}
