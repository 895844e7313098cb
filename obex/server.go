package obex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
)

// Handler implements the application side of an OBEX server.
type Handler interface {
	// OnConnect decides whether a CONNECT for the given 16-byte target is
	// accepted. The device is the transport-level peer identity.
	OnConnect(device string, target []byte) bool

	// OnGet serves one GET request, streaming the object through op, and
	// returns the final OBEX response code.
	OnGet(req *HeaderSet, op *ServerOperation) byte
}

// Server accepts OBEX sessions and dispatches requests to a Handler.
type Server struct {
	handler   Handler
	maxPacket uint16
	connSeq   uint32
	tag       string
}

func NewServer(handler Handler) *Server {
	return &Server{
		handler:   handler,
		maxPacket: DefaultMaxPacket,
		tag:       "ObexServer",
	}
}

// SetNextConnectionID fixes the connection id handed to the next session.
func (srv *Server) SetNextConnectionID(id uint32) {
	atomic.StoreUint32(&srv.connSeq, id-1)
}

// Serve accepts connections until the listener is closed. Each session runs
// in its own goroutine; Serve returns once all of them have drained.
func (srv *Server) Serve(ln net.Listener) error {
	g := new(errgroup.Group)
	for {
		conn, err := ln.Accept()
		if err != nil {
			waitErr := g.Wait()
			if errors.Is(err, net.ErrClosed) {
				return waitErr
			}
			return err
		}
		g.Go(func() error {
			defer conn.Close()
			sess := &serverSession{
				srv:       srv,
				conn:      conn,
				device:    conn.RemoteAddr().String(),
				maxPacket: srv.maxPacket,
			}
			if err := sess.serve(); err != nil {
				logger.Warn(srv.tag, "session with %s ended: %v", sess.device, err)
			}
			return nil
		})
	}
}

type serverSession struct {
	srv          *Server
	conn         net.Conn
	device       string
	maxPacket    uint16
	connectionID []byte
}

func (s *serverSession) serve() error {
	for {
		code, payload, err := readPacket(s.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		switch code {
		case OpConnect:
			err = s.handleConnect(payload)
		case OpDisconnect:
			s.sendResponse(ResponseSuccess, nil)
			return nil
		case OpGet, OpGetFinal:
			err = s.handleGet(payload)
			if errors.Is(err, ErrAborted) {
				// The transfer was cancelled; the session lives on.
				err = nil
			}
		case OpAbort:
			// No operation in flight; acknowledge and carry on.
			err = s.sendResponse(ResponseSuccess, nil)
		default:
			logger.Warn(s.srv.tag, "unsupported opcode 0x%02X from %s", code, s.device)
			err = s.sendResponse(ResponseNotImplemented, nil)
		}
		if err != nil {
			return err
		}
	}
}

func (s *serverSession) handleConnect(payload []byte) error {
	peerMax, headers, err := decodeConnectPayload(payload)
	if err != nil {
		logger.Warn(s.srv.tag, "bad connect from %s: %v", s.device, err)
		return s.sendResponse(ResponseBadRequest, nil)
	}
	if peerMax < s.maxPacket {
		s.maxPacket = peerMax
	}

	if !s.srv.handler.OnConnect(s.device, headers.Target) {
		logger.Warn(s.srv.tag, "connect from %s rejected (target % X)", s.device, headers.Target)
		return s.sendConnectResponse(ResponseServiceUnavailable, &HeaderSet{})
	}

	id := atomic.AddUint32(&s.srv.connSeq, 1)
	s.connectionID = make([]byte, connectionIDLen)
	binary.BigEndian.PutUint32(s.connectionID, id)

	logger.Debug(s.srv.tag, "session established with %s (connection id % X)", s.device, s.connectionID)
	return s.sendConnectResponse(ResponseSuccess, &HeaderSet{
		Who:          headers.Target,
		ConnectionID: s.connectionID,
	})
}

func (s *serverSession) handleGet(payload []byte) error {
	req, err := DecodeHeaders(payload)
	if err != nil {
		logger.Warn(s.srv.tag, "bad get from %s: %v", s.device, err)
		return s.sendResponse(ResponseBadRequest, nil)
	}
	if s.connectionID == nil {
		return s.sendResponse(ResponsePreconditionFailed, nil)
	}
	if req.ConnectionID != nil && !bytes.Equal(req.ConnectionID, s.connectionID) {
		return s.sendResponse(ResponseBadRequest, nil)
	}

	op := &ServerOperation{
		sess:  s,
		chunk: int(s.maxPacket) - 2*packetPreludeLen,
	}
	code := s.srv.handler.OnGet(req, op)
	return op.finish(code)
}

func (s *serverSession) sendResponse(code byte, h *HeaderSet) error {
	var payload []byte
	if h != nil {
		var err error
		payload, err = h.Encode()
		if err != nil {
			return err
		}
	}
	return writePacket(s.conn, code, payload)
}

func (s *serverSession) sendConnectResponse(code byte, h *HeaderSet) error {
	payload, err := encodeConnectPayload(s.maxPacket, h)
	if err != nil {
		return err
	}
	return writePacket(s.conn, code, payload)
}

// ServerOperation streams one GET response body to the client.
//
// Writes accumulate in a buffer; whenever a full chunk (bounded by the
// negotiated packet size) is available it goes out as a Continue response
// and the operation blocks until the client asks for more. An ABORT
// received while waiting marks this operation — and only this operation —
// as aborted.
type ServerOperation struct {
	sess       *serverSession
	buf        bytes.Buffer
	chunk      int
	written    int64
	aborted    bool
	responded  bool
	respApp    []byte
	onProgress func(written int64)
}

// Write implements io.Writer over the paged response body.
func (op *ServerOperation) Write(p []byte) (int, error) {
	if op.aborted {
		return 0, ErrAborted
	}
	op.buf.Write(p)
	op.written += int64(len(p))
	if op.onProgress != nil {
		op.onProgress(op.written)
	}
	for op.buf.Len() >= op.chunk {
		if err := op.sendChunk(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Aborted reports whether the client aborted this operation.
func (op *ServerOperation) Aborted() bool {
	return op.aborted
}

// Written returns the number of body bytes accepted so far.
func (op *ServerOperation) Written() int64 {
	return op.written
}

// SetResponseAppParams attaches an application parameter block to the final
// response packet.
func (op *ServerOperation) SetResponseAppParams(b []byte) {
	op.respApp = b
}

// SetProgressCallback registers a callback invoked with the running byte
// count after every write.
func (op *ServerOperation) SetProgressCallback(fn func(written int64)) {
	op.onProgress = fn
}

// sendChunk emits one Continue response and waits for the client's next
// GET. This is the client-driven paging point of the transfer protocol.
func (op *ServerOperation) sendChunk() error {
	chunk := make([]byte, op.chunk)
	n, _ := op.buf.Read(chunk)
	if err := op.sess.sendResponse(ResponseContinue, &HeaderSet{Body: chunk[:n]}); err != nil {
		op.responded = true
		return err
	}

	code, _, err := readPacket(op.sess.conn)
	if err != nil {
		op.responded = true
		return fmt.Errorf("obex: read continuation request: %w", err)
	}
	switch code {
	case OpGet, OpGetFinal:
		return nil
	case OpAbort:
		op.aborted = true
		op.responded = true
		if err := op.sess.sendResponse(ResponseSuccess, nil); err != nil {
			logger.Warn(op.sess.srv.tag, "ack abort at byte %d: %v", op.written, err)
		}
		logger.Info(op.sess.srv.tag, "transfer aborted by %s at byte %d", op.sess.device, op.written)
		return ErrAborted
	default:
		op.responded = true
		op.sess.sendResponse(ResponseBadRequest, nil)
		return fmt.Errorf("obex: unexpected opcode 0x%02X during transfer", code)
	}
}

// finish sends the final response. Partial chunks already on the wire are
// never retracted; an error code after streaming has begun simply ends the
// transfer with that code.
func (op *ServerOperation) finish(code byte) error {
	if op.responded {
		return nil
	}

	if code != ResponseSuccess {
		op.responded = true
		return op.sess.sendResponse(code, nil)
	}

	for op.buf.Len() > op.chunk {
		if err := op.sendChunk(); err != nil {
			if errors.Is(err, ErrAborted) {
				return nil
			}
			return err
		}
	}

	rest := op.buf.Bytes()
	if rest == nil {
		rest = []byte{}
	}
	op.responded = true
	return op.sess.sendResponse(ResponseSuccess, &HeaderSet{
		EndOfBody: rest,
		AppParams: op.respApp,
	})
}
