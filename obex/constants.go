package obex

// OBEX operation opcodes. The high bit marks the final packet of a request;
// CONNECT, DISCONNECT and ABORT are always final.
const (
	OpConnect    byte = 0x80
	OpDisconnect byte = 0x81
	OpPut        byte = 0x02
	OpPutFinal   byte = 0x82
	OpGet        byte = 0x03
	OpGetFinal   byte = 0x83
	OpSetPath    byte = 0x85
	OpAbort      byte = 0xFF
)

// OBEX response codes (final bit set).
const (
	ResponseContinue           byte = 0x90
	ResponseSuccess            byte = 0xA0
	ResponseBadRequest         byte = 0xC0
	ResponseUnauthorized       byte = 0xC1
	ResponseForbidden          byte = 0xC3
	ResponseNotFound           byte = 0xC4
	ResponseNotAcceptable      byte = 0xC6
	ResponsePreconditionFailed byte = 0xCC
	ResponseInternalError      byte = 0xD0
	ResponseNotImplemented     byte = 0xD1
	ResponseServiceUnavailable byte = 0xD3
)

// OBEX header identifiers. The top two bits encode the value layout:
// 0x00 = unicode text with 2-byte length, 0x40 = byte sequence with 2-byte
// length, 0x80 = single byte, 0xC0 = 4-byte quantity.
const (
	HeaderName         byte = 0x01 // UTF-16BE, NUL terminated
	HeaderType         byte = 0x42 // ASCII, NUL terminated
	HeaderTarget       byte = 0x46
	HeaderBody         byte = 0x48
	HeaderEndOfBody    byte = 0x49
	HeaderWho          byte = 0x4A
	HeaderAppParams    byte = 0x4C
	HeaderConnectionID byte = 0xCB
)

const (
	obexVersion byte = 0x10 // OBEX 1.0

	packetPreludeLen = 3 // opcode/response (1) + packet length (2)
	connectFieldsLen = 4 // version (1) + flags (1) + max packet (2)

	// DefaultMaxPacket is the OBEX packet size offered during CONNECT.
	// Each GET response body chunk is bounded by the negotiated value.
	DefaultMaxPacket uint16 = 1024

	// MinMaxPacket is the smallest packet size OBEX 1.0 allows a session
	// to negotiate.
	MinMaxPacket uint16 = 255

	connectionIDLen = 4
)
