package obex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// HeaderSet carries the OBEX headers of a single request or response.
// Zero values mean the header is absent on the wire.
type HeaderSet struct {
	Name         string // object name, e.g. "telecom/pb.vcf"
	Type         string // object type, e.g. "x-bt/phonebook"
	Target       []byte // 16-byte service identifier (CONNECT only)
	Who          []byte // echo of Target in the CONNECT response
	AppParams    []byte // encoded application parameter block
	Body         []byte
	EndOfBody    []byte
	ConnectionID []byte // 4 bytes when present
}

// Encode serializes the header set in canonical order: ConnectionID first
// (it must lead every request that carries one), then identification
// headers, then body headers.
func (h *HeaderSet) Encode() ([]byte, error) {
	var buf bytes.Buffer

	if h.ConnectionID != nil {
		if len(h.ConnectionID) != connectionIDLen {
			return nil, fmt.Errorf("obex: connection id must be %d bytes, got %d", connectionIDLen, len(h.ConnectionID))
		}
		buf.WriteByte(HeaderConnectionID)
		buf.Write(h.ConnectionID)
	}
	if h.Name != "" {
		writeUnicodeHeader(&buf, HeaderName, h.Name)
	}
	if h.Type != "" {
		// Type is NUL-terminated ASCII
		writeBytesHeader(&buf, HeaderType, append([]byte(h.Type), 0x00))
	}
	if h.Target != nil {
		writeBytesHeader(&buf, HeaderTarget, h.Target)
	}
	if h.Who != nil {
		writeBytesHeader(&buf, HeaderWho, h.Who)
	}
	if h.AppParams != nil {
		writeBytesHeader(&buf, HeaderAppParams, h.AppParams)
	}
	if h.Body != nil {
		writeBytesHeader(&buf, HeaderBody, h.Body)
	}
	if h.EndOfBody != nil {
		writeBytesHeader(&buf, HeaderEndOfBody, h.EndOfBody)
	}

	return buf.Bytes(), nil
}

func writeBytesHeader(buf *bytes.Buffer, id byte, value []byte) {
	buf.WriteByte(id)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(value)+3))
	buf.Write(lenBuf[:])
	buf.Write(value)
}

// writeUnicodeHeader writes a text header as NUL-terminated UTF-16BE.
func writeUnicodeHeader(buf *bytes.Buffer, id byte, value string) {
	units := utf16.Encode([]rune(value))
	units = append(units, 0x0000)

	buf.WriteByte(id)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(units)*2+3))
	buf.Write(lenBuf[:])
	for _, u := range units {
		binary.BigEndian.PutUint16(lenBuf[:], u)
		buf.Write(lenBuf[:])
	}
}

// DecodeHeaders parses an OBEX header sequence.
func DecodeHeaders(data []byte) (*HeaderSet, error) {
	h := &HeaderSet{}
	i := 0
	for i < len(data) {
		id := data[i]
		i++

		switch id & 0xC0 {
		case 0x00, 0x40: // length-prefixed (unicode text or byte sequence)
			if i+2 > len(data) {
				return nil, fmt.Errorf("obex: truncated length for header 0x%02X", id)
			}
			hlen := int(binary.BigEndian.Uint16(data[i : i+2]))
			if hlen < 3 || i-1+hlen > len(data) {
				return nil, fmt.Errorf("obex: bad length %d for header 0x%02X", hlen, id)
			}
			value := data[i+2 : i-1+hlen]
			i += hlen - 1
			if err := h.setHeader(id, value); err != nil {
				return nil, err
			}

		case 0x80: // single byte
			if i >= len(data) {
				return nil, fmt.Errorf("obex: truncated value for header 0x%02X", id)
			}
			i++

		case 0xC0: // 4-byte quantity
			if i+4 > len(data) {
				return nil, fmt.Errorf("obex: truncated value for header 0x%02X", id)
			}
			if id == HeaderConnectionID {
				h.ConnectionID = append([]byte(nil), data[i:i+4]...)
			}
			i += 4
		}
	}
	return h, nil
}

func (h *HeaderSet) setHeader(id byte, value []byte) error {
	switch id {
	case HeaderName:
		s, err := decodeUnicode(value)
		if err != nil {
			return err
		}
		h.Name = s
	case HeaderType:
		h.Type = string(bytes.TrimRight(value, "\x00"))
	case HeaderTarget:
		h.Target = append([]byte(nil), value...)
	case HeaderWho:
		h.Who = append([]byte(nil), value...)
	case HeaderAppParams:
		h.AppParams = append([]byte(nil), value...)
	case HeaderBody:
		h.Body = append([]byte(nil), value...)
	case HeaderEndOfBody:
		h.EndOfBody = append([]byte(nil), value...)
	default:
		// Unknown headers are skipped, not rejected.
	}
	return nil
}

func decodeUnicode(value []byte) (string, error) {
	if len(value)%2 != 0 {
		return "", fmt.Errorf("obex: unicode header has odd length %d", len(value))
	}
	units := make([]uint16, 0, len(value)/2)
	for i := 0; i+1 < len(value); i += 2 {
		units = append(units, binary.BigEndian.Uint16(value[i:i+2]))
	}
	// Strip the NUL terminator.
	if n := len(units); n > 0 && units[n-1] == 0 {
		units = units[:n-1]
	}
	return string(utf16.Decode(units)), nil
}
