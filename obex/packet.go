package obex

import (
	"encoding/binary"
	"fmt"
	"io"
)

// writePacket frames and writes one OBEX packet: code (1 byte) plus the
// total packet length (2 bytes, big-endian, prelude included).
func writePacket(w io.Writer, code byte, payload []byte) error {
	total := packetPreludeLen + len(payload)
	if total > 0xFFFF {
		return fmt.Errorf("obex: packet too large (%d bytes)", total)
	}

	buf := make([]byte, total)
	buf[0] = code
	binary.BigEndian.PutUint16(buf[1:3], uint16(total))
	copy(buf[3:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("obex: write packet 0x%02X: %w", code, err)
	}
	return nil
}

// readPacket reads one OBEX packet and returns its code and payload.
func readPacket(r io.Reader) (byte, []byte, error) {
	var prelude [packetPreludeLen]byte
	if _, err := io.ReadFull(r, prelude[:]); err != nil {
		return 0, nil, err
	}

	total := int(binary.BigEndian.Uint16(prelude[1:3]))
	if total < packetPreludeLen {
		return 0, nil, fmt.Errorf("obex: bad packet length %d", total)
	}

	payload := make([]byte, total-packetPreludeLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("obex: read packet payload: %w", err)
	}
	return prelude[0], payload, nil
}

// encodeConnectPayload builds the CONNECT request/response payload:
// version, flags, max packet size, then headers.
func encodeConnectPayload(maxPacket uint16, h *HeaderSet) ([]byte, error) {
	headers, err := h.Encode()
	if err != nil {
		return nil, err
	}

	payload := make([]byte, connectFieldsLen, connectFieldsLen+len(headers))
	payload[0] = obexVersion
	payload[1] = 0x00 // flags
	binary.BigEndian.PutUint16(payload[2:4], maxPacket)
	return append(payload, headers...), nil
}

// decodeConnectPayload parses a CONNECT request/response payload.
func decodeConnectPayload(payload []byte) (maxPacket uint16, h *HeaderSet, err error) {
	if len(payload) < connectFieldsLen {
		return 0, nil, fmt.Errorf("obex: connect payload too short (%d bytes)", len(payload))
	}

	maxPacket = binary.BigEndian.Uint16(payload[2:4])
	if maxPacket < MinMaxPacket {
		maxPacket = MinMaxPacket
	}

	h, err = DecodeHeaders(payload[connectFieldsLen:])
	if err != nil {
		return 0, nil, err
	}
	return maxPacket, h, nil
}
