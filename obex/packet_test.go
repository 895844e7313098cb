package obex

import (
	"bytes"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := writePacket(&buf, OpGetFinal, payload); err != nil {
		t.Fatalf("writePacket failed: %v", err)
	}

	want := []byte{0x83, 0x00, 0x07, 0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("framed % X, want % X", buf.Bytes(), want)
	}

	code, got, err := readPacket(&buf)
	if err != nil {
		t.Fatalf("readPacket failed: %v", err)
	}
	if code != OpGetFinal {
		t.Errorf("code 0x%02X, want 0x%02X", code, OpGetFinal)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload % X, want % X", got, payload)
	}
}

func TestReadPacketEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writePacket(&buf, ResponseSuccess, nil); err != nil {
		t.Fatalf("writePacket failed: %v", err)
	}
	code, payload, err := readPacket(&buf)
	if err != nil {
		t.Fatalf("readPacket failed: %v", err)
	}
	if code != ResponseSuccess || len(payload) != 0 {
		t.Errorf("got code 0x%02X payload % X, want 0xA0 and empty", code, payload)
	}
}

func TestReadPacketBadLength(t *testing.T) {
	// Declared total length shorter than the prelude itself.
	buf := bytes.NewBuffer([]byte{0xA0, 0x00, 0x02})
	if _, _, err := readPacket(buf); err == nil {
		t.Error("readPacket accepted a packet shorter than its prelude")
	}
}

func TestConnectPayloadRoundTrip(t *testing.T) {
	target := bytes.Repeat([]byte{0xAB}, 16)
	payload, err := encodeConnectPayload(1024, &HeaderSet{Target: target})
	if err != nil {
		t.Fatalf("encodeConnectPayload failed: %v", err)
	}

	wantPrefix := []byte{0x10, 0x00, 0x04, 0x00}
	if !bytes.Equal(payload[:4], wantPrefix) {
		t.Errorf("connect fields % X, want % X", payload[:4], wantPrefix)
	}

	maxPacket, headers, err := decodeConnectPayload(payload)
	if err != nil {
		t.Fatalf("decodeConnectPayload failed: %v", err)
	}
	if maxPacket != 1024 {
		t.Errorf("max packet %d, want 1024", maxPacket)
	}
	if !bytes.Equal(headers.Target, target) {
		t.Errorf("target % X, want % X", headers.Target, target)
	}
}

func TestConnectPayloadClampsMaxPacket(t *testing.T) {
	payload, err := encodeConnectPayload(16, &HeaderSet{})
	if err != nil {
		t.Fatalf("encodeConnectPayload failed: %v", err)
	}
	maxPacket, _, err := decodeConnectPayload(payload)
	if err != nil {
		t.Fatalf("decodeConnectPayload failed: %v", err)
	}
	if maxPacket != MinMaxPacket {
		t.Errorf("max packet %d, want clamped to %d", maxPacket, MinMaxPacket)
	}
}

func TestDecodeConnectPayloadTooShort(t *testing.T) {
	if _, _, err := decodeConnectPayload([]byte{0x10, 0x00}); err == nil {
		t.Error("decodeConnectPayload accepted a truncated payload")
	}
}
