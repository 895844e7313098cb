package pbap

import (
	"bytes"
	"sync"
	"testing"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/obex"
)

// captureHandler records the raw request headers of the last GET.
type captureHandler struct {
	mu        sync.Mutex
	name      string
	appParams []byte
	connID    []byte
}

func (h *captureHandler) OnConnect(device string, target []byte) bool {
	return bytes.Equal(target, TargetID)
}

func (h *captureHandler) OnGet(req *obex.HeaderSet, op *obex.ServerOperation) byte {
	h.mu.Lock()
	h.name = req.Name
	h.appParams = append([]byte(nil), req.AppParams...)
	h.connID = append([]byte(nil), req.ConnectionID...)
	h.mu.Unlock()
	return obex.ResponseSuccess
}

// TestPullPhonebookWireFormat pins the exact request bytes of a phonebook
// pull: the application parameter block carries only the property selector,
// and the connection id assigned at connect time rides every request.
func TestPullPhonebookWireFormat(t *testing.T) {
	dir := t.TempDir()
	ln, err := obex.ListenDevice(dir, "pse", ServiceUUID)
	if err != nil {
		t.Fatalf("ListenDevice failed: %v", err)
	}
	handler := &captureHandler{}
	srv := obex.NewServer(handler)
	srv.SetNextConnectionID(0x01020304)

	done := make(chan struct{})
	go func() {
		srv.Serve(ln)
		close(done)
	}()
	defer func() {
		ln.Close()
		<-done
	}()

	client := NewClient("pse", &obex.SocketDialer{Dir: dir})
	if !client.Connect() {
		t.Fatal("connect failed")
	}
	defer client.Disconnect()

	if _, err := client.PullPhonebook(PathPhonebook, 0x0000000000000003); err != nil {
		t.Fatalf("PullPhonebook failed: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.name != PathPhonebook {
		t.Errorf("request name %q, want %q", handler.name, PathPhonebook)
	}
	wantApp := []byte{0x06, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03}
	if !bytes.Equal(handler.appParams, wantApp) {
		t.Errorf("request app params % X, want % X", handler.appParams, wantApp)
	}
	if !bytes.Equal(handler.connID, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("request connection id % X, want 01 02 03 04", handler.connID)
	}
}
