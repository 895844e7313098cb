package obex

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/util"
)

// SocketPath returns the unix socket path at which a device exposes a
// service. One socket per (device, service) pair stands in for an RFCOMM
// channel bound to a service record.
func SocketPath(dir, device string, service uuid.UUID) string {
	if dir == "" {
		dir = util.GetSocketDir()
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.sock", device, service.String()[:8]))
}

// SocketDialer dials unix domain sockets as the session transport.
type SocketDialer struct {
	Dir string // socket directory; empty means util.GetSocketDir()
}

func (d *SocketDialer) DialDevice(device string, service uuid.UUID) (net.Conn, error) {
	return net.Dial("unix", SocketPath(d.Dir, device, service))
}

// ListenDevice creates the listening socket for a device's service,
// removing any stale socket file first.
func ListenDevice(dir, device string, service uuid.UUID) (net.Listener, error) {
	path := SocketPath(dir, device, service)
	os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("obex: listen on %s: %w", path, err)
	}
	return ln, nil
}
