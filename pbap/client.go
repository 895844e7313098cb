package pbap

import (
	"fmt"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/obex"
)

// Client is the phonebook access client facade over an OBEX session. It
// exposes the profile-level operations an application needs: connect to a
// phonebook server, pull objects from it, disconnect.
type Client struct {
	sess *obex.ClientSession
	tag  string
}

// NewClient creates a client for the phonebook service on the given device.
func NewClient(device string, dialer obex.Dialer) *Client {
	return &Client{
		sess: obex.NewClientSession(device, ServiceUUID, TargetID, dialer),
		tag:  "PbapClient",
	}
}

// GetState returns the session connection state.
func (c *Client) GetState() obex.ConnectionState {
	return c.sess.State()
}

// GetPeerDevice returns the device this client talks to.
func (c *Client) GetPeerDevice() string {
	return c.sess.Device()
}

// IsConnected reports whether a session is established.
func (c *Client) IsConnected() bool {
	return c.sess.IsConnected()
}

// IsConnectedTo reports whether a session is established with the given
// device specifically.
func (c *Client) IsConnectedTo(device string) bool {
	return c.sess.IsConnected() && c.sess.Device() == device
}

// Connect establishes the session. Errors are logged and reported as a
// boolean; a session already connected or connecting counts as failure.
func (c *Client) Connect() bool {
	if err := c.sess.Connect(); err != nil {
		logger.Warn(c.tag, "connect to %s: %v", c.GetPeerDevice(), err)
		return false
	}
	return true
}

// Disconnect tears the session down. Safe to call in any state.
func (c *Client) Disconnect() {
	c.sess.Disconnect()
}

// PullPhonebook downloads the phonebook object at path, requesting only the
// properties in propSelector. Without an established session it returns
// empty content and no error.
func (c *Client) PullPhonebook(path string, propSelector int64) (string, error) {
	params := NewAppParams()
	params.PropertySelector = propSelector
	return c.Pull(path, params)
}

// Pull downloads the phonebook object at path with explicit parameters.
func (c *Client) Pull(path string, params *AppParams) (string, error) {
	connID := c.sess.ConnectionID()
	if connID == nil {
		logger.Warn(c.tag, "pull %s skipped, no session", path)
		return "", nil
	}

	app, err := params.Encode()
	if err != nil {
		return "", err
	}
	return c.sess.GetContent(&obex.HeaderSet{
		ConnectionID: connID,
		Name:         path,
		Type:         TypePhonebook,
		AppParams:    app,
	})
}

// PullPhonebookSize asks the server for the entry count of the object at
// path, plus the unseen missed call count for the missed call folder. It
// sends a pull with a max list count of zero, which returns no body.
func (c *Client) PullPhonebookSize(path string) (size, newMissed int, err error) {
	connID := c.sess.ConnectionID()
	if connID == nil {
		logger.Warn(c.tag, "size of %s skipped, no session", path)
		return 0, 0, nil
	}

	params := NewAppParams()
	if err := params.SetMaxListCount(0); err != nil {
		return 0, 0, err
	}
	app, err := params.Encode()
	if err != nil {
		return 0, 0, err
	}

	_, respApp, err := c.sess.Get(&obex.HeaderSet{
		ConnectionID: connID,
		Name:         path,
		Type:         TypePhonebook,
		AppParams:    app,
	})
	if err != nil {
		return 0, 0, err
	}
	if respApp == nil {
		return 0, 0, fmt.Errorf("pbap: size response for %s carried no parameters", path)
	}
	resp, err := Decode(respApp)
	if err != nil {
		return 0, 0, err
	}
	if resp.PhonebookSize == InvalidValue {
		return 0, 0, fmt.Errorf("pbap: size response for %s missing phonebook size", path)
	}
	newMissed = resp.NewMissedCalls
	if newMissed == InvalidValue {
		newMissed = 0
	}
	return resp.PhonebookSize, newMissed, nil
}

// PullVcardListing downloads the XML listing of the folder at path.
func (c *Client) PullVcardListing(path string, params *AppParams) (string, error) {
	connID := c.sess.ConnectionID()
	if connID == nil {
		logger.Warn(c.tag, "pull listing %s skipped, no session", path)
		return "", nil
	}

	app, err := params.Encode()
	if err != nil {
		return "", err
	}
	return c.sess.GetContent(&obex.HeaderSet{
		ConnectionID: connID,
		Name:         path,
		Type:         TypeVcardListing,
		AppParams:    app,
	})
}

// PullVcardEntry downloads a single entry, e.g. "telecom/pb/3.vcf".
func (c *Client) PullVcardEntry(path string, params *AppParams) (string, error) {
	connID := c.sess.ConnectionID()
	if connID == nil {
		logger.Warn(c.tag, "pull entry %s skipped, no session", path)
		return "", nil
	}

	app, err := params.Encode()
	if err != nil {
		return "", err
	}
	return c.sess.GetContent(&obex.HeaderSet{
		ConnectionID: connID,
		Name:         path,
		Type:         TypeVcard,
		AppParams:    app,
	})
}

// Shutdown releases the client. Equivalent to Disconnect.
func (c *Client) Shutdown() {
	c.sess.Shutdown()
}
