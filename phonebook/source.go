// Package phonebook defines the contact and call history data source that
// backs the phonebook server, plus an in-memory implementation and a file
// snapshot format.
package phonebook

import "errors"

// ErrNotFound reports a lookup for an entry that does not exist.
var ErrNotFound = errors.New("phonebook: entry not found")

// CallType identifies a call history folder.
type CallType int

const (
	CallIncoming CallType = iota
	CallOutgoing
	CallMissed
	CallCombined
)

func (t CallType) String() string {
	switch t {
	case CallIncoming:
		return "INCOMING"
	case CallOutgoing:
		return "OUTGOING"
	case CallMissed:
		return "MISSED"
	default:
		return "COMBINED"
	}
}

// Order selects how listings are sorted.
type Order int

const (
	OrderByID Order = iota
	OrderByName
)

// Entry is one contact or call record.
type Entry struct {
	ID        uint64
	Name      string
	Number    string
	CallType  CallType
	Timestamp string
}

// Cursor walks a query result one entry at a time. Count is the total
// result size regardless of position; Close releases the result.
type Cursor interface {
	Count() int
	MoveToPosition(pos int) bool
	Next() (Entry, bool)
	Close()
}

// Source provides the contact and call data the server serves. All query
// methods return a Cursor the caller must close.
type Source interface {
	// OwnerName and OwnerNumber describe the local device's own entry,
	// listed at handle 0.
	OwnerName() string
	OwnerNumber() string

	ContactCount() (int, error)
	CallCount(t CallType) (int, error)
	NewMissedCalls() (int, error)

	ContactsByID(order Order) (Cursor, error)
	ContactsByName(prefix string) (Cursor, error)
	ContactsByNumber(prefix string) (Cursor, error)
	ContactByID(id uint64) (Entry, error)
	Calls(t CallType) (Cursor, error)
}
