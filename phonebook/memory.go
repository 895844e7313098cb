package phonebook

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Source. It is safe for concurrent use; query
// cursors snapshot the matching entries at query time.
type MemoryStore struct {
	mu        sync.RWMutex
	ownerName string
	ownerNum  string
	contacts  []Entry
	calls     []Entry
	nextID    uint64
	missed    int
}

func NewMemoryStore(ownerName, ownerNumber string) *MemoryStore {
	return &MemoryStore{
		ownerName: ownerName,
		ownerNum:  ownerNumber,
		nextID:    1,
	}
}

func (m *MemoryStore) OwnerName() string   { return m.ownerName }
func (m *MemoryStore) OwnerNumber() string { return m.ownerNum }

// AddContact stores a contact and returns its assigned id.
func (m *MemoryStore) AddContact(name, number string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.contacts = append(m.contacts, Entry{ID: id, Name: name, Number: number})
	return id
}

// AddCall appends a call history record.
func (m *MemoryStore) AddCall(name, number string, t CallType, timestamp string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.calls = append(m.calls, Entry{ID: id, Name: name, Number: number, CallType: t, Timestamp: timestamp})
	if t == CallMissed {
		m.missed++
	}
	return id
}

// ResetNewMissedCalls clears the unseen missed call counter.
func (m *MemoryStore) ResetNewMissedCalls() {
	m.mu.Lock()
	m.missed = 0
	m.mu.Unlock()
}

func (m *MemoryStore) ContactCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contacts), nil
}

func (m *MemoryStore) CallCount(t CallType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.calls {
		if t == CallCombined || e.CallType == t {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) NewMissedCalls() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.missed, nil
}

func (m *MemoryStore) ContactsByID(order Order) (Cursor, error) {
	m.mu.RLock()
	out := append([]Entry(nil), m.contacts...)
	m.mu.RUnlock()

	if order == OrderByName {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return &sliceCursor{entries: out}, nil
}

func (m *MemoryStore) ContactsByName(prefix string) (Cursor, error) {
	return m.filtered(func(e Entry) bool {
		return strings.HasPrefix(strings.ToLower(e.Name), strings.ToLower(prefix))
	})
}

func (m *MemoryStore) ContactsByNumber(prefix string) (Cursor, error) {
	return m.filtered(func(e Entry) bool {
		return strings.HasPrefix(e.Number, prefix)
	})
}

func (m *MemoryStore) filtered(keep func(Entry) bool) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.contacts {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return &sliceCursor{entries: out}, nil
}

func (m *MemoryStore) ContactByID(id uint64) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.contacts {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (m *MemoryStore) Calls(t CallType) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.calls {
		if t == CallCombined || e.CallType == t {
			out = append(out, e)
		}
	}
	// Newest first, matching how call logs are browsed.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return &sliceCursor{entries: out}, nil
}

type sliceCursor struct {
	entries []Entry
	pos     int
}

func (c *sliceCursor) Count() int { return len(c.entries) }

func (c *sliceCursor) MoveToPosition(pos int) bool {
	if pos < 0 || pos > len(c.entries) {
		return false
	}
	c.pos = pos
	return true
}

func (c *sliceCursor) Next() (Entry, bool) {
	if c.pos >= len(c.entries) {
		return Entry{}, false
	}
	e := c.entries[c.pos]
	c.pos++
	return e, true
}

func (c *sliceCursor) Close() {}
