package phonebook

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot is the on-disk form of a phonebook, CBOR encoded.
type Snapshot struct {
	OwnerName   string  `cbor:"owner_name"`
	OwnerNumber string  `cbor:"owner_number"`
	Contacts    []Entry `cbor:"contacts"`
	Calls       []Entry `cbor:"calls"`
}

// Save writes the store's current contents to path.
func Save(m *MemoryStore, path string) error {
	m.mu.RLock()
	snap := Snapshot{
		OwnerName:   m.ownerName,
		OwnerNumber: m.ownerNum,
		Contacts:    append([]Entry(nil), m.contacts...),
		Calls:       append([]Entry(nil), m.calls...),
	}
	m.mu.RUnlock()

	data, err := cbor.Marshal(snap)
	if err != nil {
		return fmt.Errorf("phonebook: encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("phonebook: write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot from path into a fresh MemoryStore.
func Load(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("phonebook: read snapshot: %w", err)
	}
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("phonebook: decode snapshot: %w", err)
	}

	m := NewMemoryStore(snap.OwnerName, snap.OwnerNumber)
	for _, e := range snap.Contacts {
		m.AddContact(e.Name, e.Number)
	}
	for _, e := range snap.Calls {
		m.AddCall(e.Name, e.Number, e.CallType, e.Timestamp)
	}
	return m, nil
}
