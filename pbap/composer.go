package pbap

import (
	"fmt"
	"io"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/obex"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/phonebook"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/vcard"
)

// RecordKind names one repository folder. Each kind carries its own
// capability set: whether it has an owner record at handle zero, whether it
// can be searched, and which call history it maps to.
type RecordKind int

const (
	KindPhonebook RecordKind = iota
	KindIncomingCalls
	KindOutgoingCalls
	KindMissedCalls
	KindCombinedCalls
)

type kindCaps struct {
	name       string
	callType   phonebook.CallType
	isCalls    bool
	hasOwner   bool
	searchable bool
}

var kindTable = map[RecordKind]kindCaps{
	KindPhonebook:     {name: "pb", hasOwner: true, searchable: true},
	KindIncomingCalls: {name: "ich", callType: phonebook.CallIncoming, isCalls: true},
	KindOutgoingCalls: {name: "och", callType: phonebook.CallOutgoing, isCalls: true},
	KindMissedCalls:   {name: "mch", callType: phonebook.CallMissed, isCalls: true},
	KindCombinedCalls: {name: "cch", callType: phonebook.CallCombined, isCalls: true},
}

func (k RecordKind) String() string {
	if c, ok := kindTable[k]; ok {
		return c.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HasOwner reports whether handle zero names the local device's own record.
func (k RecordKind) HasOwner() bool { return kindTable[k].hasOwner }

// Searchable reports whether name and number search applies to this kind.
func (k RecordKind) Searchable() bool { return kindTable[k].searchable }

// RecordRange is an inclusive range of one-based record handles.
type RecordRange struct {
	Start int
	End   int
}

// Validate rejects a range before any data source work happens.
func (r RecordRange) Validate() error {
	if r.Start < 1 {
		return fmt.Errorf("pbap: range start %d, handles are one-based", r.Start)
	}
	if r.Start > r.End {
		return fmt.Errorf("pbap: empty range [%d, %d]", r.Start, r.End)
	}
	return nil
}

// SerializeFunc renders one record as vCard text.
type SerializeFunc func(e phonebook.Entry, kind RecordKind, v vcard.Version) (string, error)

func defaultSerialize(e phonebook.Entry, kind RecordKind, v vcard.Version) (string, error) {
	if kindTable[kind].isCalls {
		return vcard.ComposeCall(e.Name, e.Number, e.CallType.String(), e.Timestamp, v), nil
	}
	return vcard.Compose(e.Name, e.Number, v), nil
}

// Composer streams vCard records from a data source into server operations.
type Composer struct {
	src       phonebook.Source
	serialize SerializeFunc
	tag       string
}

func NewComposer(src phonebook.Source) *Composer {
	return &Composer{
		src:       src,
		serialize: defaultSerialize,
		tag:       "VcardComposer",
	}
}

// SetSerializer overrides the record serializer.
func (c *Composer) SetSerializer(fn SerializeFunc) {
	c.serialize = fn
}

// ComposeOwner writes the local device's own record.
func (c *Composer) ComposeOwner(op *obex.ServerOperation, v vcard.Version) byte {
	text := vcard.Compose(c.src.OwnerName(), c.src.OwnerNumber(), v)
	return c.writeRecord(op, text)
}

// ComposeRange streams the records with handles in rng, in handle order. The
// range is validated before any data source access. The client may abort
// between records; records already sent stand, and the operation ends
// cleanly. A serializer failure after partial output likewise leaves the
// sent records standing and reports an internal error.
func (c *Composer) ComposeRange(op *obex.ServerOperation, kind RecordKind, rng RecordRange, v vcard.Version) byte {
	if err := rng.Validate(); err != nil {
		logger.Warn(c.tag, "reject %s pull: %v", kind, err)
		return obex.ResponseBadRequest
	}

	cursor, err := c.open(kind)
	if err != nil {
		logger.Error(c.tag, "open %s: %v", kind, err)
		return obex.ResponseInternalError
	}
	defer cursor.Close()

	if !cursor.MoveToPosition(rng.Start - 1) {
		return obex.ResponseSuccess
	}
	for handle := rng.Start; handle <= rng.End; handle++ {
		if op.Aborted() {
			return obex.ResponseSuccess
		}
		entry, ok := cursor.Next()
		if !ok {
			break
		}
		text, err := c.serialize(entry, kind, v)
		if err != nil {
			logger.Error(c.tag, "serialize %s handle %d: %v", kind, handle, err)
			return obex.ResponseInternalError
		}
		if code := c.writeRecord(op, text); code != obex.ResponseSuccess {
			return code
		}
	}
	return obex.ResponseSuccess
}

// ComposeOne writes the single record with the given handle. Handle zero is
// the owner record for kinds that have one.
func (c *Composer) ComposeOne(op *obex.ServerOperation, kind RecordKind, handle uint64, v vcard.Version) byte {
	if handle == 0 {
		if !kind.HasOwner() {
			return obex.ResponseNotFound
		}
		return c.ComposeOwner(op, v)
	}

	entry, err := c.lookup(kind, handle)
	if err != nil {
		logger.Warn(c.tag, "%s handle %d: %v", kind, handle, err)
		return obex.ResponseNotFound
	}
	text, err := c.serialize(entry, kind, v)
	if err != nil {
		logger.Error(c.tag, "serialize %s handle %d: %v", kind, handle, err)
		return obex.ResponseInternalError
	}
	return c.writeRecord(op, text)
}

func (c *Composer) writeRecord(op *obex.ServerOperation, text string) byte {
	if _, err := io.WriteString(op, text); err != nil {
		if op.Aborted() {
			return obex.ResponseSuccess
		}
		logger.Error(c.tag, "stream record: %v", err)
		return obex.ResponseInternalError
	}
	return obex.ResponseSuccess
}

func (c *Composer) open(kind RecordKind) (phonebook.Cursor, error) {
	caps := kindTable[kind]
	if caps.isCalls {
		return c.src.Calls(caps.callType)
	}
	return c.src.ContactsByID(phonebook.OrderByID)
}

// lookup resolves a handle within a kind. Phonebook handles are contact ids;
// call history handles are one-based positions in the folder.
func (c *Composer) lookup(kind RecordKind, handle uint64) (phonebook.Entry, error) {
	caps := kindTable[kind]
	if !caps.isCalls {
		return c.src.ContactByID(handle)
	}

	cursor, err := c.src.Calls(caps.callType)
	if err != nil {
		return phonebook.Entry{}, err
	}
	defer cursor.Close()
	if !cursor.MoveToPosition(int(handle) - 1) {
		return phonebook.Entry{}, phonebook.ErrNotFound
	}
	entry, ok := cursor.Next()
	if !ok {
		return phonebook.Entry{}, phonebook.ErrNotFound
	}
	return entry, nil
}

// Count returns the number of records in a kind, not counting the owner.
func (c *Composer) Count(kind RecordKind) (int, error) {
	caps := kindTable[kind]
	if caps.isCalls {
		return c.src.CallCount(caps.callType)
	}
	return c.src.ContactCount()
}
