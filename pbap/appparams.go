package pbap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// InvalidValue marks an application parameter as absent. Absent parameters
// are omitted from the wire encoding entirely.
const InvalidValue = -1

// Application parameter tag ids, PBAP profile specification v1.2.
const (
	tagOrder                   byte = 0x01 // 0x00=indexed, 0x01=alphanumeric, 0x02=phonetic
	tagSearchValue             byte = 0x02
	tagSearchProperty          byte = 0x03 // 0x00=name, 0x01=number, 0x02=sound
	tagMaxListCount            byte = 0x04 // 0x0000..0xFFFF
	tagListStartOffset         byte = 0x05
	tagPropertySelector        byte = 0x06 // 64-bit mask
	tagFormat                  byte = 0x07 // 0x00=vCard 2.1, 0x01=vCard 3.0
	tagPhonebookSize           byte = 0x08 // 0x0000..0xFFFF
	tagNewMissedCalls          byte = 0x09 // 0x00..0xFF
	tagPrimaryVersionCounter   byte = 0x0A // 128-bit
	tagSecondaryVersionCounter byte = 0x0B // 128-bit
	tagVcardSelector           byte = 0x0C // 64-bit mask
	tagDatabaseIdentifier      byte = 0x0D // 128-bit
	tagVcardSelectorOperator   byte = 0x0E // 0x00=OR, 0x01=AND
	tagResetNewMissedCalls     byte = 0x0F // 0x01=reset
	tagSupportedFeatures       byte = 0x10 // feature bitmask
)

const (
	byteLen1  = 0x01
	byteLen2  = 0x02
	byteLen4  = 0x04
	byteLen8  = 0x08
	byteLen16 = 0x10
)

// ErrEncoding is returned when the search value cannot be represented as
// UTF-8 on the wire.
var ErrEncoding = errors.New("pbap: unsupported text encoding")

// AppParams is the sparse application parameter record carried in PBAP
// requests and responses. Integer fields use InvalidValue when absent;
// the 128-bit counters are nil when absent, 16 bytes when present.
//
// Note on wire widths: several tags declare a 1-byte length on the wire yet
// carry a 2-byte big-endian value (ORDER, SEARCH_PROPERTY, FORMAT,
// NEW_MISSED_CALLS, VCARD_SELECTOR_OPERATOR, RESET_NEW_MISSED_CALLS), and
// SUPPORTED_FEATURES declares 4 bytes yet carries 2. Peers of this stack
// have always exchanged that layout, so it is kept byte-for-byte; the
// widths live in one table shared by Encode and Decode.
type AppParams struct {
	Order               int
	SearchValue         string
	HasSearchValue      bool
	SearchProperty      int
	MaxListCount        int
	ListStartOffset     int
	PropertySelector    int64
	Format              int
	PhonebookSize       int
	NewMissedCalls      int
	PrimaryVersion      []byte
	SecondaryVersion    []byte
	VcardSelector       int64
	DatabaseIdentifier  []byte
	VcardSelectorOp     int
	ResetNewMissedCalls int
	SupportedFeatures   int64
}

// NewAppParams returns a record with every parameter absent.
func NewAppParams() *AppParams {
	return &AppParams{
		Order:               InvalidValue,
		SearchProperty:      InvalidValue,
		MaxListCount:        InvalidValue,
		ListStartOffset:     InvalidValue,
		PropertySelector:    InvalidValue,
		Format:              InvalidValue,
		PhonebookSize:       InvalidValue,
		NewMissedCalls:      InvalidValue,
		VcardSelector:       InvalidValue,
		VcardSelectorOp:     InvalidValue,
		ResetNewMissedCalls: InvalidValue,
		SupportedFeatures:   InvalidValue,
	}
}

// SetSearchValue marks the search value present.
func (p *AppParams) SetSearchValue(s string) {
	p.SearchValue = s
	p.HasSearchValue = true
}

// SetMaxListCount validates the PBAP range before assignment.
func (p *AppParams) SetMaxListCount(v int) error {
	if v < 0 || v > 0xFFFF {
		return fmt.Errorf("pbap: max list count %d out of range, valid range is 0x0000 to 0xFFFF", v)
	}
	p.MaxListCount = v
	return nil
}

// SetPrimaryVersionCounter stores a copy of the 16-byte counter.
func (p *AppParams) SetPrimaryVersionCounter(b []byte) error {
	c, err := copyWide(b)
	if err != nil {
		return err
	}
	p.PrimaryVersion = c
	return nil
}

// SetSecondaryVersionCounter stores a copy of the 16-byte counter.
func (p *AppParams) SetSecondaryVersionCounter(b []byte) error {
	c, err := copyWide(b)
	if err != nil {
		return err
	}
	p.SecondaryVersion = c
	return nil
}

// SetDatabaseIdentifier stores a copy of the 16-byte identifier.
func (p *AppParams) SetDatabaseIdentifier(b []byte) error {
	c, err := copyWide(b)
	if err != nil {
		return err
	}
	p.DatabaseIdentifier = c
	return nil
}

func copyWide(b []byte) ([]byte, error) {
	if len(b) != byteLen16 {
		return nil, fmt.Errorf("pbap: wide value must be %d bytes, got %d", byteLen16, len(b))
	}
	return append([]byte(nil), b...), nil
}

// maxLength bounds the encoded size with every fixed field present.
func (p *AppParams) maxLength() int {
	length := 16 * 2 // tag id + tag length per parameter
	length += 28     // fixed-width values
	if p.PrimaryVersion != nil {
		length += byteLen16
	}
	if p.SecondaryVersion != nil {
		length += byteLen16
	}
	if p.DatabaseIdentifier != nil {
		length += byteLen16
	}
	if p.HasSearchValue {
		length += len(p.SearchValue)
	}
	return length
}

// Encode serializes the present parameters as (tag, length, value) triples
// in fixed tag order, big-endian, with no padding. The returned slice is
// truncated to the exact number of bytes written.
func (p *AppParams) Encode() ([]byte, error) {
	if p.MaxListCount != InvalidValue && (p.MaxListCount < 0 || p.MaxListCount > 0xFFFF) {
		return nil, fmt.Errorf("pbap: max list count %d out of range, valid range is 0x0000 to 0xFFFF", p.MaxListCount)
	}

	buf := bytes.NewBuffer(make([]byte, 0, p.maxLength()))

	if p.Order != InvalidValue {
		put16(buf, tagOrder, byteLen1, uint16(p.Order))
	}
	if p.HasSearchValue {
		if !utf8.ValidString(p.SearchValue) {
			return nil, ErrEncoding
		}
		sv := []byte(p.SearchValue)
		if len(sv) > 0xFF {
			return nil, fmt.Errorf("pbap: search value too long (%d bytes)", len(sv))
		}
		buf.WriteByte(tagSearchValue)
		buf.WriteByte(byte(len(sv)))
		buf.Write(sv)
	}
	if p.SearchProperty != InvalidValue {
		put16(buf, tagSearchProperty, byteLen1, uint16(p.SearchProperty))
	}
	if p.MaxListCount != InvalidValue {
		put16(buf, tagMaxListCount, byteLen2, uint16(p.MaxListCount))
	}
	if p.ListStartOffset != InvalidValue {
		put16(buf, tagListStartOffset, byteLen2, uint16(p.ListStartOffset))
	}
	if p.PropertySelector != InvalidValue {
		put64(buf, tagPropertySelector, byteLen8, uint64(p.PropertySelector))
	}
	if p.Format != InvalidValue {
		put16(buf, tagFormat, byteLen1, uint16(p.Format))
	}
	if p.PhonebookSize != InvalidValue {
		put16(buf, tagPhonebookSize, byteLen2, uint16(p.PhonebookSize))
	}
	if p.NewMissedCalls != InvalidValue {
		put16(buf, tagNewMissedCalls, byteLen1, uint16(p.NewMissedCalls))
	}
	if p.PrimaryVersion != nil {
		putWide(buf, tagPrimaryVersionCounter, p.PrimaryVersion)
	}
	if p.SecondaryVersion != nil {
		putWide(buf, tagSecondaryVersionCounter, p.SecondaryVersion)
	}
	if p.VcardSelector != InvalidValue {
		put64(buf, tagVcardSelector, byteLen8, uint64(p.VcardSelector))
	}
	if p.DatabaseIdentifier != nil {
		putWide(buf, tagDatabaseIdentifier, p.DatabaseIdentifier)
	}
	if p.VcardSelectorOp != InvalidValue {
		put16(buf, tagVcardSelectorOperator, byteLen1, uint16(p.VcardSelectorOp))
	}
	if p.ResetNewMissedCalls != InvalidValue {
		put16(buf, tagResetNewMissedCalls, byteLen1, uint16(p.ResetNewMissedCalls))
	}
	if p.SupportedFeatures != InvalidValue {
		put16(buf, tagSupportedFeatures, byteLen4, uint16(p.SupportedFeatures))
	}

	return buf.Bytes(), nil
}

// put16 writes a tag with the given declared length and a 2-byte value.
func put16(buf *bytes.Buffer, tag, declared byte, v uint16) {
	buf.WriteByte(tag)
	buf.WriteByte(declared)
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

// put64 writes a tag with the given declared length and an 8-byte value.
func put64(buf *bytes.Buffer, tag, declared byte, v uint64) {
	buf.WriteByte(tag)
	buf.WriteByte(declared)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	buf.Write(tmp[:])
}

// putWide writes a tag with a 16-byte value.
func putWide(buf *bytes.Buffer, tag byte, v []byte) {
	buf.WriteByte(tag)
	buf.WriteByte(byteLen16)
	buf.Write(v)
}

// wireWidth returns the declared length byte and the actual number of value
// bytes that follow it for a fixed-width tag.
func wireWidth(tag byte) (declared byte, width int, ok bool) {
	switch tag {
	case tagOrder, tagSearchProperty, tagFormat, tagNewMissedCalls,
		tagVcardSelectorOperator, tagResetNewMissedCalls:
		return byteLen1, 2, true
	case tagMaxListCount, tagListStartOffset, tagPhonebookSize:
		return byteLen2, 2, true
	case tagPropertySelector, tagVcardSelector:
		return byteLen8, 8, true
	case tagPrimaryVersionCounter, tagSecondaryVersionCounter, tagDatabaseIdentifier:
		return byteLen16, 16, true
	case tagSupportedFeatures:
		return byteLen4, 2, true
	default:
		return 0, 0, false
	}
}

// Decode parses an application parameter block produced by Encode. Fields
// absent on the wire stay absent in the result; a duplicated tag is
// rejected.
func Decode(data []byte) (*AppParams, error) {
	p := NewAppParams()
	seen := make(map[byte]bool)

	i := 0
	for i < len(data) {
		if i+2 > len(data) {
			return nil, fmt.Errorf("pbap: truncated parameter header at offset %d", i)
		}
		tag := data[i]
		declared := data[i+1]
		i += 2

		if seen[tag] {
			return nil, fmt.Errorf("pbap: duplicate parameter tag 0x%02X", tag)
		}
		seen[tag] = true

		if tag == tagSearchValue {
			n := int(declared)
			if i+n > len(data) {
				return nil, fmt.Errorf("pbap: truncated search value (%d bytes declared)", n)
			}
			if !utf8.Valid(data[i : i+n]) {
				return nil, ErrEncoding
			}
			p.SetSearchValue(string(data[i : i+n]))
			i += n
			continue
		}

		wantDeclared, width, ok := wireWidth(tag)
		if !ok {
			return nil, fmt.Errorf("pbap: unknown parameter tag 0x%02X", tag)
		}
		if declared != wantDeclared {
			return nil, fmt.Errorf("pbap: tag 0x%02X declares length %d, want %d", tag, declared, wantDeclared)
		}
		if i+width > len(data) {
			return nil, fmt.Errorf("pbap: truncated value for tag 0x%02X", tag)
		}
		value := data[i : i+width]
		i += width

		switch tag {
		case tagOrder:
			p.Order = int(binary.BigEndian.Uint16(value))
		case tagSearchProperty:
			p.SearchProperty = int(binary.BigEndian.Uint16(value))
		case tagMaxListCount:
			p.MaxListCount = int(binary.BigEndian.Uint16(value))
		case tagListStartOffset:
			p.ListStartOffset = int(binary.BigEndian.Uint16(value))
		case tagPropertySelector:
			p.PropertySelector = int64(binary.BigEndian.Uint64(value))
		case tagFormat:
			p.Format = int(binary.BigEndian.Uint16(value))
		case tagPhonebookSize:
			p.PhonebookSize = int(binary.BigEndian.Uint16(value))
		case tagNewMissedCalls:
			p.NewMissedCalls = int(binary.BigEndian.Uint16(value))
		case tagPrimaryVersionCounter:
			p.PrimaryVersion = append([]byte(nil), value...)
		case tagSecondaryVersionCounter:
			p.SecondaryVersion = append([]byte(nil), value...)
		case tagVcardSelector:
			p.VcardSelector = int64(binary.BigEndian.Uint64(value))
		case tagDatabaseIdentifier:
			p.DatabaseIdentifier = append([]byte(nil), value...)
		case tagVcardSelectorOperator:
			p.VcardSelectorOp = int(binary.BigEndian.Uint16(value))
		case tagResetNewMissedCalls:
			p.ResetNewMissedCalls = int(binary.BigEndian.Uint16(value))
		case tagSupportedFeatures:
			p.SupportedFeatures = int64(binary.BigEndian.Uint16(value))
		}
	}
	return p, nil
}
