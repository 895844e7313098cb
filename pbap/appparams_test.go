package pbap

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestEncodePropertySelectorOnly(t *testing.T) {
	p := NewAppParams()
	p.PropertySelector = 0x03

	got, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []byte{0x06, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	got, err := NewAppParams().Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty params encoded to % X, want no bytes", got)
	}
}

// Several tags declare one width but carry another on the wire; the encoding
// is fixed by what deployed peers exchange.
func TestEncodeDeclaredWidths(t *testing.T) {
	tests := []struct {
		name  string
		build func(p *AppParams)
		want  []byte
	}{
		{
			name:  "order declares 1 byte, carries 2",
			build: func(p *AppParams) { p.Order = OrderAlphanumeric },
			want:  []byte{0x01, 0x01, 0x00, 0x01},
		},
		{
			name:  "format declares 1 byte, carries 2",
			build: func(p *AppParams) { p.Format = FormatVcard30 },
			want:  []byte{0x07, 0x01, 0x00, 0x01},
		},
		{
			name:  "supported features declares 4 bytes, carries 2",
			build: func(p *AppParams) { p.SupportedFeatures = 0x0203 },
			want:  []byte{0x10, 0x04, 0x02, 0x03},
		},
		{
			name:  "max list count declares and carries 2",
			build: func(p *AppParams) { p.MaxListCount = 0x1234 },
			want:  []byte{0x04, 0x02, 0x12, 0x34},
		},
		{
			name:  "new missed calls declares 1 byte, carries 2",
			build: func(p *AppParams) { p.NewMissedCalls = 7 },
			want:  []byte{0x09, 0x01, 0x00, 0x07},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAppParams()
			tt.build(p)
			got, err := p.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("encoded % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncodeSearchValueLength(t *testing.T) {
	p := NewAppParams()
	p.SetSearchValue("héllo") // 6 bytes of UTF-8, 5 runes

	got, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := append([]byte{0x02, 0x06}, []byte("héllo")...)
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestEncodeCanonicalTagOrder(t *testing.T) {
	p := NewAppParams()
	// Populated in reverse tag order; the wire order must not follow it.
	p.Format = FormatVcard21
	p.ListStartOffset = 1
	p.Order = OrderIndexed

	got, err := p.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := []byte{
		0x01, 0x01, 0x00, 0x00, // order
		0x05, 0x02, 0x00, 0x01, // list start offset
		0x07, 0x01, 0x00, 0x00, // format
	}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % X, want % X", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	counter := []byte{
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
	}

	tests := []struct {
		name  string
		build func(p *AppParams)
	}{
		{"empty", func(p *AppParams) {}},
		{"single integer", func(p *AppParams) { p.PhonebookSize = 42 }},
		{"search value", func(p *AppParams) {
			p.SetSearchValue("Alice")
			p.SearchProperty = SearchByName
		}},
		{"empty search value", func(p *AppParams) { p.SetSearchValue("") }},
		{"wide counters", func(p *AppParams) {
			if err := p.SetPrimaryVersionCounter(counter); err != nil {
				t.Fatal(err)
			}
			if err := p.SetSecondaryVersionCounter(counter); err != nil {
				t.Fatal(err)
			}
			if err := p.SetDatabaseIdentifier(counter); err != nil {
				t.Fatal(err)
			}
		}},
		{"selectors and bounds", func(p *AppParams) {
			p.PropertySelector = 0x7FFFFFFFFFFFFFFF
			p.VcardSelector = 0x85
			p.VcardSelectorOp = 1
			p.MaxListCount = 0xFFFF
			p.ListStartOffset = 0
		}},
		{"everything else", func(p *AppParams) {
			p.Order = OrderPhonetic
			p.Format = FormatVcard30
			p.NewMissedCalls = 255
			p.ResetNewMissedCalls = 1
			p.SupportedFeatures = 0x0001
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewAppParams()
			tt.build(p)

			encoded, err := p.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(p, decoded) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, p)
			}
		})
	}
}

func TestSetMaxListCountRange(t *testing.T) {
	p := NewAppParams()
	for _, v := range []int{0, 1, 0xFFFF} {
		if err := p.SetMaxListCount(v); err != nil {
			t.Errorf("SetMaxListCount(%d) failed: %v", v, err)
		}
	}
	for _, v := range []int{-1, 0x10000} {
		if err := p.SetMaxListCount(v); err == nil {
			t.Errorf("SetMaxListCount(%d) accepted an out-of-range value", v)
		}
	}
}

func TestEncodeRejectsBadSearchValue(t *testing.T) {
	p := NewAppParams()
	p.SetSearchValue(string([]byte{0xFF, 0xFE}))
	if _, err := p.Encode(); !errors.Is(err, ErrEncoding) {
		t.Errorf("invalid UTF-8 search value: got %v, want ErrEncoding", err)
	}

	p = NewAppParams()
	p.SetSearchValue(string(bytes.Repeat([]byte{'a'}, 256)))
	if _, err := p.Encode(); err == nil {
		t.Error("256-byte search value was not rejected")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated header", []byte{0x04}},
		{"truncated value", []byte{0x04, 0x02, 0x12}},
		{"truncated search value", []byte{0x02, 0x05, 'a', 'b'}},
		{"unknown tag", []byte{0x40, 0x02, 0x00, 0x00}},
		{"wrong declared length", []byte{0x04, 0x04, 0x00, 0x00, 0x00, 0x00}},
		{"duplicate tag", []byte{0x04, 0x02, 0x00, 0x01, 0x04, 0x02, 0x00, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); err == nil {
				t.Errorf("Decode(% X) succeeded, want error", tt.data)
			}
		})
	}
}

func TestDecodeInvalidSearchValueEncoding(t *testing.T) {
	data := []byte{0x02, 0x02, 0xFF, 0xFE}
	if _, err := Decode(data); !errors.Is(err, ErrEncoding) {
		t.Errorf("got %v, want ErrEncoding", err)
	}
}
