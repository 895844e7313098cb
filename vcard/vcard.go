// Package vcard renders contact records as vCard 2.1 or 3.0 text.
package vcard

import (
	"fmt"
	"strings"
)

// Version selects the vCard dialect.
type Version int

const (
	Version21 Version = iota
	Version30
)

func (v Version) String() string {
	if v == Version30 {
		return "3.0"
	}
	return "2.1"
}

// TranslateNumber rewrites dialing control characters into their vCard
// equivalents: ',' (pause) becomes 'p' and ';' (wait) becomes 'w'.
func TranslateNumber(number string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',':
			return 'p'
		case ';':
			return 'w'
		default:
			return r
		}
	}, number)
}

// Compose renders a single contact as vCard text with CRLF line endings.
func Compose(name, number string, v Version) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\n")
	fmt.Fprintf(&b, "VERSION:%s\r\n", v)
	if v == Version30 {
		fmt.Fprintf(&b, "FN:%s\r\n", name)
	}
	fmt.Fprintf(&b, "N:%s\r\n", name)
	fmt.Fprintf(&b, "TEL;TYPE=VOICE:%s\r\n", TranslateNumber(number))
	b.WriteString("END:VCARD\r\n")
	return b.String()
}

// ComposeCall renders a call history entry. The call direction and time are
// carried as X- extension properties the way phone stacks exchange them.
func ComposeCall(name, number, callType, timestamp string, v Version) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\n")
	fmt.Fprintf(&b, "VERSION:%s\r\n", v)
	if v == Version30 {
		fmt.Fprintf(&b, "FN:%s\r\n", name)
	}
	fmt.Fprintf(&b, "N:%s\r\n", name)
	fmt.Fprintf(&b, "TEL;TYPE=VOICE:%s\r\n", TranslateNumber(number))
	if timestamp != "" {
		fmt.Fprintf(&b, "X-IRMC-CALL-DATETIME;%s:%s\r\n", callType, timestamp)
	}
	b.WriteString("END:VCARD\r\n")
	return b.String()
}
