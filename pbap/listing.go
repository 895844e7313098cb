package pbap

import (
	"fmt"
	"io"
	"strings"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/obex"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/phonebook"
)

const (
	listingHeader = "<?xml version=\"1.0\"?>\r\n" +
		"<!DOCTYPE vcard-listing SYSTEM \"vcard-listing.dtd\">\r\n" +
		"<vCard-listing version=\"1.0\">\r\n"
	listingFooter = "</vCard-listing>\r\n"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// ListingRequest carries the listing parameters extracted from a request's
// application parameter block.
type ListingRequest struct {
	Kind            RecordKind
	Order           int
	SearchProperty  int
	SearchValue     string
	HasSearch       bool
	MaxListCount    int
	ListStartOffset int
}

// matchesOwner reports whether the owner record belongs in this listing.
// An unfiltered listing always includes it; a filtered one includes it only
// on a prefix match.
func (c *Composer) matchesOwner(req ListingRequest) bool {
	if !req.HasSearch {
		return true
	}
	switch req.SearchProperty {
	case SearchByNumber:
		return strings.HasPrefix(c.src.OwnerNumber(), req.SearchValue)
	default:
		return strings.HasPrefix(strings.ToLower(c.src.OwnerName()), strings.ToLower(req.SearchValue))
	}
}

// ComposeListing streams the folder listing XML. The owner record occupies
// listing slot zero of the phonebook folder whenever it matches the search,
// so a non-zero start offset is pulled back by one to keep the remaining
// slots aligned.
func (c *Composer) ComposeListing(op *obex.ServerOperation, req ListingRequest) byte {
	if req.MaxListCount < 0 || req.ListStartOffset < 0 {
		return obex.ResponseBadRequest
	}

	offset := req.ListStartOffset
	includeOwner := false
	if req.Kind.HasOwner() && c.matchesOwner(req) {
		if offset == 0 {
			includeOwner = true
		} else {
			offset--
		}
	}

	cursor, err := c.openListing(req)
	if err != nil {
		logger.Error(c.tag, "open %s listing: %v", req.Kind, err)
		return obex.ResponseInternalError
	}
	defer cursor.Close()

	if _, err := io.WriteString(op, listingHeader); err != nil {
		return c.listingWriteFailed(op, err)
	}

	count := 0
	needMore := func() bool { return count < req.MaxListCount }

	if includeOwner && needMore() {
		line := fmt.Sprintf("<card handle=\"0.vcf\" name=\"%s\"/>\r\n", xmlEscaper.Replace(c.src.OwnerName()))
		if _, err := io.WriteString(op, line); err != nil {
			return c.listingWriteFailed(op, err)
		}
		count++
	}

	if cursor.MoveToPosition(offset) {
		pos := offset
		for needMore() && !op.Aborted() {
			entry, ok := cursor.Next()
			if !ok {
				break
			}
			handle := entry.ID
			if kindTable[req.Kind].isCalls {
				handle = uint64(pos) + 1
			}
			name := entry.Name
			if name == "" {
				name = entry.Number
			}
			line := fmt.Sprintf("<card handle=\"%d.vcf\" name=\"%s\"/>\r\n", handle, xmlEscaper.Replace(name))
			if _, err := io.WriteString(op, line); err != nil {
				return c.listingWriteFailed(op, err)
			}
			count++
			pos++
		}
	}

	if _, err := io.WriteString(op, listingFooter); err != nil {
		return c.listingWriteFailed(op, err)
	}
	return obex.ResponseSuccess
}

func (c *Composer) listingWriteFailed(op *obex.ServerOperation, err error) byte {
	if op.Aborted() {
		return obex.ResponseSuccess
	}
	logger.Error(c.tag, "stream listing: %v", err)
	return obex.ResponseInternalError
}

// openListing picks the cursor for a listing: a search cursor when a filter
// is present, the ordered contact set or the call log otherwise.
func (c *Composer) openListing(req ListingRequest) (phonebook.Cursor, error) {
	caps := kindTable[req.Kind]
	if caps.isCalls {
		return c.src.Calls(caps.callType)
	}
	if req.HasSearch {
		if req.SearchProperty == SearchByNumber {
			return c.src.ContactsByNumber(req.SearchValue)
		}
		return c.src.ContactsByName(req.SearchValue)
	}
	if req.Order == OrderIndexed {
		return c.src.ContactsByID(phonebook.OrderByID)
	}
	return c.src.ContactsByID(phonebook.OrderByName)
}

// ListingSize returns the total listing size including the owner slot, for
// a request with a max list count of zero.
func (c *Composer) ListingSize(req ListingRequest) (int, error) {
	caps := kindTable[req.Kind]
	if caps.isCalls {
		return c.src.CallCount(caps.callType)
	}

	cursor, err := c.openListing(req)
	if err != nil {
		return 0, err
	}
	defer cursor.Close()
	n := cursor.Count()
	if req.Kind.HasOwner() && c.matchesOwner(req) {
		n++
	}
	return n, nil
}
