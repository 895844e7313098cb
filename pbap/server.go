package pbap

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/obex"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/phonebook"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/progress"
	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/vcard"
)

// defaultMaxListCount applies when a request omits the parameter.
const defaultMaxListCount = 0xFFFF

// Handler serves the phonebook access profile over an OBEX server session.
type Handler struct {
	composer *Composer
	src      phonebook.Source
	store    *progress.Store
	tag      string
}

func NewHandler(src phonebook.Source) *Handler {
	return &Handler{
		composer: NewComposer(src),
		src:      src,
		tag:      "PbapServer",
	}
}

// SetProgressStore enables persisted progress reporting for pulls.
func (h *Handler) SetProgressStore(s *progress.Store) {
	h.store = s
}

// SetSerializer overrides how records are rendered as vCard text.
func (h *Handler) SetSerializer(fn SerializeFunc) {
	h.composer.SetSerializer(fn)
}

// OnConnect accepts only sessions addressed to the phonebook access target.
func (h *Handler) OnConnect(device string, target []byte) bool {
	return bytes.Equal(target, TargetID)
}

// OnGet routes a request by its object type.
func (h *Handler) OnGet(req *obex.HeaderSet, op *obex.ServerOperation) byte {
	params := NewAppParams()
	if req.AppParams != nil {
		p, err := Decode(req.AppParams)
		if err != nil {
			logger.Warn(h.tag, "bad application parameters for %q: %v", req.Name, err)
			return obex.ResponseBadRequest
		}
		params = p
	}

	switch req.Type {
	case TypePhonebook:
		return h.servePhonebook(req.Name, params, op)
	case TypeVcardListing:
		return h.serveListing(req.Name, params, op)
	case TypeVcard:
		return h.serveEntry(req.Name, params, op)
	default:
		logger.Warn(h.tag, "unsupported object type %q", req.Type)
		return obex.ResponseBadRequest
	}
}

// folderKind maps a repository path to its record kind. Names arrive with or
// without the telecom/ prefix and with or without the .vcf suffix.
func folderKind(name string) (RecordKind, bool) {
	name = strings.TrimPrefix(strings.TrimPrefix(name, "/"), "telecom/")
	name = strings.TrimSuffix(name, ".vcf")
	switch name {
	case "pb":
		return KindPhonebook, true
	case "ich":
		return KindIncomingCalls, true
	case "och":
		return KindOutgoingCalls, true
	case "mch":
		return KindMissedCalls, true
	case "cch":
		return KindCombinedCalls, true
	default:
		return 0, false
	}
}

func formatVersion(params *AppParams) vcard.Version {
	if params.Format == FormatVcard30 {
		return vcard.Version30
	}
	return vcard.Version21
}

func (h *Handler) servePhonebook(name string, params *AppParams, op *obex.ServerOperation) byte {
	kind, ok := folderKind(name)
	if !ok {
		logger.Warn(h.tag, "pull of unknown object %q", name)
		return obex.ResponseNotFound
	}

	if kind == KindMissedCalls && params.ResetNewMissedCalls == 1 {
		if rs, ok := h.src.(interface{ ResetNewMissedCalls() }); ok {
			rs.ResetNewMissedCalls()
		}
	}

	maxListCount := params.MaxListCount
	if maxListCount == InvalidValue {
		maxListCount = defaultMaxListCount
	}

	if maxListCount == 0 {
		return h.sizeResponse(kind, op)
	}

	if code := h.attachResponseParams(kind, op); code != obex.ResponseSuccess {
		return code
	}
	if h.store != nil {
		rep := progress.NewReporter(h.store, uuid.New(), 0)
		op.SetProgressCallback(rep.Post)
		defer rep.Exit()
	}

	offset := params.ListStartOffset
	if offset == InvalidValue {
		offset = 0
	}

	// The owner record occupies slot zero of the phonebook, so a pull from
	// offset zero starts with it and the stored records fill the rest.
	// Folders without an owner slot are plain one-based record sequences.
	remaining := maxListCount
	start := offset + 1
	if kind.HasOwner() {
		if offset == 0 {
			if code := h.composer.ComposeOwner(op, formatVersion(params)); code != obex.ResponseSuccess {
				return code
			}
			remaining--
			start = 1
		} else {
			start = offset
		}
	}
	if remaining == 0 {
		return obex.ResponseSuccess
	}

	rng := RecordRange{Start: start, End: start + remaining - 1}
	return h.composer.ComposeRange(op, kind, rng, formatVersion(params))
}

func (h *Handler) serveListing(name string, params *AppParams, op *obex.ServerOperation) byte {
	kind, ok := folderKind(name)
	if !ok {
		logger.Warn(h.tag, "listing of unknown folder %q", name)
		return obex.ResponseNotFound
	}

	req := ListingRequest{
		Kind:            kind,
		Order:           OrderIndexed,
		SearchProperty:  SearchByName,
		SearchValue:     params.SearchValue,
		HasSearch:       params.HasSearchValue,
		MaxListCount:    defaultMaxListCount,
		ListStartOffset: 0,
	}
	if params.Order != InvalidValue {
		req.Order = params.Order
	}
	if params.SearchProperty != InvalidValue {
		req.SearchProperty = params.SearchProperty
	}
	if params.MaxListCount != InvalidValue {
		req.MaxListCount = params.MaxListCount
	}
	if params.ListStartOffset != InvalidValue {
		req.ListStartOffset = params.ListStartOffset
	}

	if req.MaxListCount == 0 {
		n, err := h.composer.ListingSize(req)
		if err != nil {
			logger.Error(h.tag, "%s listing size: %v", kind, err)
			return obex.ResponseInternalError
		}
		return h.sizeResponseWithCount(kind, n, op)
	}

	if code := h.attachResponseParams(kind, op); code != obex.ResponseSuccess {
		return code
	}
	return h.composer.ComposeListing(op, req)
}

func (h *Handler) serveEntry(name string, params *AppParams, op *obex.ServerOperation) byte {
	folder, base := "pb", strings.TrimPrefix(name, "/")
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		folder, base = base[:i], base[i+1:]
	}
	kind, ok := folderKind(folder)
	if !ok {
		logger.Warn(h.tag, "entry pull from unknown folder %q", folder)
		return obex.ResponseNotFound
	}

	handle, err := strconv.ParseUint(strings.TrimSuffix(base, ".vcf"), 10, 64)
	if err != nil {
		logger.Warn(h.tag, "bad entry handle %q", base)
		return obex.ResponseBadRequest
	}
	return h.composer.ComposeOne(op, kind, handle, formatVersion(params))
}

// sizeResponse answers a pull with a max list count of zero: no body, just
// the size in the response's application parameters.
func (h *Handler) sizeResponse(kind RecordKind, op *obex.ServerOperation) byte {
	n, err := h.composer.Count(kind)
	if err != nil {
		logger.Error(h.tag, "%s size: %v", kind, err)
		return obex.ResponseInternalError
	}
	if kind.HasOwner() {
		n++
	}
	return h.sizeResponseWithCount(kind, n, op)
}

func (h *Handler) sizeResponseWithCount(kind RecordKind, n int, op *obex.ServerOperation) byte {
	resp := NewAppParams()
	resp.PhonebookSize = n
	if kind == KindMissedCalls {
		missed, err := h.src.NewMissedCalls()
		if err != nil {
			logger.Error(h.tag, "new missed calls: %v", err)
			return obex.ResponseInternalError
		}
		resp.NewMissedCalls = missed
	}
	encoded, err := resp.Encode()
	if err != nil {
		return obex.ResponseInternalError
	}
	op.SetResponseAppParams(encoded)
	logger.Debug(h.tag, "%s size response: %d entries", kind, n)
	return obex.ResponseSuccess
}

// attachResponseParams adds the unseen missed call count to missed call
// folder responses.
func (h *Handler) attachResponseParams(kind RecordKind, op *obex.ServerOperation) byte {
	if kind != KindMissedCalls {
		return obex.ResponseSuccess
	}
	missed, err := h.src.NewMissedCalls()
	if err != nil {
		logger.Error(h.tag, "new missed calls: %v", err)
		return obex.ResponseInternalError
	}
	resp := NewAppParams()
	resp.NewMissedCalls = missed
	encoded, err := resp.Encode()
	if err != nil {
		return obex.ResponseInternalError
	}
	op.SetResponseAppParams(encoded)
	return obex.ResponseSuccess
}
