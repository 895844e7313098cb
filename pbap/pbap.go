package pbap

import "github.com/google/uuid"

// ServiceUUID is the Phonebook Access PSE service class id.
var ServiceUUID = uuid.MustParse("0000112f-0000-1000-8000-00805f9b34fb")

// TargetID is the 16-byte PBAP target carried in the OBEX CONNECT handshake.
var TargetID = []byte{
	0x79, 0x61, 0x35, 0xf0, 0xf0, 0xc5, 0x11, 0xd8,
	0x09, 0x66, 0x08, 0x00, 0x20, 0x0c, 0x9a, 0x66,
}

// OBEX object types served by a PSE.
const (
	TypePhonebook    = "x-bt/phonebook"
	TypeVcardListing = "x-bt/vcard-listing"
	TypeVcard        = "x-bt/vcard"
)

// Repository object paths. Pull requests name one of these, or an entry
// handle beneath one of the folders.
const (
	PathPhonebook     = "telecom/pb.vcf"
	PathIncomingCalls = "telecom/ich.vcf"
	PathOutgoingCalls = "telecom/och.vcf"
	PathMissedCalls   = "telecom/mch.vcf"
	PathCombinedCalls = "telecom/cch.vcf"
)

// Order values for listings.
const (
	OrderIndexed      = 0x00
	OrderAlphanumeric = 0x01
	OrderPhonetic     = 0x02
)

// Search property values.
const (
	SearchByName   = 0x00
	SearchByNumber = 0x01
	SearchBySound  = 0x02
)

// vCard format values.
const (
	FormatVcard21 = 0x00
	FormatVcard30 = 0x01
)
