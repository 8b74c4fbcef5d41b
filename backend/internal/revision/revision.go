// Package revision numbers document deltas, tracks their Local/Acked
// lifecycle, and reconciles concurrent local and remote revisions with
// transform.
package revision

import (
	"crypto/md5"
	"encoding/hex"
	"log"

	"noteserver/backend/internal/ot/delta"
)

// RevType says where a revision was authored.
type RevType int

const (
	TypeLocal  RevType = 0
	TypeRemote RevType = 1
)

// RevState is the persistence lifecycle: Local until positively acknowledged,
// Acked afterward, never anything else.
type RevState int

const (
	StateLocal RevState = 0
	StateAcked RevState = 1
)

// RevTypeFrom decodes a persisted integer. Unknown codes happen across
// schema migrations; they fall back to Local with a warning rather than
// failing the read.
func RevTypeFrom(v int) RevType {
	switch v {
	case 0:
		return TypeLocal
	case 1:
		return TypeRemote
	default:
		log.Printf("revision: unsupported rev type %d, fallback to Local", v)
		return TypeLocal
	}
}

// RevStateFrom decodes a persisted integer with the same tolerant policy.
func RevStateFrom(v int) RevState {
	switch v {
	case 0:
		return StateLocal
	case 1:
		return StateAcked
	default:
		log.Printf("revision: unsupported rev state %d, fallback to Local", v)
		return StateLocal
	}
}

func (t RevType) String() string {
	if t == TypeRemote {
		return "Remote"
	}
	return "Local"
}

func (s RevState) String() string {
	if s == StateAcked {
		return "Acked"
	}
	return "Local"
}

// Revision is a numbered, immutable delta. RevID is strictly monotonic per
// document; BaseRevID is the revision it was authored against.
type Revision struct {
	DocID     string  `json:"docId"`
	BaseRevID int64   `json:"baseRevId"`
	RevID     int64   `json:"revId"`
	DeltaData []byte  `json:"deltaData"`
	MD5       string  `json:"md5"`
	Ty        RevType `json:"ty"`
}

// MD5Hex is the checksum carried in every revision envelope.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func New(docID string, baseRevID, revID int64, deltaData []byte, ty RevType) Revision {
	return Revision{
		DocID:     docID,
		BaseRevID: baseRevID,
		RevID:     revID,
		DeltaData: deltaData,
		MD5:       MD5Hex(deltaData),
		Ty:        ty,
	}
}

// FromDelta serializes d and wraps it into a revision.
func FromDelta(docID string, baseRevID, revID int64, d delta.Delta, ty RevType) (Revision, error) {
	data, err := d.Encode()
	if err != nil {
		return Revision{}, err
	}
	return New(docID, baseRevID, revID, data, ty), nil
}

// Delta decodes the revision payload.
func (r Revision) Delta() (delta.Delta, error) {
	return delta.Decode(r.DeltaData)
}
