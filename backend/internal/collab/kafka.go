package collab

import (
	"time"

	"noteserver/backend/internal/ot/delta"
)

// RevisionEvent is the fan-out record published after a revision is folded
// into a document. Consumers (indexers, activity feeds) key on DocID.
type RevisionEvent struct {
	EventType string      `json:"eventType"` // always "REV_APPLIED"
	DocID     string      `json:"docId"`
	RevID     int64       `json:"revId"`
	BaseRevID int64       `json:"baseRevId"`
	AuthorID  uint64      `json:"authorId"`
	ClientID  string      `json:"clientId"`
	ClientSeq uint64      `json:"clientSeq"` // per-client monotonic sequence
	Change    delta.Delta `json:"change"`
	MD5       string      `json:"md5"`
	AppliedAt time.Time   `json:"appliedAt"`
}
