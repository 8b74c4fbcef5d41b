package ws

import (
	"time"

	"noteserver/backend/internal/ot/delta"
)

// ClientMessage is the single inbound envelope; Type selects which fields
// are meaningful.
type ClientMessage struct {
	Type     string `json:"type"`
	DocID    string `json:"docId"`
	DocTitle string `json:"docTitle"`
	// UserID names another member, e.g. whose cursor to fetch.
	UserID    uint64      `json:"userId,omitempty"`
	Range     interface{} `json:"range,omitempty"`
	BaseRevID int64       `json:"baseRevId"`
	ClientID  string      `json:"clientId"`
	ClientSeq uint64      `json:"clientSeq"`
	Change    delta.Delta `json:"change"`
	Content   string      `json:"content,omitempty"`
	// rev_pull bounds.
	FromRevID int64 `json:"fromRevId,omitempty"`
	ToRevID   int64 `json:"toRevId,omitempty"`
}

type PresenceMember struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

type ServerMessage struct {
	Type    string           `json:"type"`
	UserID  uint64           `json:"userId,omitempty"`
	DocID   string           `json:"docId,omitempty"`
	RevID   int64            `json:"revId,omitempty"`
	Members []PresenceMember `json:"members,omitempty"`
	Cursor  interface{}      `json:"cursor,omitempty"`
	Range   interface{}      `json:"range,omitempty"`
	Content string           `json:"content,omitempty"`
}

// RevSubmitMessage carries one client revision.
type RevSubmitMessage struct {
	Type      string `json:"type"`
	DocID     string `json:"docId"`
	BaseRevID int64  `json:"baseRevId"`
	// Client instance id. One user may hold several (tabs, devices).
	ClientID string `json:"clientId"`
	// Per-client monotonic sequence, the dedup key.
	ClientSeq uint64      `json:"clientSeq"`
	Change    delta.Delta `json:"change"`
}

// RevAckMessage tells the submitter where its revision landed. The client
// promotes the matching pending revision to acked.
type RevAckMessage struct {
	Type      string `json:"type"` // always "rev_ack"
	DocID     string `json:"docId"`
	BaseRevID int64  `json:"baseRevId"`
	RevID     int64  `json:"revId"`
	ClientID  string `json:"clientId"`
	ClientSeq uint64 `json:"clientSeq"`
	MD5       string `json:"md5"`
}

// RevPushMessage fans a landed revision out to the other connections in the
// room (other users and the author's other tabs). Receivers reconcile it
// against their pending local revisions.
type RevPushMessage struct {
	Type      string      `json:"type"` // always "rev_push"
	DocID     string      `json:"docId"`
	RevID     int64       `json:"revId"`
	BaseRevID int64       `json:"baseRevId"`
	AuthorID  uint64      `json:"authorId"`
	ClientID  string      `json:"clientId,omitempty"`
	Change    delta.Delta `json:"change"`
	MD5       string      `json:"md5"`
	AppliedAt time.Time   `json:"appliedAt,omitempty"`
}
