package revision

import (
	"errors"
	"log"
)

var (
	ErrDuplicateRevision = errors.New("DUPLICATE_REVISION")
	ErrUnknownRevision   = errors.New("UNKNOWN_REVISION")
)

type cacheRecord struct {
	rev   Revision
	state RevState
}

// Cache indexes a single document's revisions by rev id. It is owned by that
// document's task and must only be touched from it, which is why there is no
// lock here. Writes are append-only; the only mutation ever allowed is the
// Local -> Acked transition.
type Cache struct {
	docID         string
	revs          map[int64]*cacheRecord
	maxRevID      int64
	maxAckedRevID int64
}

func NewCache(docID string) *Cache {
	return &Cache{docID: docID, revs: make(map[int64]*cacheRecord)}
}

func (c *Cache) DocID() string        { return c.docID }
func (c *Cache) MaxRevID() int64      { return c.maxRevID }
func (c *Cache) MaxAckedRevID() int64 { return c.maxAckedRevID }

// Add records a revision. Revisions are immutable once stored; a second add
// under the same rev id is rejected.
func (c *Cache) Add(rev Revision, state RevState) error {
	if _, exists := c.revs[rev.RevID]; exists {
		return ErrDuplicateRevision
	}
	c.revs[rev.RevID] = &cacheRecord{rev: rev, state: state}
	if rev.RevID > c.maxRevID {
		c.maxRevID = rev.RevID
	}
	if state == StateAcked && rev.RevID > c.maxAckedRevID {
		c.maxAckedRevID = rev.RevID
	}
	return nil
}

// Get returns a cached revision and its state.
func (c *Cache) Get(revID int64) (Revision, RevState, bool) {
	rec, ok := c.revs[revID]
	if !ok {
		return Revision{}, StateLocal, false
	}
	return rec.rev, rec.state, true
}

// Checksum recomputes the MD5 over the stored payload, logging when it no
// longer matches the recorded checksum.
func (c *Cache) Checksum(revID int64) (string, error) {
	rec, ok := c.revs[revID]
	if !ok {
		return "", ErrUnknownRevision
	}
	sum := MD5Hex(rec.rev.DeltaData)
	if sum != rec.rev.MD5 {
		log.Printf("revision: checksum drift doc=%s rev=%d stored=%s computed=%s",
			c.docID, revID, rec.rev.MD5, sum)
	}
	return sum, nil
}

// Ack flips every revision up to and including revID from Local to Acked.
// The acked watermark only moves to ids the cache actually holds.
func (c *Cache) Ack(revID int64) {
	for id, rec := range c.revs {
		if id <= revID && rec.state == StateLocal {
			rec.state = StateAcked
		}
		if id <= revID && rec.state == StateAcked && id > c.maxAckedRevID {
			c.maxAckedRevID = id
		}
	}
}
