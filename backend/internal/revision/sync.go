package revision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"noteserver/backend/internal/ot/delta"
	"noteserver/backend/internal/ot/document"
)

var (
	// ErrDiverged: reconciliation failed; the session is dead until the
	// caller reloads from a server snapshot.
	ErrDiverged = errors.New("DIVERGED")
	// ErrPersistFailed: the revision log rejected a write past the retry
	// budget.
	ErrPersistFailed = errors.New("PERSIST_FAILED")
	// ErrTransportFailed: emission failed past the retry budget.
	ErrTransportFailed = errors.New("TRANSPORT_FAILED")
)

// Store is the persisted revision log.
type Store interface {
	SaveRevision(ctx context.Context, rev Revision, state RevState) error
	MarkAcked(ctx context.Context, docID string, revID int64) error
}

// SendFunc emits a revision envelope over the transport.
type SendFunc func(ctx context.Context, rev Revision) error

// PullFunc asks the peer for the missing revision range [fromRevID, toRevID].
type PullFunc func(ctx context.Context, docID string, fromRevID, toRevID int64) error

// Backoff bounds the retry loops around persistence and transport.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	MaxRetry int
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 50 * time.Millisecond, Max: time.Second, MaxRetry: 3}
}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Base * time.Duration(1<<attempt)
	if d > b.Max {
		d = b.Max
	}
	return d
}

type pendingLocal struct {
	rev    Revision
	change delta.Delta
}

// Synchronizer sequences one document's revisions: local edits are numbered,
// persisted and emitted; remote revisions are reconciled against the pending
// locals with transform before composing into the document. It is owned by
// the document's task and is not safe for concurrent use.
type Synchronizer struct {
	docID   string
	doc     *document.Document
	cache   *Cache
	store   Store
	send    SendFunc
	pull    PullFunc
	backoff Backoff

	// currentRevID is the last server-sequenced revision composed into the
	// document. Pending local rev ids past it are tentative until acked.
	currentRevID int64
	pending      []pendingLocal
	inbox        map[int64]Revision
	diverged     bool
}

func NewSynchronizer(docID string, doc *document.Document, cache *Cache, store Store,
	send SendFunc, pull PullFunc, backoff Backoff) *Synchronizer {
	return &Synchronizer{
		docID:   docID,
		doc:     doc,
		cache:   cache,
		store:   store,
		send:    send,
		pull:    pull,
		backoff: backoff,
		inbox:   make(map[int64]Revision),
	}
}

func (s *Synchronizer) CurrentRevID() int64 { return s.currentRevID }
func (s *Synchronizer) PendingCount() int   { return len(s.pending) }
func (s *Synchronizer) Diverged() bool      { return s.diverged }

// Reset re-aligns the synchronizer after a snapshot reload: pending state is
// discarded and the sequence restarts at revID. When the reload produced a
// fresh document replica, pass it so composition targets the right one.
func (s *Synchronizer) Reset(revID int64, doc *document.Document) {
	if doc != nil {
		s.doc = doc
	}
	s.currentRevID = revID
	s.pending = nil
	s.inbox = make(map[int64]Revision)
	s.diverged = false
}

func (s *Synchronizer) nextBase() int64 {
	if n := len(s.pending); n > 0 {
		return s.pending[n-1].rev.RevID
	}
	return s.currentRevID
}

// SubmitLocal numbers a locally authored change, persists it Local, queues it
// as pending and emits it. Persistence blocks emission: a change that never
// reached the log is never put on the wire.
func (s *Synchronizer) SubmitLocal(ctx context.Context, change delta.Delta) (Revision, error) {
	if s.diverged {
		return Revision{}, ErrDiverged
	}
	base := s.nextBase()
	rev, err := FromDelta(s.docID, base, base+1, change, TypeLocal)
	if err != nil {
		return Revision{}, err
	}
	if err := s.persist(ctx, rev, StateLocal); err != nil {
		return Revision{}, err
	}
	if err := s.cache.Add(rev, StateLocal); err != nil {
		return Revision{}, err
	}
	s.pending = append(s.pending, pendingLocal{rev: rev, change: change})
	if err := s.emit(ctx, rev); err != nil {
		return rev, err
	}
	return rev, nil
}

// ReceiveRemote accepts a remote revision, applying it immediately when it is
// the next in sequence and otherwise parking it while the missing range is
// pulled. Duplicates are dropped.
func (s *Synchronizer) ReceiveRemote(ctx context.Context, rev Revision) error {
	if s.diverged {
		return ErrDiverged
	}
	if sum := MD5Hex(rev.DeltaData); sum != rev.MD5 {
		return fmt.Errorf("remote revision %d checksum mismatch: got %s, want %s", rev.RevID, sum, rev.MD5)
	}
	if rev.RevID <= s.currentRevID {
		log.Printf("sync: duplicate remote revision doc=%s rev=%d current=%d", s.docID, rev.RevID, s.currentRevID)
		return nil
	}
	if rev.RevID > s.currentRevID+1 {
		s.inbox[rev.RevID] = rev
		if s.pull != nil {
			if err := s.pull(ctx, s.docID, s.currentRevID+1, rev.RevID-1); err != nil {
				log.Printf("sync: pull request failed doc=%s range=[%d,%d]: %v",
					s.docID, s.currentRevID+1, rev.RevID-1, err)
			}
		}
		return nil
	}
	if err := s.applyRemote(ctx, rev); err != nil {
		return err
	}
	// Drain anything stashed that became applicable.
	for {
		next, ok := s.inbox[s.currentRevID+1]
		if !ok {
			return nil
		}
		delete(s.inbox, next.RevID)
		if err := s.applyRemote(ctx, next); err != nil {
			return err
		}
	}
}

func (s *Synchronizer) applyRemote(ctx context.Context, rev Revision) error {
	remote, err := rev.Delta()
	if err != nil {
		return err
	}
	if !(rev.BaseRevID == s.currentRevID && len(s.pending) == 0) {
		// Sweep the remote delta over every pending local: the local is
		// rebased on top of the remote, the remote is rebased past the
		// local.
		for i := range s.pending {
			rPrime, lPrime, terr := remote.Transform(s.pending[i].change)
			if terr != nil {
				s.diverged = true
				return fmt.Errorf("reconcile doc=%s rev=%d: %v: %w", s.docID, rev.RevID, terr, ErrDiverged)
			}
			s.pending[i].change = lPrime
			remote = rPrime
		}
	}
	if _, err := s.doc.Compose(remote); err != nil {
		s.diverged = true
		return fmt.Errorf("compose remote doc=%s rev=%d: %v: %w", s.docID, rev.RevID, err, ErrDiverged)
	}
	s.currentRevID = rev.RevID
	if err := s.cache.Add(rev, StateAcked); err != nil {
		log.Printf("sync: cache remote revision doc=%s rev=%d: %v", s.docID, rev.RevID, err)
	}
	return s.persist(ctx, rev, StateAcked)
}

// Ack marks the local revision revID and everything pending before it as
// acknowledged and drops them from the queue.
func (s *Synchronizer) Ack(ctx context.Context, revID int64) error {
	// The server may renumber a pending local past revisions that landed in
	// between, so the ceiling is the sequence plus everything still pending.
	if revID > s.currentRevID+int64(len(s.pending)) {
		return fmt.Errorf("ack for unobserved revision %d: %w", revID, ErrUnknownRevision)
	}
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.rev.RevID <= revID {
			if err := s.store.MarkAcked(ctx, s.docID, p.rev.RevID); err != nil {
				log.Printf("sync: mark acked doc=%s rev=%d: %v", s.docID, p.rev.RevID, err)
			}
			continue
		}
		kept = append(kept, p)
	}
	s.pending = kept
	s.cache.Ack(revID)
	if revID > s.currentRevID {
		s.currentRevID = revID
	}
	return nil
}

func (s *Synchronizer) persist(ctx context.Context, rev Revision, state RevState) error {
	var err error
	for attempt := 0; attempt <= s.backoff.MaxRetry; attempt++ {
		if err = s.store.SaveRevision(ctx, rev, state); err == nil {
			return nil
		}
		if attempt < s.backoff.MaxRetry {
			if werr := sleep(ctx, s.backoff.delay(attempt)); werr != nil {
				return werr
			}
		}
	}
	return fmt.Errorf("save revision doc=%s rev=%d: %v: %w", s.docID, rev.RevID, err, ErrPersistFailed)
}

func (s *Synchronizer) emit(ctx context.Context, rev Revision) error {
	if s.send == nil {
		return nil
	}
	var err error
	for attempt := 0; attempt <= s.backoff.MaxRetry; attempt++ {
		if err = s.send(ctx, rev); err == nil {
			return nil
		}
		if attempt < s.backoff.MaxRetry {
			if werr := sleep(ctx, s.backoff.delay(attempt)); werr != nil {
				return werr
			}
		}
	}
	return fmt.Errorf("emit revision doc=%s rev=%d: %v: %w", s.docID, rev.RevID, err, ErrTransportFailed)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
