package collab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"noteserver/backend/internal/ot/delta"
	"noteserver/backend/internal/ot/document"
	"noteserver/backend/internal/revision"
)

// Service is the authoritative side of a document: it sequences submitted
// revisions, rebases late submissions, and answers catch-up queries.
type Service interface {
	Submit(ctx context.Context, docID string, authorID uint64,
		baseRevID int64, clientID string, clientSeq uint64,
		change delta.Delta) (AppliedRevision, error)

	CurrentRevision(ctx context.Context, docID string) (int64, error)

	LoadDocumentContent(ctx context.Context, docID string) (string, int64, error)

	// RevisionsSince serves handshake catch-up and gap pulls.
	RevisionsSince(ctx context.Context, docID string, fromRevID int64, limit int) ([]revision.Revision, error)

	SaveSnapshot(ctx context.Context, docID string) error

	GetDocumentID(ctx context.Context, title string) (string, error)
	CreateDocument(ctx context.Context, ownerID uint64, title string) error
}

// SnapshotStore persists and restores document content checkpoints.
type SnapshotStore interface {
	SaveDocumentSnapshot(ctx context.Context, docID string, rev int64, content string) error
	LoadDocumentSnapshot(ctx context.Context, docID string) (string, int64, error)
}

// RevisionStore is the durable revision log behind the in-memory cache.
type RevisionStore interface {
	SaveRevision(ctx context.Context, rev revision.Revision, state revision.RevState) error
	ListSince(ctx context.Context, docID string, fromRevID int64, limit int) ([]revision.Revision, error)
	MarkAcked(ctx context.Context, docID string, revID int64) error
}

type DocumentStore interface {
	GetDocumentID(ctx context.Context, title string) (string, error)
	CreateDocument(ctx context.Context, ownerID uint64, title string) error
}

// AppliedRevision is what the submitter gets back: the server-assigned rev
// id and the change as actually folded in (rebased when the submission was
// behind).
type AppliedRevision struct {
	RevID     int64
	BaseRevID int64
	AuthorID  uint64
	Change    delta.Delta
	MD5       string
	AppliedAt time.Time
}

var (
	ErrRevisionConflict      = errors.New("REVISION_CONFLICT")
	ErrDuplicateOrOutOfOrder = errors.New("DUPLICATE_OR_OUT_OF_ORDER")
	ErrDocumentNotFound      = errors.New("DOCUMENT_NOT_FOUND")
)

type docState struct {
	mu   sync.RWMutex
	doc  *document.Document
	revs *revision.Cache
	// Dedup window: highest clientSeq seen per clientId.
	lastSeqByClient map[string]uint64
}

func (ds *docState) currentRevID() int64 {
	return ds.doc.RevID()
}

// RevisionService holds every open document's state in memory, backed by the
// snapshot and revision stores.
type RevisionService struct {
	mu   sync.RWMutex
	docs map[string]*docState

	// loads collapses concurrent cold loads of the same document.
	loads singleflight.Group

	snapshots     SnapshotStore
	revisions     RevisionStore
	documentStore DocumentStore
	dispatcher    *KafkaDispatcher
}

func NewRevisionService(snapshots SnapshotStore, revisions RevisionStore,
	documentStore DocumentStore, dispatcher *KafkaDispatcher) *RevisionService {
	return &RevisionService{
		docs:          make(map[string]*docState),
		snapshots:     snapshots,
		revisions:     revisions,
		documentStore: documentStore,
		dispatcher:    dispatcher,
	}
}

// getOrLoadDoc returns the in-memory state for docID, restoring it from the
// snapshot store plus the revision log on first touch. A missing snapshot
// starts an empty document at rev 0.
func (s *RevisionService) getOrLoadDoc(ctx context.Context, docID string) (*docState, error) {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	v, err, _ := s.loads.Do(docID, func() (any, error) {
		s.mu.RLock()
		existing := s.docs[docID]
		s.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		loaded, lerr := s.loadDoc(ctx, docID)
		if lerr != nil {
			return nil, lerr
		}
		s.mu.Lock()
		s.docs[docID] = loaded
		s.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*docState), nil
}

func (s *RevisionService) loadDoc(ctx context.Context, docID string) (*docState, error) {
	content, snapRev := "", int64(0)
	if s.snapshots != nil {
		var err error
		content, snapRev, err = s.snapshots.LoadDocumentSnapshot(ctx, docID)
		if err != nil && !errors.Is(err, ErrDocumentNotFound) {
			return nil, err
		}
	}

	var doc *document.Document
	if content == "" {
		doc = document.New()
	} else {
		doc = document.FromDelta(delta.NewBuilder().Insert(content).Build())
	}
	doc.SetRevID(snapRev)

	ds := &docState{
		doc:             doc,
		revs:            revision.NewCache(docID),
		lastSeqByClient: make(map[string]uint64),
	}

	// Replay anything logged past the snapshot.
	if s.revisions != nil {
		tail, err := s.revisions.ListSince(ctx, docID, snapRev, 0)
		if err != nil {
			return nil, err
		}
		for _, rev := range tail {
			d, derr := rev.Delta()
			if derr != nil {
				return nil, fmt.Errorf("replay doc=%s rev=%d: %w", docID, rev.RevID, derr)
			}
			if _, cerr := ds.doc.Compose(d); cerr != nil {
				return nil, fmt.Errorf("replay doc=%s rev=%d: %w", docID, rev.RevID, cerr)
			}
			ds.doc.SetRevID(rev.RevID)
			if aerr := ds.revs.Add(rev, revision.StateAcked); aerr != nil {
				log.Printf("collab: replay cache doc=%s rev=%d: %v", docID, rev.RevID, aerr)
			}
		}
	}
	return ds, nil
}

// Submit folds a client change into the document. A change based on an older
// revision is rebased over everything that landed since; a change based on a
// revision the server has not seen yet is a conflict the client must resolve
// by pulling.
func (s *RevisionService) Submit(ctx context.Context, docID string, authorID uint64,
	baseRevID int64, clientID string, clientSeq uint64, change delta.Delta) (AppliedRevision, error) {

	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return AppliedRevision{}, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if last := ds.lastSeqByClient[clientID]; clientSeq <= last {
		return AppliedRevision{}, ErrDuplicateOrOutOfOrder
	}

	current := ds.currentRevID()
	if baseRevID > current {
		return AppliedRevision{}, ErrRevisionConflict
	}

	// Rebase a late submission over the revisions it has not seen.
	rebased := change
	for id := baseRevID + 1; id <= current; id++ {
		landed, _, ok := ds.revs.Get(id)
		if !ok {
			// Evicted past the cache window; the client is too far behind.
			return AppliedRevision{}, fmt.Errorf("rebase doc=%s missing rev=%d: %w", docID, id, ErrRevisionConflict)
		}
		landedDelta, derr := landed.Delta()
		if derr != nil {
			return AppliedRevision{}, derr
		}
		_, rebased, err = landedDelta.Transform(rebased)
		if err != nil {
			return AppliedRevision{}, fmt.Errorf("rebase doc=%s rev=%d: %w", docID, id, err)
		}
	}

	if _, err := ds.doc.Compose(rebased); err != nil {
		return AppliedRevision{}, err
	}
	newRevID := current + 1
	ds.doc.SetRevID(newRevID)

	rev, err := revision.FromDelta(docID, current, newRevID, rebased, revision.TypeRemote)
	if err != nil {
		return AppliedRevision{}, err
	}
	if err := ds.revs.Add(rev, revision.StateAcked); err != nil {
		log.Printf("collab: cache submit doc=%s rev=%d: %v", docID, newRevID, err)
	}
	if s.revisions != nil {
		if err := s.revisions.SaveRevision(ctx, rev, revision.StateAcked); err != nil {
			return AppliedRevision{}, err
		}
	}

	ds.lastSeqByClient[clientID] = clientSeq

	applied := AppliedRevision{
		RevID:     newRevID,
		BaseRevID: current,
		AuthorID:  authorID,
		Change:    rebased,
		MD5:       rev.MD5,
		AppliedAt: time.Now(),
	}

	if s.dispatcher != nil {
		evt := RevisionEvent{
			EventType: "REV_APPLIED",
			DocID:     docID,
			RevID:     applied.RevID,
			BaseRevID: applied.BaseRevID,
			AuthorID:  authorID,
			ClientID:  clientID,
			ClientSeq: clientSeq,
			Change:    applied.Change,
			MD5:       applied.MD5,
			AppliedAt: applied.AppliedAt,
		}
		if err := s.dispatcher.Enqueue(ctx, evt); err != nil {
			log.Printf("collab: drop revision event doc=%s rev=%d: %v", docID, applied.RevID, err)
		}
	}

	return applied, nil
}

func (s *RevisionService) CurrentRevision(ctx context.Context, docID string) (int64, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return 0, err
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.currentRevID(), nil
}

func (s *RevisionService) LoadDocumentContent(ctx context.Context, docID string) (string, int64, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return "", 0, err
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.doc.String(), ds.currentRevID(), nil
}

func (s *RevisionService) RevisionsSince(ctx context.Context, docID string, fromRevID int64, limit int) ([]revision.Revision, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return nil, err
	}
	ds.mu.RLock()
	current := ds.currentRevID()
	var out []revision.Revision
	for id := fromRevID + 1; id <= current; id++ {
		rev, _, ok := ds.revs.Get(id)
		if !ok {
			break
		}
		out = append(out, rev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	ds.mu.RUnlock()
	if out != nil || s.revisions == nil {
		return out, nil
	}
	// Cache miss on the whole range: fall back to the durable log.
	return s.revisions.ListSince(ctx, docID, fromRevID, limit)
}

func (s *RevisionService) SaveSnapshot(ctx context.Context, docID string) error {
	if s.snapshots == nil {
		return errors.New("snapshot store not initialized")
	}
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds == nil {
		return ErrDocumentNotFound
	}
	ds.mu.RLock()
	content := ds.doc.String()
	rev := ds.currentRevID()
	ds.mu.RUnlock()
	return s.snapshots.SaveDocumentSnapshot(ctx, docID, rev, content)
}

func (s *RevisionService) GetDocumentID(ctx context.Context, title string) (string, error) {
	if s.documentStore == nil {
		return "", errors.New("document store not initialized")
	}
	return s.documentStore.GetDocumentID(ctx, title)
}

func (s *RevisionService) CreateDocument(ctx context.Context, ownerID uint64, title string) error {
	if s.documentStore == nil {
		return errors.New("document store not initialized")
	}
	return s.documentStore.CreateDocument(ctx, ownerID, title)
}
