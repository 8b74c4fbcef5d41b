package collab

import (
	"context"
	"errors"

	"noteserver/backend/internal/ot/delta"
	"noteserver/backend/internal/ot/document"
	"noteserver/backend/internal/revision"
)

var ErrEngineClosed = errors.New("ENGINE_CLOSED")

// Engine is the editing replica of one open document. All document and
// synchronizer state is owned by a single goroutine fed through the mailbox,
// which is why neither of them carries a lock.
type Engine struct {
	docID   string
	doc     *document.Document
	sync    *revision.Synchronizer
	mailbox chan func()
	closed  chan struct{}
}

const defaultMailboxSize = 64

func NewEngine(docID string, doc *document.Document, sync *revision.Synchronizer) *Engine {
	e := &Engine{
		docID:   docID,
		doc:     doc,
		sync:    sync,
		mailbox: make(chan func(), defaultMailboxSize),
		closed:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.mailbox:
			fn()
		case <-e.closed:
			// Drain what was already queued, then stop.
			for {
				select {
				case fn := <-e.mailbox:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Close stops the actor after the queued work drains.
func (e *Engine) Close() {
	select {
	case <-e.closed:
	default:
		close(e.closed)
	}
}

func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	// The mailbox stays buffered after Close, so check the closed channel
	// before offering work nothing will drain.
	select {
	case <-e.closed:
		return ErrEngineClosed
	default:
	}
	select {
	case e.mailbox <- wrapped:
	case <-e.closed:
		return ErrEngineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Insert runs the insert pipeline at index, submits the resulting change and
// returns it with its tentative rev id.
func (e *Engine) Insert(ctx context.Context, index int, text string, replaceLen int) (delta.Delta, int64, error) {
	var (
		change delta.Delta
		revID  int64
		err    error
	)
	if derr := e.do(ctx, func() {
		change, _, err = e.doc.Insert(index, text, replaceLen)
		if err != nil {
			return
		}
		var rev revision.Revision
		rev, err = e.sync.SubmitLocal(ctx, change)
		revID = rev.RevID
	}); derr != nil {
		return delta.Delta{}, 0, derr
	}
	return change, revID, err
}

func (e *Engine) Format(ctx context.Context, iv delta.Interval, attrs delta.Attributes) (delta.Delta, int64, error) {
	var (
		change delta.Delta
		revID  int64
		err    error
	)
	if derr := e.do(ctx, func() {
		change, _, err = e.doc.Format(iv, attrs)
		if err != nil {
			return
		}
		var rev revision.Revision
		rev, err = e.sync.SubmitLocal(ctx, change)
		revID = rev.RevID
	}); derr != nil {
		return delta.Delta{}, 0, derr
	}
	return change, revID, err
}

func (e *Engine) Delete(ctx context.Context, iv delta.Interval) (delta.Delta, int64, error) {
	var (
		change delta.Delta
		revID  int64
		err    error
	)
	if derr := e.do(ctx, func() {
		change, _, err = e.doc.Delete(iv)
		if err != nil {
			return
		}
		var rev revision.Revision
		rev, err = e.sync.SubmitLocal(ctx, change)
		revID = rev.RevID
	}); derr != nil {
		return delta.Delta{}, 0, derr
	}
	return change, revID, err
}

func (e *Engine) Undo(ctx context.Context) (delta.Delta, int64, error) {
	return e.history(ctx, (*document.Document).Undo)
}

func (e *Engine) Redo(ctx context.Context) (delta.Delta, int64, error) {
	return e.history(ctx, (*document.Document).Redo)
}

func (e *Engine) history(ctx context.Context, step func(*document.Document) (delta.Delta, int64, error)) (delta.Delta, int64, error) {
	var (
		change delta.Delta
		revID  int64
		err    error
	)
	if derr := e.do(ctx, func() {
		change, _, err = step(e.doc)
		if err != nil {
			return
		}
		var rev revision.Revision
		rev, err = e.sync.SubmitLocal(ctx, change)
		revID = rev.RevID
	}); derr != nil {
		return delta.Delta{}, 0, derr
	}
	return change, revID, err
}

// ReceiveRemote hands a peer revision to the synchronizer.
func (e *Engine) ReceiveRemote(ctx context.Context, rev revision.Revision) error {
	var err error
	if derr := e.do(ctx, func() {
		err = e.sync.ReceiveRemote(ctx, rev)
	}); derr != nil {
		return derr
	}
	return err
}

// Ack settles a server acknowledgement for a pending local revision.
func (e *Engine) Ack(ctx context.Context, revID int64) error {
	var err error
	if derr := e.do(ctx, func() {
		err = e.sync.Ack(ctx, revID)
	}); derr != nil {
		return derr
	}
	return err
}

// Content returns the current text and the last server-sequenced rev id.
func (e *Engine) Content(ctx context.Context) (string, int64, error) {
	var (
		content string
		revID   int64
	)
	if derr := e.do(ctx, func() {
		content = e.doc.String()
		revID = e.sync.CurrentRevID()
	}); derr != nil {
		return "", 0, derr
	}
	return content, revID, nil
}

// Diverged reports whether the replica needs a snapshot reload.
func (e *Engine) Diverged(ctx context.Context) (bool, error) {
	var diverged bool
	if derr := e.do(ctx, func() {
		diverged = e.sync.Diverged()
	}); derr != nil {
		return false, derr
	}
	return diverged, nil
}

// Reset replaces the replica state with a server snapshot.
func (e *Engine) Reset(ctx context.Context, content string, revID int64) error {
	return e.do(ctx, func() {
		fresh := document.New()
		if content != "" {
			fresh = document.FromDelta(delta.NewBuilder().Insert(content).Build())
		}
		fresh.SetRevID(revID)
		e.doc = fresh
		e.sync.Reset(revID, fresh)
	})
}
