package collab

import (
	"context"
	"errors"
	"testing"
	"time"

	"noteserver/backend/internal/ot/delta"
	"noteserver/backend/internal/ot/document"
	"noteserver/backend/internal/revision"
)

type nopStore struct{}

func (nopStore) SaveRevision(ctx context.Context, rev revision.Revision, state revision.RevState) error {
	return nil
}
func (nopStore) MarkAcked(ctx context.Context, docID string, revID int64) error { return nil }

func newEngineUnderTest(t *testing.T) (*Engine, *[]revision.Revision) {
	t.Helper()
	doc := document.New()
	var sent []revision.Revision
	send := func(ctx context.Context, rev revision.Revision) error {
		sent = append(sent, rev)
		return nil
	}
	sync := revision.NewSynchronizer("doc-1", doc, revision.NewCache("doc-1"), nopStore{},
		send, nil, revision.Backoff{Base: time.Millisecond, Max: time.Millisecond, MaxRetry: 1})
	e := NewEngine("doc-1", doc, sync)
	t.Cleanup(e.Close)
	return e, &sent
}

func TestEngineInsertSubmits(t *testing.T) {
	e, sent := newEngineUnderTest(t)
	ctx := context.Background()

	_, revID, err := e.Insert(ctx, 0, "hi", 0)
	if err != nil {
		t.Fatal(err)
	}
	if revID != 1 {
		t.Fatalf("rev %d", revID)
	}
	content, current, err := e.Content(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if content != "hi" || current != 0 {
		t.Fatalf("content %q current %d", content, current)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d", len(*sent))
	}
}

func TestEngineRemoteThenAck(t *testing.T) {
	e, _ := newEngineUnderTest(t)
	ctx := context.Background()

	if _, _, err := e.Insert(ctx, 0, "L", 0); err != nil {
		t.Fatal(err)
	}

	remote, err := revision.FromDelta("doc-1", 0, 1,
		delta.NewBuilder().Insert("R").Build(), revision.TypeRemote)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.ReceiveRemote(ctx, remote); err != nil {
		t.Fatal(err)
	}
	if err := e.Ack(ctx, 2); err != nil {
		t.Fatal(err)
	}

	content, current, err := e.Content(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if content != "RL" || current != 2 {
		t.Fatalf("content %q current %d", content, current)
	}
}

func TestEngineUndo(t *testing.T) {
	e, _ := newEngineUnderTest(t)
	ctx := context.Background()

	if _, _, err := e.Insert(ctx, 0, "abc", 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Undo(ctx); err != nil {
		t.Fatal(err)
	}
	content, _, err := e.Content(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if content != "" {
		t.Fatalf("content %q", content)
	}
}

func TestEngineReset(t *testing.T) {
	e, _ := newEngineUnderTest(t)
	ctx := context.Background()

	if _, _, err := e.Insert(ctx, 0, "stale", 0); err != nil {
		t.Fatal(err)
	}
	if err := e.Reset(ctx, "server truth", 9); err != nil {
		t.Fatal(err)
	}
	content, current, err := e.Content(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if content != "server truth" || current != 9 {
		t.Fatalf("content %q current %d", content, current)
	}
	diverged, err := e.Diverged(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diverged {
		t.Fatal("reset should clear divergence")
	}
}

func TestEngineClosedRefusesWork(t *testing.T) {
	e, _ := newEngineUnderTest(t)
	e.Close()
	if _, _, err := e.Insert(context.Background(), 0, "x", 0); !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("want ErrEngineClosed, got %v", err)
	}
}
