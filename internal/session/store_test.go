package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"dime/internal/core"
	"dime/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestCreateIssuesIncreasingIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID <= 0 {
		t.Fatalf("session id must be positive, got %d", first.ID)
	}
	second, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("ids must increase: %d then %d", first.ID, second.ID)
	}
}

func TestRequire(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Require(ctx, sess.ID); err != nil {
		t.Errorf("existing session rejected: %v", err)
	}
	if err := store.Require(ctx, sess.ID+100); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("unknown session: want ErrUnauthorized, got %v", err)
	}
	if err := store.Require(ctx, 0); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("zero session: want ErrUnauthorized, got %v", err)
	}
	if err := store.Require(ctx, -1); !errors.Is(err, core.ErrUnauthorized) {
		t.Errorf("negative session: want ErrUnauthorized, got %v", err)
	}
}

func TestLockSerializesOneSession(t *testing.T) {
	store := newTestStore(t)

	// The unguarded counter is safe only if Lock really serializes.
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := store.Lock(1)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("lost updates: %d", counter)
	}
}
