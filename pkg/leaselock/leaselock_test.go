package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if p, ok := dest[0].(*string); ok {
		*p = r.key
	}
	return nil
}

// fakeDB emulates the lock table: one holder per key, keyed entirely on
// which statement arrives.
type fakeDB struct {
	mu        sync.Mutex
	holder    string
	failRenew bool
}

func (db *fakeDB) setHolder(token string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.holder = token
}

func (db *fakeDB) currentHolder() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.holder
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	key, _ := args[0].(string)
	token, _ := args[1].(string)

	switch sql {
	case acquireSQL:
		if db.holder == "" || db.holder == token {
			db.holder = token
			return fakeRow{key: key}
		}
		return fakeRow{err: pgx.ErrNoRows}
	case renewSQL:
		if db.holder == token && !db.failRenew {
			return fakeRow{key: key}
		}
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{err: errors.New("unexpected statement")}
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if sql == releaseSQL {
		if token, _ := args[1].(string); db.holder == token {
			db.holder = ""
		}
	}
	return pgconn.CommandTag{}, nil
}

func TestAcquire_BusyWithoutWait(t *testing.T) {
	db := &fakeDB{holder: "someone-else"}
	c := &Client{db: db}

	_, err := c.Acquire(context.Background(), GraphKey, Options{})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Acquire() error = %v, want ErrBusy", err)
	}
}

func TestAcquire_RejectsEmptyKey(t *testing.T) {
	c := &Client{db: &fakeDB{}}

	if _, err := c.Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("Acquire() with empty key succeeded, want error")
	}
}

func TestWithLease_RunsAndReleases(t *testing.T) {
	db := &fakeDB{}
	c := &Client{db: db}

	ran := false
	err := c.WithLease(context.Background(), GraphKey, Options{}, func(ctx context.Context) error {
		ran = true
		if ctx.Err() != nil {
			t.Errorf("lease context already done: %v", ctx.Err())
		}
		if db.currentHolder() == "" {
			t.Error("lock not held while fn runs")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLease() error = %v", err)
	}
	if !ran {
		t.Fatal("WithLease() never ran fn")
	}
	if holder := db.currentHolder(); holder != "" {
		t.Errorf("lock still held by %q after WithLease returned", holder)
	}
}

func TestWithLease_PropagatesFnError(t *testing.T) {
	c := &Client{db: &fakeDB{}}

	wantErr := errors.New("save failed")
	err := c.WithLease(context.Background(), GraphKey, Options{}, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithLease() error = %v, want %v", err, wantErr)
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	db := &fakeDB{holder: "someone-else"}
	c := &Client{db: db}

	go func() {
		time.Sleep(30 * time.Millisecond)
		db.setHolder("")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	lease, err := c.Acquire(ctx, GraphKey, Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release(context.Background())

	if db.currentHolder() != lease.Token {
		t.Errorf("holder = %q, want the lease token", db.currentHolder())
	}
}

func TestLostLease_CancelsContext(t *testing.T) {
	db := &fakeDB{}
	c := &Client{db: db}

	lease, err := c.Acquire(context.Background(), GraphKey, Options{
		TTL:        200 * time.Millisecond,
		RenewEvery: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lease.Release(context.Background())

	db.mu.Lock()
	db.failRenew = true
	db.mu.Unlock()

	select {
	case <-lease.Context.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("lease context not canceled after losing the lock")
	}
	if cause := context.Cause(lease.Context); !errors.Is(cause, ErrLost) {
		t.Errorf("context cause = %v, want ErrLost", cause)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()

	if opts.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", opts.TTL)
	}
	if opts.RenewEvery <= 0 || opts.RenewEvery >= opts.TTL {
		t.Errorf("RenewEvery = %v, want positive and below TTL", opts.RenewEvery)
	}
	if opts.WaitInterval != 250*time.Millisecond {
		t.Errorf("WaitInterval = %v, want 250ms", opts.WaitInterval)
	}
}
