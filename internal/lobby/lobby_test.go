package lobby

import (
	"context"
	"errors"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/quisling/quisling-go/internal/kvstore"
	"github.com/quisling/quisling-go/internal/roomcode"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(kvstore.NewMemoryStore())
}

func TestCreateAssignsUniqueCode(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	seen := map[string]struct{}{}
	for i := 0; i < 30; i++ {
		l, err := r.Create(ctx, fmt.Sprintf("usr_%d", i))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if !roomcode.IsValid(l.RoomCode) {
			t.Fatalf("invalid generated code %q", l.RoomCode)
		}
		if _, dup := seen[l.RoomCode]; dup {
			t.Fatalf("duplicate live code %q", l.RoomCode)
		}
		seen[l.RoomCode] = struct{}{}
		if l.Status != StatusOpen || len(l.Players) != 1 || l.Players[0] != fmt.Sprintf("usr_%d", i) {
			t.Fatalf("unexpected lobby: %+v", l)
		}
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	l, err := r.CreateWithCode(ctx, "u1", "ABCD")
	if err != nil {
		t.Fatalf("CreateWithCode: %v", err)
	}
	if _, err := r.Join(ctx, "abcd ", "u2"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	l, err = r.Join(ctx, "ABCD", "u2")
	if err != nil {
		t.Fatalf("Join again: %v", err)
	}
	if len(l.Players) != 2 {
		t.Fatalf("join must be idempotent, players=%v", l.Players)
	}
	if !l.HasPlayer("u1") || !l.HasPlayer("u2") {
		t.Fatalf("missing member: %v", l.Players)
	}
}

func TestJoinUnknownOrInvalid(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()
	if _, err := r.Join(ctx, "ZZZZ", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Join(ctx, "AB1", "u1"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestLeaveDeletesEmptyLobby(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	if _, err := r.CreateWithCode(ctx, "u1", "WXYZ"); err != nil {
		t.Fatalf("CreateWithCode: %v", err)
	}
	removed, err := r.Leave(ctx, "WXYZ", "u1")
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if !removed {
		t.Fatalf("last member leaving must delete the lobby")
	}
	if _, err := r.Get(ctx, "WXYZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted lobby still resolvable: %v", err)
	}
}

func TestLeaveKeepsNonEmptyLobby(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	if _, err := r.CreateWithCode(ctx, "u1", "WXYZ"); err != nil {
		t.Fatalf("CreateWithCode: %v", err)
	}
	if _, err := r.Join(ctx, "WXYZ", "u2"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	removed, err := r.Leave(ctx, "WXYZ", "u1")
	if err != nil || removed {
		t.Fatalf("lobby with remaining member must survive: removed=%v err=%v", removed, err)
	}
	l, err := r.Get(ctx, "WXYZ")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(l.Players) != 1 || l.Players[0] != "u2" {
		t.Fatalf("unexpected players after leave: %v", l.Players)
	}
}

func TestMarkCompleteAndCodeReuse(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	if _, err := r.CreateWithCode(ctx, "u1", "ABCD"); err != nil {
		t.Fatalf("CreateWithCode: %v", err)
	}
	l, err := r.MarkComplete(ctx, "ABCD")
	if err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if l.Status != StatusComplete {
		t.Fatalf("status not complete: %s", l.Status)
	}
	if open := r.Open(ctx); len(open) != 0 {
		t.Fatalf("complete lobby must not list as open: %v", open)
	}
}

func TestReviveExistingAndMissing(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	if _, err := r.CreateWithCode(ctx, "u1", "ABCD"); err != nil {
		t.Fatalf("CreateWithCode: %v", err)
	}
	if _, err := r.MarkComplete(ctx, "ABCD"); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	l, err := r.Revive(ctx, "ABCD", "u2")
	if err != nil {
		t.Fatalf("Revive: %v", err)
	}
	if l.Status != StatusOpen || !l.HasPlayer("u1") || !l.HasPlayer("u2") {
		t.Fatalf("revived lobby wrong: %+v", l)
	}

	fresh, err := r.Revive(ctx, "QRST", "u3")
	if err != nil {
		t.Fatalf("Revive missing: %v", err)
	}
	if fresh.HostUserID != "u3" || fresh.Status != StatusOpen {
		t.Fatalf("revive of missing code must create: %+v", fresh)
	}
}

func TestRegistryOverRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	store, err := kvstore.NewRedisStore(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r := NewRegistry(store)
	ctx := context.Background()
	if _, err := r.CreateWithCode(ctx, "u1", "ABCD"); err != nil {
		t.Fatalf("CreateWithCode: %v", err)
	}
	// A second registry over the same redis sees the persisted lobby.
	r2 := NewRegistry(store)
	l, err := r2.Get(ctx, "ABCD")
	if err != nil || l.HostUserID != "u1" {
		t.Fatalf("persisted lobby not visible: %+v err=%v", l, err)
	}
}
