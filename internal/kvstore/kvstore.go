package kvstore

import "context"

// Storage keys shared with the original browser builds. Versioned so a future
// shape change can migrate instead of corrupting old payloads.
const (
	KeyUsers       = "quisling.users.v1"
	KeyAuthSession = "quisling.session.v1"
	KeyLobbies     = "quisling.games.v1"
	KeyGameSession = "quisling.gameSession.v1"
	KeyResults     = "quisling.results.v1"
)

// AllKeys lists every key the engine touches, for full recovery resets.
func AllKeys() []string {
	return []string{KeyUsers, KeyAuthSession, KeyLobbies, KeyGameSession, KeyResults}
}

// Store is a durable, JSON-serializing key-value store. It is deliberately
// forgiving: reads never fail the caller (missing or unparseable values report
// found=false and leave dest untouched), and writes are best-effort. A value
// that fails to decode is flagged so the caller can offer a recovery reset.
type Store interface {
	// Get decodes the value under key into dest. Returns false when the key is
	// absent, unreadable, or holds corrupted data.
	Get(ctx context.Context, key string, dest any) (found bool)
	// Set encodes value under key. Failures are logged and swallowed; the
	// in-memory state stays authoritative for the current run.
	Set(ctx context.Context, key string, value any)
	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string)
	// CorruptedKeys reports keys whose values failed to decode since startup.
	CorruptedKeys() []string
	// ResetKeys deletes the given keys and clears their corruption flags.
	ResetKeys(ctx context.Context, keys ...string)
}

// Update reads the value under key (falling back when absent or corrupted),
// applies fn, writes the result back, and returns it.
func Update[T any](ctx context.Context, s Store, key string, fallback T, fn func(T) T) T {
	current := fallback
	s.Get(ctx, key, &current)
	next := fn(current)
	s.Set(ctx, key, next)
	return next
}
