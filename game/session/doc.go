// Package session manages live CityCurrent sessions and their storage.
//
// Manager maps session IDs (random UUIDs) to service.Session values, each
// owning one engine. The manager subscribes to every engine it holds: an
// event marks the session dirty and is forwarded to listeners registered
// with Subscribe, which is how the WebSocket hub receives pushes.
//
// Storage:
//
// SessionPersistence has two implementations. FilePersistence writes one
// JSON file per session. SQLStore keeps a sessions table through sqlx and
// works with SQLite (modernc.org/sqlite) or PostgreSQL (lib/pq), chosen by
// the DSN scheme:
//
//	store, err := session.OpenSQLStore("sqlite://data/sessions.db", configs)
//	manager := session.NewManagerWithPersistence(store)
//
// Both embed the save package's export document, so a stored session is
// also a valid import payload.
//
// Sessions are written when created, by SaveDirty on the server's flush
// routine, and before an expired session is evicted from memory. Get lazily
// reloads sessions that are only on storage.
package session
