// Package storage implements the typed in-memory data engine.
//
// The keyspace is a single mapping from key to one tagged value:
// string, list, set, sorted set, or stream. The kind is fixed at
// creation; a command expecting a different kind fails with a
// WrongTypeError and never mutates the key. Geo indexes are sorted
// sets whose scores encode interleaved coordinates.
//
// Keys are distributed across shards, each guarded by its own RWMutex,
// so every command's read-modify-write runs as one critical section
// and is atomic with respect to concurrent connections. String expiry
// is checked lazily on access; a background goroutine additionally
// samples shards and reclaims expired keys incrementally.
package storage
