package storage

import "time"

// Storage defines generic and string operations shared by every engine
type Storage interface {
	// String operations
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, expiry *time.Time) error
	SetNX(key string, value []byte, expiry *time.Time) bool
	SetXX(key string, value []byte, expiry *time.Time) bool
	Incr(key string) (int64, error)

	// Generic key operations
	Del(keys ...string) int64
	Exists(keys ...string) int64
	Expire(key string, expiry time.Time) bool
	TTL(key string) time.Duration
	PTTL(key string) time.Duration
	Type(key string) (ValueType, bool)
	Keys(pattern string) []string
	KeyCount() int64
	FlushAll() error

	// Database operations. Database returns an independent handle on
	// another logical database sharing the same keyspaces; SelectDB
	// moves this handle in place.
	Database(index int) (Engine, error)
	SelectDB(db int) error
	CurrentDB() int

	// Iteration
	Scan(cursor int64, match string, count int64) (int64, []string)

	// Shutdown
	Close() error
}

// ListStorage defines list operations
type ListStorage interface {
	LPush(key string, elems ...[]byte) (int64, error)
	RPush(key string, elems ...[]byte) (int64, error)
	LPop(key string, count int) ([][]byte, error)
	RPop(key string, count int) ([][]byte, error)
	LLen(key string) (int64, error)
	LRange(key string, start, stop int64) ([][]byte, error)
}

// SetStorage defines set operations
type SetStorage interface {
	SAdd(key string, members ...[]byte) (int64, error)
	SRem(key string, members ...[]byte) (int64, error)
	SMembers(key string) ([][]byte, error)
	SIsMember(key string, member []byte) (bool, error)
	SCard(key string) (int64, error)
}

// SortedSetStorage defines sorted set operations
type SortedSetStorage interface {
	ZAdd(key string, members ...ZSetMember) (int64, error)
	ZScore(key, member string) (float64, bool, error)
	ZRank(key, member string) (int64, bool, error)
	ZRange(key string, start, stop int64) ([]ZSetMember, error)
	ZCard(key string) (int64, error)
	ZRem(key string, members ...string) (int64, error)
}

// GeoStorage defines geospatial operations layered on sorted sets
type GeoStorage interface {
	GeoAdd(key string, points ...GeoPoint) (int64, error)
	GeoPos(key string, members ...string) ([]*Coord, error)
	GeoDist(key, member1, member2 string) (float64, bool, error)
	GeoSearch(key string, query GeoSearchQuery) ([]GeoResult, error)
}

// StreamStorage defines stream operations
type StreamStorage interface {
	XAdd(key string, rawID string, fields []StreamField) (StreamID, error)
	XLen(key string) (int64, error)
	XRange(key, start, end string) ([]StreamEntry, error)
	XReadAfter(key string, after StreamID) ([]StreamEntry, error)
	XLastID(key string) (StreamID, error)
}

// Engine is the full typed data engine the server executes against
type Engine interface {
	Storage
	ListStorage
	SetStorage
	SortedSetStorage
	GeoStorage
	StreamStorage
}

// CleanupConfig holds configuration for incremental expired-key cleanup
type CleanupConfig struct {
	// SampleSize is the number of keys to sample per round
	SampleSize int
	// MaxRounds is the maximum number of rounds per cleanup cycle
	MaxRounds int
	// BatchSize is the number of keys to delete in each batch
	BatchSize int
	// ExpiredThreshold continues cleanup if this fraction of sampled keys are expired
	ExpiredThreshold float64
}

// CleanupConfigDefault provides balanced performance for most use cases
var CleanupConfigDefault = CleanupConfig{
	SampleSize:       20,
	MaxRounds:        4,
	BatchSize:        10,
	ExpiredThreshold: 0.25,
}

// CleanupConfigLowLatency minimizes cleanup impact on command latency
var CleanupConfigLowLatency = CleanupConfig{
	SampleSize:       15,
	MaxRounds:        3,
	BatchSize:        8,
	ExpiredThreshold: 0.4,
}

// CleanupConfigLargeDataset is tuned for keyspaces above ~100k keys
var CleanupConfigLargeDataset = CleanupConfig{
	SampleSize:       50,
	MaxRounds:        8,
	BatchSize:        25,
	ExpiredThreshold: 0.15,
}
