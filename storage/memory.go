package storage

import (
	"fmt"
	randv2 "math/rand"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// shard represents a single shard of data with its own lock. Every
// command's read-modify-write against a key runs inside its shard's
// critical section, which makes each command atomic with respect to all
// concurrent connections.
type shard struct {
	mu   sync.RWMutex
	data map[string]*Value
}

// MemoryStorage is a handle onto the in-memory engine, addressing one
// logical database. Handles returned by Database share the underlying
// keyspaces, so each connection can hold its own handle without seeing
// another connection's SELECT.
type MemoryStorage struct {
	core *memoryCore
	db   int
}

// memoryCore holds the state shared by every database handle
type memoryCore struct {
	// Global lock for metadata operations
	mu        sync.RWMutex
	databases map[int]*shardedDatabase

	// Sharding configuration
	shards    int
	shardMask uint64

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once

	// Cleanup configuration
	cleanupConfig CleanupConfig

	// Random number generator for sampling
	rng   *randv2.Rand
	rngMu sync.Mutex
}

// shardedDatabase represents a logical database with sharded data
type shardedDatabase struct {
	shards []shard
}

// MemoryOption is a function that configures a MemoryStorage instance
type MemoryOption func(*MemoryStorage)

// WithShardCount sets the number of shards for the storage.
// The number is rounded up to the next power of 2.
func WithShardCount(count int) MemoryOption {
	return func(s *MemoryStorage) {
		if count > 0 {
			s.core.shards = nextPowerOf2(count)
			s.core.shardMask = uint64(s.core.shards - 1)
		}
	}
}

// WithCleanupConfig sets the expired-key cleanup configuration
func WithCleanupConfig(config CleanupConfig) MemoryOption {
	return func(s *MemoryStorage) {
		s.core.cleanupConfig = config
	}
}

// NewMemory creates a new in-memory engine with the default number of
// shards (64), returning a handle on database 0
func NewMemory(opts ...MemoryOption) *MemoryStorage {
	core := &memoryCore{
		databases:     make(map[int]*shardedDatabase),
		shards:        64,
		shardMask:     63,
		cleanupStop:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
		cleanupConfig: CleanupConfigDefault,
		rng:           randv2.New(randv2.NewSource(time.Now().UnixNano())),
	}
	s := &MemoryStorage{core: core, db: 0}

	for _, opt := range opts {
		opt(s)
	}

	// Initialize default database with shards
	core.databases[0] = core.newShardedDatabase()

	// Lazy expiry on access is what guarantees correctness; the
	// background sweep only reclaims memory opportunistically.
	go s.cleanupExpiredKeys()

	return s
}

// newShardedDatabase creates a new sharded database
func (c *memoryCore) newShardedDatabase() *shardedDatabase {
	db := &shardedDatabase{
		shards: make([]shard, c.shards),
	}
	for i := 0; i < c.shards; i++ {
		db.shards[i].data = make(map[string]*Value)
	}
	return db
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// keyHash computes the hash for a key and returns the shard index
func (s *MemoryStorage) keyHash(key string) uint64 {
	return xxhash.Sum64String(key) & s.core.shardMask
}

// shardFor returns the shard holding key in this handle's database
func (s *MemoryStorage) shardFor(key string) *shard {
	return &s.database().shards[s.keyHash(key)]
}

// database returns the sharded database this handle addresses
func (s *MemoryStorage) database() *shardedDatabase {
	s.core.mu.RLock()
	db := s.core.databases[s.db]
	s.core.mu.RUnlock()
	return db
}

// ensureDatabase creates the database at index on first use
func (c *memoryCore) ensureDatabase(index int) error {
	if index < 0 || index > 15 {
		return fmt.Errorf("invalid database number: %d", index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.databases[index]; !exists {
		c.databases[index] = c.newShardedDatabase()
	}
	return nil
}

// liveValue returns the value at key when present and not expired.
// A key past its expiry is treated as absent. Caller holds the shard lock.
func liveValue(sh *shard, key string) (*Value, bool) {
	value, exists := sh.data[key]
	if !exists || value.IsExpired() {
		return nil, false
	}
	return value, true
}

// typedValue returns the live value at key when it holds the wanted
// kind. Returns (nil, nil) when the key is absent, and a WrongTypeError
// when the key holds another kind. Caller holds the shard lock.
func typedValue(sh *shard, key string, want ValueType) (*Value, error) {
	value, ok := liveValue(sh, key)
	if !ok {
		return nil, nil
	}
	if value.Type != want {
		return nil, &WrongTypeError{Expected: want, Actual: value.Type}
	}
	return value, nil
}

// Get retrieves a string value by key. A key holding another kind
// returns a WrongTypeError.
func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	value, exists := sh.data[key]
	if !exists {
		sh.mu.RUnlock()
		return nil, false, nil
	}

	if value.IsExpired() {
		sh.mu.RUnlock()
		s.deleteExpiredKey(key)
		return nil, false, nil
	}

	if value.Type != ValueTypeString {
		err := &WrongTypeError{Expected: ValueTypeString, Actual: value.Type}
		sh.mu.RUnlock()
		return nil, false, err
	}

	// Copy the data while holding the read lock
	data := value.Data.(*StringValue).Data
	result := make([]byte, len(data))
	copy(result, data)
	sh.mu.RUnlock()

	return result, true, nil
}

// Set stores a string value with optional expiration. SET replaces the
// key wholesale regardless of its previous kind.
func (s *MemoryStorage) Set(key string, value []byte, expiry *time.Time) error {
	sh := s.shardFor(key)

	newValue := &Value{
		Type:    ValueTypeString,
		Data:    &StringValue{Data: append([]byte(nil), value...)},
		Expiry:  expiry,
		Version: time.Now().UnixNano(),
	}

	sh.mu.Lock()
	sh.data[key] = newValue
	sh.mu.Unlock()

	return nil
}

// SetNX stores a string value only when the key does not already exist.
// Returns true when the value was stored.
func (s *MemoryStorage) SetNX(key string, value []byte, expiry *time.Time) bool {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := liveValue(sh, key); ok {
		return false
	}

	sh.data[key] = &Value{
		Type:    ValueTypeString,
		Data:    &StringValue{Data: append([]byte(nil), value...)},
		Expiry:  expiry,
		Version: time.Now().UnixNano(),
	}
	return true
}

// SetXX stores a string value only when the key already exists.
// Returns true when the value was stored.
func (s *MemoryStorage) SetXX(key string, value []byte, expiry *time.Time) bool {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := liveValue(sh, key); !ok {
		return false
	}

	sh.data[key] = &Value{
		Type:    ValueTypeString,
		Data:    &StringValue{Data: append([]byte(nil), value...)},
		Expiry:  expiry,
		Version: time.Now().UnixNano(),
	}
	return true
}

// Incr increments the integer stored at key, creating it at 0 first
// when absent
func (s *MemoryStorage) Incr(key string) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, ok := liveValue(sh, key)
	if !ok {
		sh.data[key] = &Value{
			Type:    ValueTypeString,
			Data:    &StringValue{Data: []byte("1")},
			Version: time.Now().UnixNano(),
		}
		return 1, nil
	}

	if value.Type != ValueTypeString {
		return 0, &WrongTypeError{Expected: ValueTypeString, Actual: value.Type}
	}

	stringVal := value.Data.(*StringValue)
	n, err := strconv.ParseInt(string(stringVal.Data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value is not an integer or out of range")
	}

	n++
	stringVal.Data = []byte(strconv.FormatInt(n, 10))
	value.Version = time.Now().UnixNano()
	return n, nil
}

// Del deletes one or more keys
func (s *MemoryStorage) Del(keys ...string) int64 {
	db := s.database()

	deleted := int64(0)

	// Group keys by shard to minimize lock contention
	keysByShard := make(map[uint64][]string)
	for _, key := range keys {
		shardIdx := s.keyHash(key)
		keysByShard[shardIdx] = append(keysByShard[shardIdx], key)
	}

	for shardIdx, shardKeys := range keysByShard {
		sh := &db.shards[shardIdx]
		sh.mu.Lock()
		for _, key := range shardKeys {
			if _, exists := sh.data[key]; exists {
				delete(sh.data, key)
				deleted++
			}
		}
		sh.mu.Unlock()
	}

	return deleted
}

// Exists counts how many of the given keys exist
func (s *MemoryStorage) Exists(keys ...string) int64 {
	db := s.database()

	count := int64(0)

	keysByShard := make(map[uint64][]string)
	for _, key := range keys {
		shardIdx := s.keyHash(key)
		keysByShard[shardIdx] = append(keysByShard[shardIdx], key)
	}

	for shardIdx, shardKeys := range keysByShard {
		sh := &db.shards[shardIdx]
		sh.mu.RLock()
		for _, key := range shardKeys {
			if value, exists := sh.data[key]; exists && !value.IsExpired() {
				count++
			}
		}
		sh.mu.RUnlock()
	}

	return count
}

// Expire sets expiration for a key
func (s *MemoryStorage) Expire(key string, expiry time.Time) bool {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, ok := liveValue(sh, key)
	if !ok {
		return false
	}

	value.Expiry = &expiry
	return true
}

// TTL returns the time to live for a key.
// -2s means the key does not exist, -1s means no expiration.
func (s *MemoryStorage) TTL(key string) time.Duration {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, ok := liveValue(sh, key)
	if !ok {
		return -2 * time.Second
	}

	if value.Expiry == nil {
		return -1 * time.Second
	}

	return time.Until(*value.Expiry)
}

// PTTL returns the time to live for a key at millisecond resolution
func (s *MemoryStorage) PTTL(key string) time.Duration {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, ok := liveValue(sh, key)
	if !ok {
		return -2 * time.Millisecond
	}

	if value.Expiry == nil {
		return -1 * time.Millisecond
	}

	return time.Until(*value.Expiry)
}

// Type returns the kind of value held at key
func (s *MemoryStorage) Type(key string) (ValueType, bool) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, ok := liveValue(sh, key)
	if !ok {
		return ValueTypeString, false
	}

	return value.Type, true
}

// Keys returns all keys matching the glob pattern in this database
func (s *MemoryStorage) Keys(pattern string) []string {
	db := s.database()

	keys := make([]string, 0)

	for i := 0; i < s.core.shards; i++ {
		sh := &db.shards[i]
		sh.mu.RLock()

		if pattern == "" || pattern == "*" {
			for key, value := range sh.data {
				if !value.IsExpired() {
					keys = append(keys, key)
				}
			}
		} else {
			for key, value := range sh.data {
				if !value.IsExpired() && matchPattern(key, pattern) {
					keys = append(keys, key)
				}
			}
		}

		sh.mu.RUnlock()
	}

	return keys
}

// KeyCount returns the number of keys in this database
func (s *MemoryStorage) KeyCount() int64 {
	db := s.database()

	count := int64(0)

	for i := 0; i < s.core.shards; i++ {
		sh := &db.shards[i]
		sh.mu.RLock()
		count += int64(len(sh.data))
		sh.mu.RUnlock()
	}

	return count
}

// FlushAll removes all keys from all databases
func (s *MemoryStorage) FlushAll() error {
	c := s.core

	c.mu.Lock()
	defer c.mu.Unlock()

	for db := range c.databases {
		c.databases[db] = c.newShardedDatabase()
	}

	return nil
}

// Database returns a handle on the logical database at index, creating
// it on first use. Handles share the underlying keyspaces; selecting a
// database through one handle never moves another.
func (s *MemoryStorage) Database(index int) (Engine, error) {
	if err := s.core.ensureDatabase(index); err != nil {
		return nil, err
	}
	return &MemoryStorage{core: s.core, db: index}, nil
}

// SelectDB points this handle at another logical database, creating it
// on first use. Only this handle moves; other handles on the same
// engine are unaffected.
func (s *MemoryStorage) SelectDB(db int) error {
	if err := s.core.ensureDatabase(db); err != nil {
		return err
	}
	s.db = db
	return nil
}

// CurrentDB returns the database number this handle addresses
func (s *MemoryStorage) CurrentDB() int {
	return s.db
}

// Scan provides cursor-based iteration over keys. Every visited key
// advances the cursor, matching or not, so a resumed scan picks up
// where the previous call stopped counting.
func (s *MemoryStorage) Scan(cursor int64, match string, count int64) (int64, []string) {
	db := s.database()

	keys := make([]string, 0, count)
	i := int64(0)

	for shardIdx := 0; shardIdx < s.core.shards; shardIdx++ {
		sh := &db.shards[shardIdx]
		sh.mu.RLock()

		for key, value := range sh.data {
			if i < cursor {
				i++
				continue
			}
			i++

			if value.IsExpired() {
				continue
			}

			if match != "" && !matchPattern(key, match) {
				continue
			}

			keys = append(keys, key)

			if int64(len(keys)) >= count {
				sh.mu.RUnlock()
				return i, keys
			}
		}

		sh.mu.RUnlock()
	}

	return 0, keys
}

// Close shuts down the storage. Closing any handle shuts down the
// shared engine; further Close calls are no-ops.
func (s *MemoryStorage) Close() error {
	s.core.closeOnce.Do(func() {
		close(s.core.cleanupStop)
		<-s.core.cleanupDone
	})
	return nil
}

// SetCleanupConfig updates the cleanup configuration
func (s *MemoryStorage) SetCleanupConfig(config CleanupConfig) {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	s.core.cleanupConfig = config
}

// GetCleanupConfig returns the current cleanup configuration
func (s *MemoryStorage) GetCleanupConfig() CleanupConfig {
	s.core.mu.RLock()
	defer s.core.mu.RUnlock()
	return s.core.cleanupConfig
}

// cleanupExpiredKeys runs in background to reclaim expired keys
func (s *MemoryStorage) cleanupExpiredKeys() {
	defer close(s.core.cleanupDone)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.core.cleanupStop:
			return
		case <-ticker.C:
			s.performCleanup()
		}
	}
}

// performCleanup removes expired keys using incremental sampling
func (s *MemoryStorage) performCleanup() {
	config := s.GetCleanupConfig()
	c := s.core

	c.mu.RLock()
	databases := make([]*shardedDatabase, 0, len(c.databases))
	for _, db := range c.databases {
		databases = append(databases, db)
	}
	c.mu.RUnlock()

	for _, db := range databases {
		for shardIdx := 0; shardIdx < c.shards; shardIdx++ {
			s.cleanupShard(&db.shards[shardIdx], config)
		}
	}
}

// cleanupShard performs incremental cleanup on a single shard
func (s *MemoryStorage) cleanupShard(sh *shard, config CleanupConfig) {
	for round := 0; round < config.MaxRounds; round++ {
		expiredKeys := s.sampleExpiredInShard(sh, config.SampleSize)

		if len(expiredKeys) == 0 {
			break
		}

		// Delete expired keys in batches to minimize lock time
		s.deleteExpiredBatched(sh, expiredKeys, config.BatchSize)

		expiredRatio := float64(len(expiredKeys)) / float64(config.SampleSize)
		if expiredRatio < config.ExpiredThreshold {
			break
		}

		// Yield between rounds so command execution can proceed
		runtime.Gosched()
	}
}

// sampleExpiredInShard samples keys and returns the expired ones
func (s *MemoryStorage) sampleExpiredInShard(sh *shard, sampleSize int) []string {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	if len(sh.data) == 0 {
		return nil
	}

	actualSampleSize := sampleSize
	if len(sh.data) < sampleSize {
		actualSampleSize = len(sh.data)
	}

	sampledKeys := make([]string, 0, actualSampleSize)

	if len(sh.data) <= actualSampleSize {
		for key := range sh.data {
			sampledKeys = append(sampledKeys, key)
		}
	} else {
		// Reservoir sampling over the shard's keys
		i := 0
		s.core.rngMu.Lock()
		for key := range sh.data {
			if i < actualSampleSize {
				sampledKeys = append(sampledKeys, key)
			} else {
				j := s.core.rng.Intn(i + 1)
				if j < actualSampleSize {
					sampledKeys[j] = key
				}
			}
			i++
		}
		s.core.rngMu.Unlock()
	}

	expiredKeys := make([]string, 0, len(sampledKeys))
	for _, key := range sampledKeys {
		if value, exists := sh.data[key]; exists && value.IsExpired() {
			expiredKeys = append(expiredKeys, key)
		}
	}

	return expiredKeys
}

// deleteExpiredBatched deletes expired keys in batches to bound lock time
func (s *MemoryStorage) deleteExpiredBatched(sh *shard, expiredKeys []string, batchSize int) {
	for i := 0; i < len(expiredKeys); i += batchSize {
		end := i + batchSize
		if end > len(expiredKeys) {
			end = len(expiredKeys)
		}

		sh.mu.Lock()
		for _, key := range expiredKeys[i:end] {
			if value, exists := sh.data[key]; exists {
				// Double-check expiration under write lock
				if value.IsExpired() {
					delete(sh.data, key)
				}
			}
		}
		sh.mu.Unlock()

		if end < len(expiredKeys) {
			runtime.Gosched()
		}
	}
}

// deleteExpiredKey safely deletes an expired key noticed on access
func (s *MemoryStorage) deleteExpiredKey(key string) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, exists := sh.data[key]
	if !exists {
		return
	}

	// Double-check expiration under write lock
	if value.IsExpired() {
		delete(sh.data, key)
	}
}
