package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *MemoryStorage {
	t.Helper()
	s := NewMemory()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGet(t *testing.T) {
	s := newTestStorage(t)

	if err := s.Set("key", []byte("value"), nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, exists, _ := s.Get("key")
	if !exists {
		t.Fatal("Get() reported key as missing")
	}
	if string(got) != "value" {
		t.Errorf("Get() = %q, want %q", got, "value")
	}

	if _, exists, _ := s.Get("missing"); exists {
		t.Error("Get() reported missing key as present")
	}
}

func TestSetOverwritesAnyKind(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.LPush("key", []byte("a")); err != nil {
		t.Fatalf("LPush() error = %v", err)
	}

	// SET replaces the key wholesale, list or not
	if err := s.Set("key", []byte("now a string"), nil); err != nil {
		t.Fatalf("Set() over list error = %v", err)
	}

	kind, exists := s.Type("key")
	if !exists || kind != ValueTypeString {
		t.Errorf("Type() = %v, %v; want string, true", kind, exists)
	}
}

func TestSetNXSetXX(t *testing.T) {
	s := newTestStorage(t)

	if !s.SetNX("key", []byte("first"), nil) {
		t.Error("SetNX() on missing key = false, want true")
	}
	if s.SetNX("key", []byte("second"), nil) {
		t.Error("SetNX() on existing key = true, want false")
	}
	got, _, _ := s.Get("key")
	if string(got) != "first" {
		t.Errorf("value after failed SetNX = %q, want %q", got, "first")
	}

	if s.SetXX("other", []byte("x"), nil) {
		t.Error("SetXX() on missing key = true, want false")
	}
	if !s.SetXX("key", []byte("updated"), nil) {
		t.Error("SetXX() on existing key = false, want true")
	}
	got, _, _ = s.Get("key")
	if string(got) != "updated" {
		t.Errorf("value after SetXX = %q, want %q", got, "updated")
	}
}

func TestIncr(t *testing.T) {
	s := newTestStorage(t)

	n, err := s.Incr("counter")
	if err != nil || n != 1 {
		t.Fatalf("Incr() on missing key = %d, %v; want 1, nil", n, err)
	}

	n, err = s.Incr("counter")
	if err != nil || n != 2 {
		t.Fatalf("second Incr() = %d, %v; want 2, nil", n, err)
	}

	s.Set("text", []byte("not a number"), nil)
	if _, err := s.Incr("text"); err == nil {
		t.Error("Incr() on non-numeric value succeeded")
	}

	s.LPush("list", []byte("a"))
	var wrongType *WrongTypeError
	if _, err := s.Incr("list"); !errors.As(err, &wrongType) {
		t.Errorf("Incr() on list error = %v, want WrongTypeError", err)
	}
}

func TestExpiry(t *testing.T) {
	s := newTestStorage(t)

	past := time.Now().Add(-time.Second)
	s.Set("expired", []byte("gone"), &past)

	if _, exists, _ := s.Get("expired"); exists {
		t.Error("Get() returned expired key")
	}
	if count := s.Exists("expired"); count != 0 {
		t.Errorf("Exists() on expired key = %d, want 0", count)
	}
	if _, exists := s.Type("expired"); exists {
		t.Error("Type() reported expired key as present")
	}

	// An expired key can be recreated with a fresh value
	if !s.SetNX("expired", []byte("fresh"), nil) {
		t.Error("SetNX() on expired key = false, want true")
	}
}

func TestExpireAndTTL(t *testing.T) {
	s := newTestStorage(t)

	if s.Expire("missing", time.Now().Add(time.Hour)) {
		t.Error("Expire() on missing key = true, want false")
	}

	s.Set("key", []byte("v"), nil)
	if ttl := s.TTL("key"); ttl != -1*time.Second {
		t.Errorf("TTL() without expiry = %v, want -1s", ttl)
	}
	if ttl := s.TTL("missing"); ttl != -2*time.Second {
		t.Errorf("TTL() on missing key = %v, want -2s", ttl)
	}

	if !s.Expire("key", time.Now().Add(time.Hour)) {
		t.Error("Expire() on existing key = false, want true")
	}
	ttl := s.TTL("key")
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL() after Expire = %v, want ~1h", ttl)
	}
	pttl := s.PTTL("key")
	if pttl <= 59*time.Minute || pttl > time.Hour {
		t.Errorf("PTTL() after Expire = %v, want ~1h", pttl)
	}
}

func TestDelAndExists(t *testing.T) {
	s := newTestStorage(t)

	s.Set("a", []byte("1"), nil)
	s.Set("b", []byte("2"), nil)

	if count := s.Exists("a", "b", "c"); count != 2 {
		t.Errorf("Exists() = %d, want 2", count)
	}

	if deleted := s.Del("a", "b", "c"); deleted != 2 {
		t.Errorf("Del() = %d, want 2", deleted)
	}

	if count := s.Exists("a", "b"); count != 0 {
		t.Errorf("Exists() after Del = %d, want 0", count)
	}
}

func TestTypeNames(t *testing.T) {
	s := newTestStorage(t)

	s.Set("str", []byte("v"), nil)
	s.LPush("lst", []byte("v"))
	s.SAdd("set", []byte("v"))
	s.ZAdd("zst", ZSetMember{Member: "v", Score: 1})
	s.XAdd("stm", "1-1", []StreamField{{Name: []byte("f"), Value: []byte("v")}})

	cases := map[string]string{
		"str": "string",
		"lst": "list",
		"set": "set",
		"zst": "zset",
		"stm": "stream",
	}
	for key, want := range cases {
		kind, exists := s.Type(key)
		if !exists {
			t.Errorf("Type(%q) reported key as missing", key)
			continue
		}
		if kind.String() != want {
			t.Errorf("Type(%q) = %s, want %s", key, kind, want)
		}
	}
}

func TestWrongTypeNeverMutates(t *testing.T) {
	s := newTestStorage(t)

	s.Set("key", []byte("string value"), nil)

	if _, err := s.LPush("key", []byte("x")); err == nil {
		t.Error("LPush() on string key succeeded")
	}
	if _, err := s.SAdd("key", []byte("x")); err == nil {
		t.Error("SAdd() on string key succeeded")
	}
	if _, err := s.ZAdd("key", ZSetMember{Member: "x", Score: 1}); err == nil {
		t.Error("ZAdd() on string key succeeded")
	}
	if _, err := s.XAdd("key", "*", []StreamField{{Name: []byte("f"), Value: []byte("v")}}); err == nil {
		t.Error("XAdd() on string key succeeded")
	}

	// The key is untouched after every failure
	got, exists, _ := s.Get("key")
	if !exists || string(got) != "string value" {
		t.Errorf("value after failed commands = %q, %v; want original", got, exists)
	}
}

func TestKeysPattern(t *testing.T) {
	s := newTestStorage(t)

	s.Set("user:1", []byte("a"), nil)
	s.Set("user:2", []byte("b"), nil)
	s.Set("order:1", []byte("c"), nil)

	if keys := s.Keys("*"); len(keys) != 3 {
		t.Errorf("Keys(*) = %d keys, want 3", len(keys))
	}
	if keys := s.Keys("user:*"); len(keys) != 2 {
		t.Errorf("Keys(user:*) = %d keys, want 2", len(keys))
	}
	if keys := s.Keys("user:?"); len(keys) != 2 {
		t.Errorf("Keys(user:?) = %d keys, want 2", len(keys))
	}
	if keys := s.Keys("nomatch*"); len(keys) != 0 {
		t.Errorf("Keys(nomatch*) = %d keys, want 0", len(keys))
	}
}

func TestScan(t *testing.T) {
	s := newTestStorage(t)

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		s.Set(key, []byte("v"), nil)
	}

	seen := make(map[string]bool)
	cursor := int64(0)
	for {
		next, keys := s.Scan(cursor, "", 2)
		for _, key := range keys {
			seen[key] = true
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	if len(seen) != 5 {
		t.Errorf("Scan visited %d keys, want 5", len(seen))
	}
}

func TestFlushAll(t *testing.T) {
	s := newTestStorage(t)

	s.Set("a", []byte("1"), nil)
	s.LPush("b", []byte("2"))

	if err := s.FlushAll(); err != nil {
		t.Fatalf("FlushAll() error = %v", err)
	}
	if count := s.KeyCount(); count != 0 {
		t.Errorf("KeyCount() after FlushAll = %d, want 0", count)
	}
}

func TestSelectDB(t *testing.T) {
	s := newTestStorage(t)

	s.Set("key", []byte("db0"), nil)

	if err := s.SelectDB(1); err != nil {
		t.Fatalf("SelectDB(1) error = %v", err)
	}
	if _, exists, _ := s.Get("key"); exists {
		t.Error("key from db 0 visible in db 1")
	}
	s.Set("key", []byte("db1"), nil)

	if err := s.SelectDB(0); err != nil {
		t.Fatalf("SelectDB(0) error = %v", err)
	}
	got, _, _ := s.Get("key")
	if string(got) != "db0" {
		t.Errorf("db 0 value = %q, want %q", got, "db0")
	}

	if err := s.SelectDB(16); err == nil {
		t.Error("SelectDB(16) succeeded, want error")
	}
	if err := s.SelectDB(-1); err == nil {
		t.Error("SelectDB(-1) succeeded, want error")
	}
}

func TestGetWrongType(t *testing.T) {
	s := newTestStorage(t)

	s.LPush("list", []byte("a"))

	var wrongType *WrongTypeError
	if _, _, err := s.Get("list"); !errors.As(err, &wrongType) {
		t.Errorf("Get() on list error = %v, want WrongTypeError", err)
	}
}

func TestDatabaseHandles(t *testing.T) {
	s := newTestStorage(t)

	s.Set("key", []byte("db0"), nil)

	db1, err := s.Database(1)
	if err != nil {
		t.Fatalf("Database(1) error = %v", err)
	}

	// The new handle addresses its own keyspace and never moves s
	if _, exists, _ := db1.Get("key"); exists {
		t.Error("db 0 key visible through db 1 handle")
	}
	db1.Set("key", []byte("db1"), nil)

	got, _, _ := s.Get("key")
	if string(got) != "db0" {
		t.Errorf("db 0 value after db 1 write = %q, want %q", got, "db0")
	}
	if s.CurrentDB() != 0 {
		t.Errorf("CurrentDB() = %d, want 0", s.CurrentDB())
	}

	got1, _, _ := db1.Get("key")
	if string(got1) != "db1" {
		t.Errorf("db 1 value = %q, want %q", got1, "db1")
	}

	if _, err := s.Database(16); err == nil {
		t.Error("Database(16) succeeded, want error")
	}
	if _, err := s.Database(-1); err == nil {
		t.Error("Database(-1) succeeded, want error")
	}
}

func TestScanCursorCountsSkippedKeys(t *testing.T) {
	s := NewMemory(WithShardCount(4))
	t.Cleanup(func() { _ = s.Close() })

	// One key per shard keeps the visit order stable across calls
	keyInShard := func(prefix string, shard uint64) string {
		for i := 0; ; i++ {
			key := fmt.Sprintf("%s%d", prefix, i)
			if s.keyHash(key) == shard {
				return key
			}
		}
	}

	first := keyInShard("live:", 0)
	dead := keyInShard("live:dead", 1)
	other := keyInShard("other:", 2)
	last := keyInShard("live:", 3)

	past := time.Now().Add(-time.Minute)
	s.Set(first, []byte("v"), nil)
	s.Set(dead, []byte("v"), &past)
	s.Set(other, []byte("v"), nil)
	s.Set(last, []byte("v"), nil)

	// Expired and non-matching keys advance the cursor too, so a
	// resumed scan never revisits a key it already stepped over.
	counts := make(map[string]int)
	cursor := int64(0)
	for rounds := 0; ; rounds++ {
		if rounds > 10 {
			t.Fatal("Scan did not terminate")
		}
		next, keys := s.Scan(cursor, "live:*", 1)
		for _, key := range keys {
			counts[key]++
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	if counts[first] != 1 || counts[last] != 1 {
		t.Errorf("matching keys returned %v, want each exactly once", counts)
	}
	if len(counts) != 2 {
		t.Errorf("Scan returned unexpected keys: %v", counts)
	}
}

func TestBackgroundCleanup(t *testing.T) {
	s := NewMemory(WithCleanupConfig(CleanupConfig{
		SampleSize:       20,
		MaxRounds:        8,
		BatchSize:        20,
		ExpiredThreshold: 0.1,
	}))
	defer s.Close()

	past := time.Now().Add(-time.Minute)
	for i := 0; i < 50; i++ {
		s.Set("expired:"+string(rune('a'+i%26))+string(rune('a'+i/26)), []byte("v"), &past)
	}
	s.Set("alive", []byte("v"), nil)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.KeyCount() == 1 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if count := s.KeyCount(); count != 1 {
		t.Errorf("KeyCount() after cleanup = %d, want 1", count)
	}
	if _, exists, _ := s.Get("alive"); !exists {
		t.Error("cleanup removed a live key")
	}
}
