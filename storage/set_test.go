package storage

import "testing"

func TestSetOperations(t *testing.T) {
	s := newTestStorage(t)

	added, err := s.SAdd("set", []byte("a"), []byte("b"), []byte("a"))
	if err != nil || added != 2 {
		t.Fatalf("SAdd() = %d, %v; want 2, nil", added, err)
	}

	// Re-adding an existing member counts nothing
	added, _ = s.SAdd("set", []byte("b"), []byte("c"))
	if added != 1 {
		t.Errorf("second SAdd() = %d, want 1", added)
	}

	if n, _ := s.SCard("set"); n != 3 {
		t.Errorf("SCard() = %d, want 3", n)
	}

	ok, _ := s.SIsMember("set", []byte("a"))
	if !ok {
		t.Error("SIsMember(a) = false, want true")
	}
	ok, _ = s.SIsMember("set", []byte("x"))
	if ok {
		t.Error("SIsMember(x) = true, want false")
	}

	members, _ := s.SMembers("set")
	if len(members) != 3 {
		t.Errorf("SMembers() = %d members, want 3", len(members))
	}

	removed, _ := s.SRem("set", []byte("a"), []byte("x"))
	if removed != 1 {
		t.Errorf("SRem() = %d, want 1", removed)
	}
}

func TestEmptiedSetIsDeleted(t *testing.T) {
	s := newTestStorage(t)

	s.SAdd("set", []byte("only"))
	s.SRem("set", []byte("only"))

	if count := s.Exists("set"); count != 0 {
		t.Error("emptied set still exists as a key")
	}
}

func TestSetOnMissingKey(t *testing.T) {
	s := newTestStorage(t)

	if n, err := s.SCard("missing"); err != nil || n != 0 {
		t.Errorf("SCard() on missing key = %d, %v; want 0, nil", n, err)
	}
	if n, err := s.SRem("missing", []byte("x")); err != nil || n != 0 {
		t.Errorf("SRem() on missing key = %d, %v; want 0, nil", n, err)
	}
	members, err := s.SMembers("missing")
	if err != nil || len(members) != 0 {
		t.Errorf("SMembers() on missing key = %v, %v; want empty, nil", members, err)
	}
}
