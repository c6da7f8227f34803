package storage

import "testing"

func TestPushPopOrder(t *testing.T) {
	s := newTestStorage(t)

	if n, err := s.RPush("list", []byte("a"), []byte("b"), []byte("c")); err != nil || n != 3 {
		t.Fatalf("RPush() = %d, %v; want 3, nil", n, err)
	}
	if n, err := s.LPush("list", []byte("z")); err != nil || n != 4 {
		t.Fatalf("LPush() = %d, %v; want 4, nil", n, err)
	}

	// z a b c
	elems, err := s.LRange("list", 0, -1)
	if err != nil {
		t.Fatalf("LRange() error = %v", err)
	}
	want := []string{"z", "a", "b", "c"}
	if len(elems) != len(want) {
		t.Fatalf("LRange() = %d elements, want %d", len(elems), len(want))
	}
	for i, w := range want {
		if string(elems[i]) != w {
			t.Errorf("LRange()[%d] = %s, want %s", i, elems[i], w)
		}
	}

	popped, err := s.LPop("list", 1)
	if err != nil || len(popped) != 1 || string(popped[0]) != "z" {
		t.Errorf("LPop() = %v, %v; want [z]", popped, err)
	}
	popped, err = s.RPop("list", 1)
	if err != nil || len(popped) != 1 || string(popped[0]) != "c" {
		t.Errorf("RPop() = %v, %v; want [c]", popped, err)
	}
}

func TestPopMissingAndEmpty(t *testing.T) {
	s := newTestStorage(t)

	popped, err := s.LPop("missing", 1)
	if err != nil || popped != nil {
		t.Errorf("LPop() on missing key = %v, %v; want nil, nil", popped, err)
	}

	// Popping the last element removes the key entirely
	s.RPush("list", []byte("only"))
	if _, err := s.LPop("list", 1); err != nil {
		t.Fatalf("LPop() error = %v", err)
	}
	if count := s.Exists("list"); count != 0 {
		t.Error("emptied list still exists as a key")
	}
	kind, exists := s.Type("list")
	if exists {
		t.Errorf("Type() on emptied list = %v, want absent", kind)
	}
}

func TestPopCount(t *testing.T) {
	s := newTestStorage(t)

	s.RPush("list", []byte("a"), []byte("b"), []byte("c"))

	// count larger than the list drains it
	popped, err := s.LPop("list", 10)
	if err != nil {
		t.Fatalf("LPop() error = %v", err)
	}
	if len(popped) != 3 {
		t.Errorf("LPop(10) = %d elements, want 3", len(popped))
	}
}

func TestLLen(t *testing.T) {
	s := newTestStorage(t)

	if n, err := s.LLen("missing"); err != nil || n != 0 {
		t.Errorf("LLen() on missing key = %d, %v; want 0, nil", n, err)
	}

	s.RPush("list", []byte("a"), []byte("b"))
	if n, err := s.LLen("list"); err != nil || n != 2 {
		t.Errorf("LLen() = %d, %v; want 2, nil", n, err)
	}

	s.Set("str", []byte("v"), nil)
	if _, err := s.LLen("str"); err == nil {
		t.Error("LLen() on string key succeeded")
	}
}

func TestLRangeBounds(t *testing.T) {
	s := newTestStorage(t)

	s.RPush("list", []byte("a"), []byte("b"), []byte("c"), []byte("d"))

	tests := []struct {
		start, stop int64
		want        []string
	}{
		{0, -1, []string{"a", "b", "c", "d"}},
		{1, 2, []string{"b", "c"}},
		{-2, -1, []string{"c", "d"}},
		{0, 100, []string{"a", "b", "c", "d"}},
		{-100, 1, []string{"a", "b"}},
		{2, 1, nil},
		{100, 200, nil},
		{-1, -2, nil},
	}

	for _, tt := range tests {
		elems, err := s.LRange("list", tt.start, tt.stop)
		if err != nil {
			t.Fatalf("LRange(%d, %d) error = %v", tt.start, tt.stop, err)
		}
		if len(elems) != len(tt.want) {
			t.Errorf("LRange(%d, %d) = %d elements, want %d", tt.start, tt.stop, len(elems), len(tt.want))
			continue
		}
		for i, w := range tt.want {
			if string(elems[i]) != w {
				t.Errorf("LRange(%d, %d)[%d] = %s, want %s", tt.start, tt.stop, i, elems[i], w)
			}
		}
	}
}
