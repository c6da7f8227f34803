package storage

import "time"

// LPush prepends elements to the list at key, creating it when absent.
// Returns the new list length.
func (s *MemoryStorage) LPush(key string, elems ...[]byte) (int64, error) {
	return s.push(key, elems, true)
}

// RPush appends elements to the list at key, creating it when absent.
// Returns the new list length.
func (s *MemoryStorage) RPush(key string, elems ...[]byte) (int64, error) {
	return s.push(key, elems, false)
}

func (s *MemoryStorage) push(key string, elems [][]byte, left bool) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, err := typedValue(sh, key, ValueTypeList)
	if err != nil {
		return 0, err
	}
	if value == nil {
		value = &Value{
			Type: ValueTypeList,
			Data: &ListValue{},
		}
		sh.data[key] = value
	}

	list := value.Data.(*ListValue)
	for _, elem := range elems {
		elem = append([]byte(nil), elem...)
		if left {
			list.Elements = append([][]byte{elem}, list.Elements...)
		} else {
			list.Elements = append(list.Elements, elem)
		}
	}
	value.Version = time.Now().UnixNano()

	return int64(len(list.Elements)), nil
}

// LPop removes and returns up to count elements from the head of the
// list. Returns nil when the key is absent or the list is empty.
func (s *MemoryStorage) LPop(key string, count int) ([][]byte, error) {
	return s.pop(key, count, true)
}

// RPop removes and returns up to count elements from the tail of the
// list. Returns nil when the key is absent or the list is empty.
func (s *MemoryStorage) RPop(key string, count int) ([][]byte, error) {
	return s.pop(key, count, false)
}

func (s *MemoryStorage) pop(key string, count int, left bool) ([][]byte, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, err := typedValue(sh, key, ValueTypeList)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	list := value.Data.(*ListValue)
	popped := make([][]byte, 0, count)
	for i := 0; i < count && len(list.Elements) > 0; i++ {
		if left {
			popped = append(popped, list.Elements[0])
			list.Elements = list.Elements[1:]
		} else {
			popped = append(popped, list.Elements[len(list.Elements)-1])
			list.Elements = list.Elements[:len(list.Elements)-1]
		}
	}
	value.Version = time.Now().UnixNano()

	// An emptied list no longer exists as a key
	if len(list.Elements) == 0 {
		delete(sh.data, key)
	}

	if len(popped) == 0 {
		return nil, nil
	}
	return popped, nil
}

// LLen returns the length of the list at key, 0 when absent
func (s *MemoryStorage) LLen(key string) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeList)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}

	return int64(len(value.Data.(*ListValue).Elements)), nil
}

// LRange returns elements between start and stop inclusive. Negative
// indices count from the end; out-of-range indices clamp instead of
// erroring.
func (s *MemoryStorage) LRange(key string, start, stop int64) ([][]byte, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeList)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return [][]byte{}, nil
	}

	list := value.Data.(*ListValue)
	beg, end, ok := clampRange(start, stop, int64(len(list.Elements)))
	if !ok {
		return [][]byte{}, nil
	}

	result := make([][]byte, 0, end-beg+1)
	for _, elem := range list.Elements[beg : end+1] {
		result = append(result, append([]byte(nil), elem...))
	}
	return result, nil
}

// clampRange resolves negative indices against length and clamps both
// ends into [0, length-1]. Returns ok=false when the resolved range is
// empty.
func clampRange(start, stop, length int64) (int64, int64, bool) {
	if length == 0 {
		return 0, 0, false
	}

	if start < 0 {
		start += length
		if start < 0 {
			start = 0
		}
	}
	if start >= length {
		return 0, 0, false
	}

	if stop < 0 {
		stop += length
		if stop < 0 {
			return 0, 0, false
		}
	}
	if stop >= length {
		stop = length - 1
	}

	if start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
