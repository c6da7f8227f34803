package storage

import "time"

// SAdd adds members to the set at key, creating it when absent.
// Returns the number of members actually added.
func (s *MemoryStorage) SAdd(key string, members ...[]byte) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, err := typedValue(sh, key, ValueTypeSet)
	if err != nil {
		return 0, err
	}
	if value == nil {
		value = &Value{
			Type: ValueTypeSet,
			Data: &SetValue{Members: make(map[string]struct{})},
		}
		sh.data[key] = value
	}

	set := value.Data.(*SetValue)
	added := int64(0)
	for _, member := range members {
		m := string(member)
		if _, exists := set.Members[m]; !exists {
			set.Members[m] = struct{}{}
			added++
		}
	}
	value.Version = time.Now().UnixNano()

	return added, nil
}

// SRem removes members from the set at key.
// Returns the number of members actually removed.
func (s *MemoryStorage) SRem(key string, members ...[]byte) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, err := typedValue(sh, key, ValueTypeSet)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}

	set := value.Data.(*SetValue)
	removed := int64(0)
	for _, member := range members {
		m := string(member)
		if _, exists := set.Members[m]; exists {
			delete(set.Members, m)
			removed++
		}
	}
	value.Version = time.Now().UnixNano()

	if len(set.Members) == 0 {
		delete(sh.data, key)
	}

	return removed, nil
}

// SMembers returns all members of the set at key
func (s *MemoryStorage) SMembers(key string) ([][]byte, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeSet)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return [][]byte{}, nil
	}

	set := value.Data.(*SetValue)
	members := make([][]byte, 0, len(set.Members))
	for member := range set.Members {
		members = append(members, []byte(member))
	}
	return members, nil
}

// SIsMember reports whether member is in the set at key
func (s *MemoryStorage) SIsMember(key string, member []byte) (bool, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeSet)
	if err != nil {
		return false, err
	}
	if value == nil {
		return false, nil
	}

	set := value.Data.(*SetValue)
	_, exists := set.Members[string(member)]
	return exists, nil
}

// SCard returns the cardinality of the set at key, 0 when absent
func (s *MemoryStorage) SCard(key string) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeSet)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}

	return int64(len(value.Data.(*SetValue).Members)), nil
}
