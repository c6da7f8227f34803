package storage

import (
	"sort"
	"time"
)

// ZAdd inserts or updates members of the sorted set at key, creating it
// when absent. Updating an existing member's score re-ranks it without
// duplication. Returns the number of members newly added.
func (s *MemoryStorage) ZAdd(key string, members ...ZSetMember) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, err := typedValue(sh, key, ValueTypeZSet)
	if err != nil {
		return 0, err
	}
	if value == nil {
		value = &Value{
			Type: ValueTypeZSet,
			Data: &ZSetValue{Members: make(map[string]float64)},
		}
		sh.data[key] = value
	}

	zset := value.Data.(*ZSetValue)
	added := int64(0)
	for _, m := range members {
		oldScore, existed := zset.Members[m.Member]
		if existed {
			if oldScore == m.Score {
				continue
			}
			zset.removeRanked(ZSetMember{Member: m.Member, Score: oldScore})
		} else {
			added++
		}
		zset.Members[m.Member] = m.Score
		zset.insertRanked(m)
	}
	value.Version = time.Now().UnixNano()

	return added, nil
}

// ZScore returns the score of member in the sorted set at key
func (s *MemoryStorage) ZScore(key, member string) (float64, bool, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeZSet)
	if err != nil {
		return 0, false, err
	}
	if value == nil {
		return 0, false, nil
	}

	score, exists := value.Data.(*ZSetValue).Members[member]
	return score, exists, nil
}

// ZRank returns the 0-based rank of member in ascending
// (score, member) order
func (s *MemoryStorage) ZRank(key, member string) (int64, bool, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeZSet)
	if err != nil {
		return 0, false, err
	}
	if value == nil {
		return 0, false, nil
	}

	zset := value.Data.(*ZSetValue)
	score, exists := zset.Members[member]
	if !exists {
		return 0, false, nil
	}

	rank := zset.rankOf(ZSetMember{Member: member, Score: score})
	return int64(rank), true, nil
}

// ZRange returns members between rank start and stop inclusive in
// ascending (score, member) order. Negative indices count from the end;
// out-of-range indices clamp.
func (s *MemoryStorage) ZRange(key string, start, stop int64) ([]ZSetMember, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeZSet)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return []ZSetMember{}, nil
	}

	zset := value.Data.(*ZSetValue)
	beg, end, ok := clampRange(start, stop, int64(len(zset.Ranked)))
	if !ok {
		return []ZSetMember{}, nil
	}

	result := make([]ZSetMember, end-beg+1)
	copy(result, zset.Ranked[beg:end+1])
	return result, nil
}

// ZCard returns the cardinality of the sorted set at key, 0 when absent
func (s *MemoryStorage) ZCard(key string) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeZSet)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}

	return int64(len(value.Data.(*ZSetValue).Ranked)), nil
}

// ZRem removes members from the sorted set at key.
// Returns the number of members actually removed.
func (s *MemoryStorage) ZRem(key string, members ...string) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, err := typedValue(sh, key, ValueTypeZSet)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}

	zset := value.Data.(*ZSetValue)
	removed := int64(0)
	for _, member := range members {
		score, exists := zset.Members[member]
		if !exists {
			continue
		}
		delete(zset.Members, member)
		zset.removeRanked(ZSetMember{Member: member, Score: score})
		removed++
	}
	value.Version = time.Now().UnixNano()

	if len(zset.Members) == 0 {
		delete(sh.data, key)
	}

	return removed, nil
}

// rankOf returns the insertion index of m in the ranked slice, which is
// its rank when m is present
func (z *ZSetValue) rankOf(m ZSetMember) int {
	return sort.Search(len(z.Ranked), func(i int) bool {
		return !zsetLess(z.Ranked[i], m)
	})
}

// insertRanked inserts m keeping the slice ordered by (score, member)
func (z *ZSetValue) insertRanked(m ZSetMember) {
	i := z.rankOf(m)
	z.Ranked = append(z.Ranked, ZSetMember{})
	copy(z.Ranked[i+1:], z.Ranked[i:])
	z.Ranked[i] = m
}

// removeRanked removes m from the ranked slice
func (z *ZSetValue) removeRanked(m ZSetMember) {
	i := z.rankOf(m)
	if i < len(z.Ranked) && z.Ranked[i] == m {
		z.Ranked = append(z.Ranked[:i], z.Ranked[i+1:]...)
	}
}
