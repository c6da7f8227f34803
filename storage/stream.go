package storage

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StreamID is the (millisecond-timestamp, sequence) pair identifying a
// stream entry. IDs impose a strict total order on entries: comparison
// is lexicographic over the two components.
type StreamID struct {
	Ms  uint64
	Seq uint64
}

// String renders the ID in its wire form "ms-seq"
func (id StreamID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// Less reports whether id orders before other
func (id StreamID) Less(other StreamID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// maxStreamID is the inclusive upper bound used for "+"
var maxStreamID = StreamID{Ms: math.MaxUint64, Seq: math.MaxUint64}

// parseStreamID parses an ID of the form "ms", "ms-seq" or "ms-*".
// When generateMs is true a bare "*" is accepted and the timestamp is
// taken from the clock. defaultSeq supplies the sequence when the
// component is "*" or missing, given the resolved timestamp.
func parseStreamID(raw string, generateMs bool, defaultSeq func(ms uint64) uint64) (StreamID, error) {
	msPart, seqPart, hasSeq := strings.Cut(raw, "-")

	var ms uint64
	var err error
	if msPart == "*" {
		if !generateMs || hasSeq {
			return StreamID{}, fmt.Errorf("Invalid stream ID specified as stream command argument")
		}
		ms = uint64(time.Now().UnixMilli())
	} else {
		ms, err = strconv.ParseUint(msPart, 10, 64)
		if err != nil {
			return StreamID{}, fmt.Errorf("Invalid stream ID specified as stream command argument")
		}
	}

	var seq uint64
	if !hasSeq || seqPart == "*" {
		seq = defaultSeq(ms)
	} else {
		seq, err = strconv.ParseUint(seqPart, 10, 64)
		if err != nil {
			return StreamID{}, fmt.Errorf("Invalid stream ID specified as stream command argument")
		}
	}

	return StreamID{Ms: ms, Seq: seq}, nil
}

// ParseRangeStart parses an XRANGE start bound; "-" means the very
// first entry and a bare timestamp means its lowest sequence
func ParseRangeStart(raw string) (StreamID, error) {
	if raw == "-" {
		return StreamID{}, nil
	}
	return parseStreamID(raw, false, func(uint64) uint64 { return 0 })
}

// ParseRangeEnd parses an XRANGE end bound; "+" means the very last
// entry and a bare timestamp means its highest sequence
func ParseRangeEnd(raw string) (StreamID, error) {
	if raw == "+" {
		return maxStreamID, nil
	}
	return parseStreamID(raw, false, func(uint64) uint64 { return math.MaxUint64 })
}

// ParseReadID parses an XREAD cursor ID (exclusive lower bound)
func ParseReadID(raw string) (StreamID, error) {
	return parseStreamID(raw, false, func(uint64) uint64 { return 0 })
}

// XAdd appends an entry to the stream at key, creating the stream when
// absent. rawID is "*" for a fully generated ID, "ms-*" for a generated
// sequence, or an explicit "ms-seq" which must exceed the stream's
// current maximum ID.
func (s *MemoryStorage) XAdd(key string, rawID string, fields []StreamField) (StreamID, error) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	value, err := typedValue(sh, key, ValueTypeStream)
	if err != nil {
		return StreamID{}, err
	}

	var last StreamID
	if value != nil {
		last = value.Data.(*StreamValue).LastID
	}

	id, err := parseStreamID(rawID, true, func(ms uint64) uint64 {
		if ms == last.Ms {
			return last.Seq + 1
		}
		return 0
	})
	if err != nil {
		return StreamID{}, err
	}

	if id == (StreamID{}) {
		return StreamID{}, fmt.Errorf("The ID specified in XADD must be greater than 0-0")
	}
	if !last.Less(id) {
		return StreamID{}, fmt.Errorf("The ID specified in XADD is equal or smaller than the target stream top item")
	}

	if value == nil {
		value = &Value{
			Type: ValueTypeStream,
			Data: &StreamValue{},
		}
		sh.data[key] = value
	}

	stream := value.Data.(*StreamValue)
	entry := StreamEntry{ID: id, Fields: make([]StreamField, len(fields))}
	for i, f := range fields {
		entry.Fields[i] = StreamField{
			Name:  append([]byte(nil), f.Name...),
			Value: append([]byte(nil), f.Value...),
		}
	}
	stream.Entries = append(stream.Entries, entry)
	stream.LastID = id
	value.Version = time.Now().UnixNano()

	return id, nil
}

// XLen returns the number of entries in the stream at key, 0 when absent
func (s *MemoryStorage) XLen(key string) (int64, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeStream)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, nil
	}

	return int64(len(value.Data.(*StreamValue).Entries)), nil
}

// XRange returns entries with ID within [start, end] inclusive, where
// "-" and "+" denote open bounds
func (s *MemoryStorage) XRange(key, start, end string) ([]StreamEntry, error) {
	startID, err := ParseRangeStart(start)
	if err != nil {
		return nil, err
	}
	endID, err := ParseRangeEnd(end)
	if err != nil {
		return nil, err
	}

	if endID.Less(startID) {
		return []StreamEntry{}, nil
	}

	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeStream)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return []StreamEntry{}, nil
	}

	stream := value.Data.(*StreamValue)
	lo := sort.Search(len(stream.Entries), func(i int) bool {
		return !stream.Entries[i].ID.Less(startID)
	})
	hi := sort.Search(len(stream.Entries), func(i int) bool {
		return endID.Less(stream.Entries[i].ID)
	})

	return copyEntries(stream.Entries[lo:hi]), nil
}

// XReadAfter returns entries with ID strictly greater than after
func (s *MemoryStorage) XReadAfter(key string, after StreamID) ([]StreamEntry, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeStream)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return []StreamEntry{}, nil
	}

	stream := value.Data.(*StreamValue)
	lo := sort.Search(len(stream.Entries), func(i int) bool {
		return after.Less(stream.Entries[i].ID)
	})

	return copyEntries(stream.Entries[lo:]), nil
}

// XLastID returns the highest ID appended to the stream at key, the
// zero ID when the stream is absent
func (s *MemoryStorage) XLastID(key string) (StreamID, error) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, err := typedValue(sh, key, ValueTypeStream)
	if err != nil {
		return StreamID{}, err
	}
	if value == nil {
		return StreamID{}, nil
	}

	return value.Data.(*StreamValue).LastID, nil
}

// copyEntries deep-copies entries so callers never hold references into
// the engine past the command boundary
func copyEntries(entries []StreamEntry) []StreamEntry {
	result := make([]StreamEntry, len(entries))
	for i, e := range entries {
		fields := make([]StreamField, len(e.Fields))
		for j, f := range e.Fields {
			fields[j] = StreamField{
				Name:  append([]byte(nil), f.Name...),
				Value: append([]byte(nil), f.Value...),
			}
		}
		result[i] = StreamEntry{ID: e.ID, Fields: fields}
	}
	return result
}
