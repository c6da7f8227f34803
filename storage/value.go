package storage

import (
	"fmt"
	"time"
)

// ValueType represents the data type held at a key
type ValueType int

const (
	ValueTypeString ValueType = iota
	ValueTypeList
	ValueTypeSet
	ValueTypeZSet
	ValueTypeStream
)

// String returns the client-visible type name
func (vt ValueType) String() string {
	switch vt {
	case ValueTypeString:
		return "string"
	case ValueTypeList:
		return "list"
	case ValueTypeSet:
		return "set"
	case ValueTypeZSet:
		return "zset"
	case ValueTypeStream:
		return "stream"
	default:
		return "none"
	}
}

// WrongTypeError reports a command applied to a key holding a different
// kind of value than the command expects. The failing command never
// mutates the key.
type WrongTypeError struct {
	Expected ValueType
	Actual   ValueType
}

// Error implements the error interface
func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("WRONGTYPE Operation against a key holding the wrong kind of value (expected %s, found %s)", e.Expected, e.Actual)
}

// Value represents a stored value with metadata. A key holds exactly one
// value kind for its lifetime; changing kind requires deleting the key
// (or replacing it wholesale with SET).
type Value struct {
	Type    ValueType
	Data    interface{}
	Expiry  *time.Time
	Version int64
}

// IsExpired returns true if the value has expired
func (v *Value) IsExpired() bool {
	return v.Expiry != nil && time.Now().After(*v.Expiry)
}

// StringValue represents a string value
type StringValue struct {
	Data []byte
}

// ListValue represents a list value
type ListValue struct {
	Elements [][]byte
}

// SetValue represents a set value
type SetValue struct {
	Members map[string]struct{}
}

// ZSetValue represents a sorted set value. Members are kept both in a
// map for O(1) score lookup and in a slice ordered by (score, member)
// for rank and range queries.
type ZSetValue struct {
	Members map[string]float64
	Ranked  []ZSetMember
}

// ZSetMember represents a sorted set member with score
type ZSetMember struct {
	Member string
	Score  float64
}

// zsetLess orders members by ascending score, ties broken by ascending
// byte order of the member. This is a total order: (score, member)
// combinations are unique.
func zsetLess(a, b ZSetMember) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

// StreamValue represents a stream value
type StreamValue struct {
	Entries []StreamEntry
	LastID  StreamID
}

// StreamEntry represents a single stream entry
type StreamEntry struct {
	ID     StreamID
	Fields []StreamField
}

// StreamField is one field/value pair of a stream entry
type StreamField struct {
	Name  []byte
	Value []byte
}
