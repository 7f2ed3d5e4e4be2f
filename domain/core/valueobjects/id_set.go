package valueobjects

import (
	"encoding/json"
	"sort"
)

// IDSet is an insertion-ordered set of unit identifiers. The zero value is an
// empty set. Empty strings are never members.
type IDSet []string

// NewIDSet builds a set from ids, dropping blanks and duplicates while keeping
// first-seen order.
func NewIDSet(ids ...string) IDSet {
	set := make(IDSet, 0, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Contains reports whether id is a member
func (s IDSet) Contains(id string) bool {
	for _, member := range s {
		if member == id {
			return true
		}
	}
	return false
}

// Add inserts id and reports whether the set changed
func (s *IDSet) Add(id string) bool {
	if id == "" || s.Contains(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

// Remove deletes id and reports whether the set changed
func (s *IDSet) Remove(id string) bool {
	for i, member := range *s {
		if member == id {
			*s = append((*s)[:i:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of members
func (s IDSet) Len() int {
	return len(s)
}

// Equal reports set equality, ignoring order and repeated entries
func (s IDSet) Equal(other IDSet) bool {
	for _, id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	for _, id := range other {
		if !s.Contains(id) {
			return false
		}
	}
	return true
}

// Minus returns the members of s that are not in other, in s's order
func (s IDSet) Minus(other IDSet) IDSet {
	diff := IDSet{}
	for _, id := range s {
		if !other.Contains(id) {
			diff = append(diff, id)
		}
	}
	return diff
}

// Clone returns an independent copy
func (s IDSet) Clone() IDSet {
	if s == nil {
		return IDSet{}
	}
	out := make(IDSet, len(s))
	copy(out, s)
	return out
}

// Sorted returns the members in lexical order, used for stable output
func (s IDSet) Sorted() []string {
	out := make([]string, len(s))
	copy(out, s)
	sort.Strings(out)
	return out
}

// Strings returns the members as a plain slice
func (s IDSet) Strings() []string {
	return []string(s.Clone())
}

// Normalized drops blanks and duplicates, keeping first-seen order
func (s IDSet) Normalized() IDSet {
	return NewIDSet(s...)
}

// UnmarshalJSON decodes a JSON array and normalizes it like NewIDSet
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
