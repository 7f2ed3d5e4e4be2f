package valueobjects

import (
	"fmt"
	"sort"
)

// Well-known population categories carried by precinct-level snapshots.
const (
	White       = "white"
	AfricanAmer = "africanAmer"
	Asian       = "asian"
	NativeAmer  = "nativeAmer"
	Pasifika    = "pasifika"
	Others      = "others"
)

// KnownCategories lists the categories every group is expected to report
var KnownCategories = []string{White, AfricanAmer, Asian, NativeAmer, Pasifika, Others}

// Demographics maps a population category to a non-negative head count
type Demographics map[string]int

// Validate rejects negative counts and blank category names
func (d Demographics) Validate() error {
	for _, key := range d.Keys() {
		if key == "" {
			return fmt.Errorf("demographic category cannot be empty")
		}
		if d[key] < 0 {
			return fmt.Errorf("demographic count for %q cannot be negative: %d", key, d[key])
		}
	}
	return nil
}

// Clone returns an independent copy. A nil receiver clones to an empty map.
func (d Demographics) Clone() Demographics {
	out := make(Demographics, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Total sums all categories
func (d Demographics) Total() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}

// Keys returns the categories in lexical order
func (d Demographics) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
