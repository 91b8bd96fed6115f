package core

import (
	"fmt"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortOrder names an ordering of backlink sources.
type SortOrder string

const (
	SortAlphabetical          SortOrder = "alphabetical"
	SortAlphabeticalReverse   SortOrder = "alphabeticalReverse"
	SortByCreatedTime         SortOrder = "byCreatedTime"
	SortByCreatedTimeReverse  SortOrder = "byCreatedTimeReverse"
	SortByModifiedTime        SortOrder = "byModifiedTime"
	SortByModifiedTimeReverse SortOrder = "byModifiedTimeReverse"
)

// SortOrders lists every supported order.
var SortOrders = []SortOrder{
	SortAlphabetical,
	SortAlphabeticalReverse,
	SortByCreatedTime,
	SortByCreatedTimeReverse,
	SortByModifiedTime,
	SortByModifiedTimeReverse,
}

// DocumentComparer orders two documents, returning <0, 0 or >0.
type DocumentComparer func(a, b DocumentInfo) int

// ParseSortOrder validates a sort order name. Empty means alphabetical.
func ParseSortOrder(s string) (SortOrder, error) {
	if s == "" {
		return SortAlphabetical, nil
	}
	for _, o := range SortOrders {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown sort order: %s", s)
}

// NeedsStat reports whether the order compares file times, which only a
// stat of each source can supply. Name orders work from the path alone.
func (o SortOrder) NeedsStat() bool {
	switch o {
	case SortByCreatedTime, SortByCreatedTimeReverse, SortByModifiedTime, SortByModifiedTimeReverse:
		return true
	}
	return false
}

// ComparerFor returns the comparer for order. Time orders put the newest
// document first; their Reverse variants put the oldest first.
func ComparerFor(order SortOrder) DocumentComparer {
	switch order {
	case SortAlphabeticalReverse:
		return reverse(naturalComparer())
	case SortByCreatedTime:
		return func(a, b DocumentInfo) int { return b.CTime.Compare(a.CTime) }
	case SortByCreatedTimeReverse:
		return func(a, b DocumentInfo) int { return a.CTime.Compare(b.CTime) }
	case SortByModifiedTime:
		return func(a, b DocumentInfo) int { return b.MTime.Compare(a.MTime) }
	case SortByModifiedTimeReverse:
		return func(a, b DocumentInfo) int { return a.MTime.Compare(b.MTime) }
	default:
		return naturalComparer()
	}
}

// naturalComparer compares display names with numeric awareness, ignoring
// case and diacritics ("Note 2" < "Note 10"). collate.Collator is not safe
// for concurrent use, so each comparer guards its own instance.
func naturalComparer() DocumentComparer {
	c := collate.New(language.Und, collate.Numeric, collate.IgnoreCase, collate.IgnoreDiacritics)
	var mu sync.Mutex
	return func(a, b DocumentInfo) int {
		mu.Lock()
		defer mu.Unlock()
		return c.CompareString(a.Name, b.Name)
	}
}

func reverse(cmp DocumentComparer) DocumentComparer {
	return func(a, b DocumentInfo) int { return cmp(b, a) }
}
