package core

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSortOrder(t *testing.T) {
	o, err := ParseSortOrder("")
	require.NoError(t, err)
	assert.Equal(t, SortAlphabetical, o)

	for _, want := range SortOrders {
		got, err := ParseSortOrder(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ParseSortOrder("bySize")
	assert.Error(t, err)
}

func TestComparerFor(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []DocumentInfo{
		{Path: "Note 10.md", Name: "Note 10", CTime: base.Add(1 * time.Hour), MTime: base.Add(3 * time.Hour)},
		{Path: "note 2.md", Name: "note 2", CTime: base.Add(3 * time.Hour), MTime: base.Add(1 * time.Hour)},
		{Path: "Éclair.md", Name: "Éclair", CTime: base.Add(2 * time.Hour), MTime: base.Add(2 * time.Hour)},
	}

	tests := []struct {
		order SortOrder
		want  []string
	}{
		{SortAlphabetical, []string{"Éclair", "note 2", "Note 10"}},
		{SortAlphabeticalReverse, []string{"Note 10", "note 2", "Éclair"}},
		{SortByCreatedTime, []string{"note 2", "Éclair", "Note 10"}},
		{SortByCreatedTimeReverse, []string{"Note 10", "Éclair", "note 2"}},
		{SortByModifiedTime, []string{"Note 10", "Éclair", "note 2"}},
		{SortByModifiedTimeReverse, []string{"note 2", "Éclair", "Note 10"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got := append([]DocumentInfo(nil), docs...)
			cmp := ComparerFor(tt.order)
			sort.SliceStable(got, func(i, j int) bool { return cmp(got[i], got[j]) < 0 })
			names := make([]string, len(got))
			for i, d := range got {
				names[i] = d.Name
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestSortOrderNeedsStat(t *testing.T) {
	want := map[SortOrder]bool{
		SortAlphabetical:          false,
		SortAlphabeticalReverse:   false,
		SortByCreatedTime:         true,
		SortByCreatedTimeReverse:  true,
		SortByModifiedTime:        true,
		SortByModifiedTimeReverse: true,
	}
	for _, o := range SortOrders {
		assert.Equal(t, want[o], o.NeedsStat(), o)
	}
	assert.False(t, SortOrder("").NeedsStat())
}
