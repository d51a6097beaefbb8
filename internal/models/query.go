package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Query describes which posts a feed is bound to. The zero value is the
// unfiltered feed; any set field narrows it, all conditions conjunctive.
// A Query is immutable once an executor is bound to it.
type Query struct {
	Text        string
	CategoryIDs []int64
	TagIDs      []int64
	PostIDs     []int64
}

// IsEmpty reports whether the query carries no filter conditions
func (q Query) IsEmpty() bool {
	return q.Text == "" && len(q.CategoryIDs) == 0 && len(q.TagIDs) == 0 && len(q.PostIDs) == 0
}

// Fingerprint returns a stable identifier for the query, independent of the
// order its id lists were built in. Used as the executor registry key and as
// a cache key component.
func (q Query) Fingerprint() string {
	parts := []string{
		"text=" + q.Text,
		"cats=" + joinSorted(q.CategoryIDs),
		"tags=" + joinSorted(q.TagIDs),
		"posts=" + joinSorted(q.PostIDs),
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func joinSorted(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	strs := make([]string, len(sorted))
	for i, id := range sorted {
		strs[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(strs, ",")
}
