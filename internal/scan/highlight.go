package scan

import "github.com/thoth-viewer/thoth/internal/match"

// HighlightMap gives O(1) access to the fragments of each matched record.
// The fragment slices are shared with the hits they came from and must be
// treated as read-only.
type HighlightMap struct {
	byIndex map[int][]match.Fragment
}

func newHighlightMap(hits []Hit) *HighlightMap {
	h := &HighlightMap{byIndex: make(map[int][]match.Fragment, len(hits))}
	for _, hit := range hits {
		h.byIndex[hit.Index] = hit.Fragments
	}
	return h
}

// Lookup returns the fragments of record i, or false when it did not match.
func (h *HighlightMap) Lookup(i int) ([]match.Fragment, bool) {
	if h == nil {
		return nil, false
	}
	f, ok := h.byIndex[i]
	return f, ok
}

func (h *HighlightMap) Len() int {
	if h == nil {
		return 0
	}
	return len(h.byIndex)
}
