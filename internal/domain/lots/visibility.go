package lots

import "github.com/lotledger/lotledger/internal/domain/model"

type tally struct {
	total  int
	active int
}

// VisibleLots filters candidates down to the lots that should be listed: a
// lot is visible when it has no items at all or at least one item that is
// not cancelled. Items belonging to lots outside candidates are ignored.
// Candidate order is preserved.
func VisibleLots(candidates []model.Lot, items []model.Item) []model.Lot {
	counts := make(map[int64]*tally, len(candidates))
	for _, l := range candidates {
		counts[l.ID] = &tally{}
	}
	for _, it := range items {
		t, ok := counts[it.LotID]
		if !ok {
			continue
		}
		t.total++
		if !it.Cancelled {
			t.active++
		}
	}

	out := make([]model.Lot, 0, len(candidates))
	for _, l := range candidates {
		t := counts[l.ID]
		if t.total == 0 || t.active > 0 {
			out = append(out, l)
		}
	}
	return out
}

// LotIDs returns the ids of lots in order.
func LotIDs(ls []model.Lot) []int64 {
	ids := make([]int64, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	return ids
}
