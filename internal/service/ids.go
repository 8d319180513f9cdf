package service

// uniqueIDs drops duplicates and zero ids while keeping first-seen order.
func uniqueIDs(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mergeIDs(sets ...[]uint64) []uint64 {
	var all []uint64
	for _, s := range sets {
		all = append(all, s...)
	}
	return uniqueIDs(all)
}
