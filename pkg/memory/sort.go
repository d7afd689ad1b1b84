package memory

import "sort"

// sortRanked orders items by importance descending, breaking ties by
// recency (higher sequence first).
func sortRanked(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Importance != items[j].Importance {
			return items[i].Importance > items[j].Importance
		}
		return items[i].Seq > items[j].Seq
	})
}
