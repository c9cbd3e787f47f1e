package site

import (
	"strconv"
	"strings"
)

// FilterIDs narrows a harvested ID list by 1-based position. rng selects a
// closed range ("3-7"), list selects individual positions ("1,4,9"). Both
// empty means keep everything; a malformed selector selects nothing.
func FilterIDs(all []int64, rng, list string) []int64 {
	if rng != "" {
		return filterRange(all, rng)
	}
	if list != "" {
		return filterList(all, list)
	}

	return all
}

func filterRange(all []int64, rng string) []int64 {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil
	}

	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))

	if err1 != nil || err2 != nil {
		return nil
	}
	if start <= 0 || end <= 0 || start > end || end > len(all) {
		return nil
	}

	return all[start-1 : end]
}

func filterList(all []int64, list string) []int64 {
	var out []int64
	parts := strings.SplitSeq(list, ",")

	for p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		idx, err := strconv.Atoi(p)
		if err != nil || idx <= 0 || idx > len(all) {
			continue
		}

		out = append(out, all[idx-1])
	}

	return out
}
