package signaling

import "sort"

// Sequence prepares one polled batch for application: signals whose id is
// already in seen are dropped, and the remainder is stably sorted so session
// descriptions (offer/answer) come before ICE candidates, ties keeping fetch
// order. A peer must apply the remote description before that peer's
// candidates mean anything; the candidate buffer makes correctness
// independent of arrival order, this ordering just minimises buffering.
//
// Sequence never mutates seen: a signal id is recorded there only once the
// session has acted on it.
func Sequence(batch []Signal, seen map[string]struct{}) []Signal {
	out := make([]Signal, 0, len(batch))
	for _, sig := range batch {
		if _, ok := seen[sig.ID]; ok {
			continue
		}
		out = append(out, sig)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return priority(out[i].Kind) < priority(out[j].Kind)
	})
	return out
}

func priority(k Kind) int {
	if k.IsDescription() {
		return 0
	}
	return 1
}
