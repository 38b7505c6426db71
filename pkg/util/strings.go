package util

// Dedupe returns the distinct values of in, keeping first occurrences, and
// the values that appeared more than once.
func Dedupe(in []string) (uniq, dups []string) {
	seen := make(map[string]int, len(in))
	uniq = make([]string, 0, len(in))
	for _, s := range in {
		seen[s]++
		switch seen[s] {
		case 1:
			uniq = append(uniq, s)
		case 2:
			dups = append(dups, s)
		}
	}
	return uniq, dups
}
