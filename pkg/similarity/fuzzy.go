package similarity

import "strings"

// EditDistance computes the optimal string alignment distance between two
// strings: Levenshtein extended with adjacent transpositions, so common typos
// like "opne" for "open" cost a single edit.
func EditDistance(a, b string) int {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			del := d[i-1][j] + 1
			ins := d[i][j-1] + 1
			sub := d[i-1][j-1] + cost

			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}

			// Adjacent transposition
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := d[i-2][j-2] + 1; t < min {
					min = t
				}
			}

			d[i][j] = min
		}
	}

	return d[la][lb]
}

// Score normalizes edit distance into a similarity score in [0,1],
// where 1 means identical.
func Score(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}

	dist := EditDistance(a, b)
	if dist >= longest {
		return 0.0
	}
	return 1.0 - float64(dist)/float64(longest)
}

// BestMatch returns the candidate most similar to the token, provided its
// score meets minScore. The boolean reports whether any candidate qualified.
func BestMatch(token string, candidates []string, minScore float64) (string, float64, bool) {
	best := ""
	bestScore := 0.0

	for _, c := range candidates {
		if s := Score(token, c); s > bestScore {
			best = c
			bestScore = s
		}
	}

	if bestScore < minScore {
		return "", bestScore, false
	}
	return best, bestScore, true
}
