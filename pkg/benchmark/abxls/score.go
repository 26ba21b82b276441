package abxls

import (
	"fmt"
	"math"
	"sort"
)

// segment is an item token with its pooled feature vector attached.
type segment struct {
	itemToken
	Vector []float64
}

func distance(a, b []float64, metric string) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch %d != %d", len(a), len(b))
	}
	switch metric {
	case "cosine":
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	case "euclidean":
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum), nil
	default:
		return 0, fmt.Errorf("unknown distance %q", metric)
	}
}

// abxCell scores one A/B/X cell: A and X share the phone of as, B carries a
// contrasting phone. The return value is the fraction of triplets where X
// landed closer to A than to B, ties counting half.
func abxCell(as, bs, xs []segment, metric string) (float64, error) {
	var sum float64
	n := 0
	for _, a := range as {
		for _, x := range xs {
			// when A and X are drawn from the same token list, a triplet
			// must not reuse one token on both sides
			if sameToken(a, x) {
				continue
			}
			da, err := distance(a.Vector, x.Vector, metric)
			if err != nil {
				return 0, err
			}
			for _, b := range bs {
				db, err := distance(b.Vector, x.Vector, metric)
				if err != nil {
					return 0, err
				}
				switch {
				case da < db:
					sum += 1
				case da == db:
					sum += 0.5
				}
				n++
			}
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("empty cell")
	}
	return sum / float64(n), nil
}

func sameToken(a, b segment) bool {
	return a.File == b.File && a.Onset == b.Onset && a.Offset == b.Offset
}

type phoneGroups map[string][]segment

func capGroup(segments []segment, max int) []segment {
	if max > 0 && len(segments) > max {
		return segments[:max]
	}
	return segments
}

// scoreWithin computes the within-speaker ABX error: A, B and X all come
// from the same speaker and phonemic context.
func scoreWithin(segments []segment, params Params) (float64, error) {
	type key struct{ Context, Speaker string }
	groups := map[key]phoneGroups{}
	for _, s := range segments {
		k := key{s.Context, s.Speaker}
		if groups[k] == nil {
			groups[k] = phoneGroups{}
		}
		groups[k][s.Phone] = append(groups[k][s.Phone], s)
	}

	var errors []float64
	for _, phones := range groups {
		for _, phoneA := range sortedPhones(phones) {
			as := capGroup(phones[phoneA], params.MaxSizeGroup)
			if len(as) < 2 {
				continue
			}
			for _, phoneB := range sortedPhones(phones) {
				if phoneB == phoneA {
					continue
				}
				bs := capGroup(phones[phoneB], params.MaxSizeGroup)
				score, err := abxCell(as, bs, as, params.Distance)
				if err != nil {
					return 0, err
				}
				errors = append(errors, 1-score)
			}
		}
	}
	if len(errors) == 0 {
		return 0, fmt.Errorf("no scorable within cells, the item and feature files do not overlap enough")
	}
	return meanOf(errors), nil
}

// scoreAcross computes the across-speaker ABX error: A and B share a
// speaker, X carries the phone of A but comes from a different speaker in
// the same context.
func scoreAcross(segments []segment, params Params) (float64, error) {
	type key struct{ Context, Speaker string }
	groups := map[key]phoneGroups{}
	speakersByContext := map[string][]string{}
	seen := map[key]bool{}
	for _, s := range segments {
		k := key{s.Context, s.Speaker}
		if groups[k] == nil {
			groups[k] = phoneGroups{}
		}
		groups[k][s.Phone] = append(groups[k][s.Phone], s)
		if !seen[k] {
			seen[k] = true
			speakersByContext[s.Context] = append(speakersByContext[s.Context], s.Speaker)
		}
	}
	for _, speakers := range speakersByContext {
		sort.Strings(speakers)
	}

	var errors []float64
	for context, speakers := range speakersByContext {
		for _, speaker := range speakers {
			phones := groups[key{context, speaker}]
			for _, phoneA := range sortedPhones(phones) {
				as := capGroup(phones[phoneA], params.MaxSizeGroup)
				for _, phoneB := range sortedPhones(phones) {
					if phoneB == phoneA {
						continue
					}
					bs := capGroup(phones[phoneB], params.MaxSizeGroup)

					picked := 0
					for _, other := range speakers {
						if other == speaker {
							continue
						}
						if params.MaxXAcross > 0 && picked >= params.MaxXAcross {
							break
						}
						xs := capGroup(groups[key{context, other}][phoneA], params.MaxSizeGroup)
						if len(xs) == 0 {
							continue
						}
						score, err := abxCell(as, bs, xs, params.Distance)
						if err != nil {
							return 0, err
						}
						errors = append(errors, 1-score)
						picked++
					}
				}
			}
		}
	}
	if len(errors) == 0 {
		return 0, fmt.Errorf("no scorable across cells, every context is single-speaker")
	}
	return meanOf(errors), nil
}

func sortedPhones(phones phoneGroups) []string {
	names := make([]string, 0, len(phones))
	for phone := range phones {
		names = append(names, phone)
	}
	sort.Strings(names)
	return names
}

func meanOf(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
