// Package ranking orders streams by quality tier, then by how close their size is
// to the expected band for that tier, then by size.
package ranking

import (
	"math"
	"sort"
)

// Rankable is anything carrying a quality tier and a size in MB.
type Rankable interface {
	RankQuality() int
	RankSizeMB() float64
}

type band struct {
	min, max float64
}

var sizeBands = map[int]band{
	2160: {min: 10000, max: 80000},
	1080: {min: 2000, max: 16000},
	720:  {min: 1000, max: 8000},
	480:  {min: 500, max: 4000},
}

// BandDistance returns 0 when sizeMB lies in the tier's ideal band, otherwise the
// distance in MB to the nearest edge. Unknown tiers are unbounded.
func BandDistance(quality int, sizeMB float64) float64 {
	b, ok := sizeBands[quality]
	if !ok || math.IsNaN(sizeMB) {
		return 0
	}
	switch {
	case sizeMB < b.min:
		return b.min - sizeMB
	case sizeMB > b.max:
		return sizeMB - b.max
	default:
		return 0
	}
}

// Less reports whether a ranks before b.
func Less(a, b Rankable) bool {
	if qa, qb := a.RankQuality(), b.RankQuality(); qa != qb {
		return qa > qb
	}
	da := BandDistance(a.RankQuality(), a.RankSizeMB())
	db := BandDistance(b.RankQuality(), b.RankSizeMB())
	if da != db {
		return da < db
	}
	return a.RankSizeMB() > b.RankSizeMB()
}

// Rank returns a new, stably sorted slice; the input is left untouched.
func Rank[T Rankable](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}
