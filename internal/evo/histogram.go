package evo

import (
	"math"
	"sort"

	"interceptor/internal/model"
)

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// histogram counts hits and misses by how far to the side of the launch
// point the target started.
type histogram struct {
	bucket float64
	hits   map[int]int
	misses map[int]int
}

func newHistogram(bucket float64) *histogram {
	return &histogram{
		bucket: bucket,
		hits:   make(map[int]int),
		misses: make(map[int]int),
	}
}

func (h *histogram) record(xOffset float64, hit bool) {
	key := int(math.Floor(xOffset / h.bucket))
	if hit {
		h.hits[key]++
		return
	}
	h.misses[key]++
}

// buckets lists hits then misses, each by ascending offset.
func (h *histogram) buckets() []model.HitMissBucket {
	out := make([]model.HitMissBucket, 0, len(h.hits)+len(h.misses))
	out = appendBuckets(out, h.hits, resultHit)
	out = appendBuckets(out, h.misses, resultMiss)
	return out
}

func appendBuckets(out []model.HitMissBucket, counts map[int]int, result string) []model.HitMissBucket {
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		out = append(out, model.HitMissBucket{XDistance: k, Count: counts[k], Result: result})
	}
	return out
}
