// Package heavykeeper finds the heaviest keys of a stream in bounded memory
// using the HeavyKeeper count-with-exponential-decay sketch.
package heavykeeper

import (
	"math"
	"math/rand"
	"sort"

	"github.com/twmb/murmur3"
)

const lookupTableSize = 256

// Item is a key and its estimated count.
type Item struct {
	Key   string
	Count uint32
}

// Topk tracks the k heaviest keys. Implementations are not safe for
// concurrent use.
type Topk interface {
	// Add counts incr occurrences of key. It returns the key pushed out of
	// the top k, if any, and whether key is now in the top k.
	Add(key string, incr uint32) (string, bool)
	// List returns the top k, heaviest first.
	List() []Item
	// Expelled delivers keys pushed out of the top k. Items are dropped
	// when nobody receives them.
	Expelled() <-chan Item
	// Fading halves every count so old activity loses weight.
	Fading()
	// Total returns the sum of all increments, halved by Fading.
	Total() uint64
}

type bucket struct {
	fingerprint uint32
	count       uint32
}

type HeavyKeeper struct {
	k           uint32
	width       uint32
	depth       uint32
	decay       float64
	minCount    uint32
	lookupTable []float64

	r        *rand.Rand
	buckets  [][]bucket
	heap     *minHeap
	expelled chan Item
	total    uint64
}

// NewHeavyKeeper returns a sketch of depth rows of width buckets keeping the
// top k keys. A colliding bucket decays with probability decay^count; keys
// estimated below minCount never enter the top k.
func NewHeavyKeeper(k, width, depth uint32, decay float64, minCount uint32) Topk {
	buckets := make([][]bucket, depth)
	for i := range buckets {
		buckets[i] = make([]bucket, width)
	}
	lookupTable := make([]float64, lookupTableSize)
	for i := range lookupTable {
		lookupTable[i] = math.Pow(decay, float64(i))
	}
	return &HeavyKeeper{
		k:           k,
		width:       width,
		depth:       depth,
		decay:       decay,
		minCount:    minCount,
		lookupTable: lookupTable,
		r:           rand.New(rand.NewSource(0)),
		buckets:     buckets,
		heap:        &minHeap{k: int(k)},
		expelled:    make(chan Item, 32),
	}
}

func (hk *HeavyKeeper) Add(key string, incr uint32) (string, bool) {
	data := []byte(key)
	fp := murmur3.Sum32(data)
	var maxCount uint32

	for i, row := range hk.buckets {
		b := &row[murmur3.SeedSum32(uint32(i), data)%hk.width]
		switch {
		case b.count == 0:
			b.fingerprint = fp
			b.count = incr
			maxCount = max(maxCount, incr)
		case b.fingerprint == fp:
			b.count += incr
			maxCount = max(maxCount, b.count)
		default:
			for local := incr; local > 0; local-- {
				if hk.r.Float64() < hk.decayFor(b.count) {
					b.count--
					if b.count == 0 {
						b.fingerprint = fp
						b.count = local
						maxCount = max(maxCount, local)
						break
					}
				}
			}
		}
	}
	hk.total += uint64(incr)

	if maxCount < hk.minCount {
		return "", false
	}
	if idx := hk.heap.find(key); idx >= 0 {
		hk.heap.fix(idx, maxCount)
		return "", true
	}
	out, added := hk.heap.add(Item{Key: key, Count: maxCount})
	if out.Key != "" {
		select {
		case hk.expelled <- out:
		default:
		}
	}
	return out.Key, added
}

func (hk *HeavyKeeper) decayFor(count uint32) float64 {
	if count < lookupTableSize {
		return hk.lookupTable[count]
	}
	return hk.lookupTable[lookupTableSize-1]
}

func (hk *HeavyKeeper) List() []Item {
	items := make([]Item, len(hk.heap.nodes))
	copy(items, hk.heap.nodes)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Key < items[j].Key
	})
	return items
}

func (hk *HeavyKeeper) Expelled() <-chan Item { return hk.expelled }

func (hk *HeavyKeeper) Fading() {
	for _, row := range hk.buckets {
		for i := range row {
			row[i].count >>= 1
		}
	}
	for i := range hk.heap.nodes {
		hk.heap.nodes[i].Count >>= 1
	}
	hk.heap.init()
	hk.total >>= 1
}

func (hk *HeavyKeeper) Total() uint64 { return hk.total }
