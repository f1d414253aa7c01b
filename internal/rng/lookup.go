package rng

import (
	"errors"
	"math"
)

var ErrNoWeight = errors.New("lookup weights must contain a positive finite total")

// Lookup draws indices proportionally to a fixed weight vector in O(1)
// using Vose's alias method.
type Lookup struct {
	prob  []float64
	alias []int
}

// NewLookup builds a table over weights. Negative weights are rejected by
// the caller; here they are treated as zero.
func NewLookup(weights []float64) (*Lookup, error) {
	n := len(weights)
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if n == 0 || total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return nil, ErrNoWeight
	}

	prob := make([]float64, n)
	alias := make([]int, n)
	scaled := make([]float64, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, w := range weights {
		if w < 0 {
			w = 0
		}
		scaled[i] = w * float64(n) / total
		if scaled[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}
	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		prob[s] = scaled[s]
		alias[s] = l
		scaled[l] = scaled[l] + scaled[s] - 1
		if scaled[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	for _, i := range large {
		prob[i] = 1
		alias[i] = i
	}
	// Leftovers here are rounding residue.
	for _, i := range small {
		prob[i] = 1
		alias[i] = i
	}
	return &Lookup{prob: prob, alias: alias}, nil
}

// Len returns the number of entries in the table.
func (l *Lookup) Len() int {
	return len(l.prob)
}

// Sample draws one index.
func (l *Lookup) Sample(src Source) int {
	i := src.Intn(len(l.prob))
	if src.Uniform() < l.prob[i] {
		return i
	}
	return l.alias[i]
}
