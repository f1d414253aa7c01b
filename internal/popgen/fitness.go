package popgen

import (
	"fmt"

	"fwdpop/internal/model"
)

// FitnessModel maps a diploid to a non-negative fitness.
type FitnessModel interface {
	Fitness(d model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64
}

// FitnessFunc adapts a function to FitnessModel.
type FitnessFunc func(d model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64

func (f FitnessFunc) Fitness(d model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64 {
	return f(d, gametes, muts)
}

// MultilocusFitnessModel maps one individual's per-locus diploids to a
// non-negative fitness.
type MultilocusFitnessModel interface {
	Fitness(loci []model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64
}

// MultilocusFitnessFunc adapts a function to MultilocusFitnessModel.
type MultilocusFitnessFunc func(loci []model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64

func (f MultilocusFitnessFunc) Fitness(loci []model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64 {
	return f(loci, gametes, muts)
}

// SiteDependentFitness walks the selected mutations of g1 and g2 in position
// order and calls hom for every mutation present on both and het for every
// mutation present on one. It returns the accumulated value.
func SiteDependentFitness(g1, g2 *model.Gamete, muts []model.Mutation, start float64,
	hom func(w float64, m model.Mutation) float64,
	het func(w float64, m model.Mutation) float64,
) float64 {
	w := start
	a, b := g1.Selected, g2.Selected
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			w = hom(w, muts[a[i]])
			i++
			j++
		case muts[a[i]].Pos <= muts[b[j]].Pos:
			w = het(w, muts[a[i]])
			i++
		default:
			w = het(w, muts[b[j]])
			j++
		}
	}
	for ; i < len(a); i++ {
		w = het(w, muts[a[i]])
	}
	for ; j < len(b); j++ {
		w = het(w, muts[b[j]])
	}
	return w
}

// Multiplicative fitness: each heterozygous site contributes 1+h*s and
// each homozygous site 1+Scaling*s.
type Multiplicative struct {
	Scaling float64
}

func (m Multiplicative) Fitness(d model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64 {
	return max(0, m.pair(&gametes[d.First], &gametes[d.Second], muts))
}

func (m Multiplicative) pair(g1, g2 *model.Gamete, muts []model.Mutation) float64 {
	return SiteDependentFitness(g1, g2, muts, 1,
		func(w float64, mut model.Mutation) float64 { return w * (1 + m.Scaling*mut.S) },
		func(w float64, mut model.Mutation) float64 { return w * (1 + mut.H*mut.S) },
	)
}

// Additive fitness: 1 plus h*s per heterozygous site and Scaling*s per
// homozygous site.
type Additive struct {
	Scaling float64
}

func (a Additive) Fitness(d model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64 {
	return max(0, 1+a.effect(&gametes[d.First], &gametes[d.Second], muts))
}

func (a Additive) effect(g1, g2 *model.Gamete, muts []model.Mutation) float64 {
	return SiteDependentFitness(g1, g2, muts, 0,
		func(w float64, mut model.Mutation) float64 { return w + a.Scaling*mut.S },
		func(w float64, mut model.Mutation) float64 { return w + mut.H*mut.S },
	)
}

// Neutral assigns fitness 1 to everyone.
type Neutral struct{}

func (Neutral) Fitness(model.Diploid, []model.Gamete, []model.Mutation) float64 {
	return 1
}

// AdditiveAcrossLoci sums the additive effects of every locus.
type AdditiveAcrossLoci struct {
	Scaling float64
}

func (a AdditiveAcrossLoci) Fitness(loci []model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64 {
	per := Additive{Scaling: a.Scaling}
	w := 1.0
	for _, d := range loci {
		w += per.effect(&gametes[d.First], &gametes[d.Second], muts)
	}
	return max(0, w)
}

// MultiplicativeAcrossLoci multiplies the multiplicative fitness of every locus.
type MultiplicativeAcrossLoci struct {
	Scaling float64
}

func (m MultiplicativeAcrossLoci) Fitness(loci []model.Diploid, gametes []model.Gamete, muts []model.Mutation) float64 {
	per := Multiplicative{Scaling: m.Scaling}
	w := 1.0
	for _, d := range loci {
		w *= per.pair(&gametes[d.First], &gametes[d.Second], muts)
	}
	return max(0, w)
}

// NewFitnessModel maps a config name to a single-locus model.
func NewFitnessModel(name string, scaling float64) (FitnessModel, error) {
	switch name {
	case "", "multiplicative":
		return Multiplicative{Scaling: scaling}, nil
	case "additive":
		return Additive{Scaling: scaling}, nil
	case "neutral":
		return Neutral{}, nil
	default:
		return nil, fmt.Errorf("unknown fitness model: %s", name)
	}
}
