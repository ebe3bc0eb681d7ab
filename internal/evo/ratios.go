package evo

// Ratios holds the rolling kill and miss counters, indexed by network id.
type Ratios struct {
	Kill []float64
	Miss []float64
}

func NewRatios(size int) *Ratios {
	return &Ratios{
		Kill: make([]float64, size),
		Miss: make([]float64, size),
	}
}

// Record credits a hit or a miss to network id.
func (r *Ratios) Record(id int, hit bool) {
	if hit {
		r.Kill[id]++
		return
	}
	r.Miss[id]++
}

// Decay erodes the kill ratio of a network that missed while sitting above
// threshold, so old luck does not carry it forever.
func (r *Ratios) Decay(id int, threshold, punishment float64) {
	kill := r.Kill[id]
	if kill <= threshold || kill == 0 {
		return
	}
	kill -= punishment * r.Miss[id] / kill
	if kill < 0 {
		kill = 0
	}
	r.Kill[id] = kill
}

// Inherit gives an overwritten slot a share of its donor's kill ratio and a
// clean miss count.
func (r *Ratios) Inherit(dst, src int, factor float64) {
	r.Kill[dst] = r.Kill[src] * factor
	r.Miss[dst] = 0
}

func (r *Ratios) Reset() {
	for i := range r.Kill {
		r.Kill[i] = 0
		r.Miss[i] = 0
	}
}
