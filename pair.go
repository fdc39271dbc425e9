package weightedset

// Pair holds a key together with its weight.
type Pair[K comparable] struct {
	Key    K
	Weight float64
}
