package weightedset

import (
	"context"
	"math"
	"sort"

	"github.com/denismitr/dll"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// DefaultWeight is assigned to keys added without an explicit weight.
const DefaultWeight float64 = 1

type (
	// WeightedSet - a set of unique keys with positive weights attached.
	// Adding a weight for a key that is already present accumulates the
	// weights. Insertion order is preserved and breaks ties between equal
	// weights in Keys and Items. Not safe for concurrent use.
	WeightedSet[K comparable] struct {
		m    map[K]*dll.Element[Pair[K]]
		list *dll.DoublyLinkedList[Pair[K]]
	}

	ForEachFn[K comparable] func(key K, weight float64, order int)
)

func New[K comparable]() *WeightedSet[K] {
	return &WeightedSet[K]{
		m:    make(map[K]*dll.Element[Pair[K]]),
		list: dll.New[Pair[K]](),
	}
}

// FromMap builds a weighted set from a plain map of weights. Keys are
// inserted in ascending key order, so tie-breaking in Keys stays
// deterministic. Zero weights are skipped, negative or non-finite weights
// make the whole construction fail.
func FromMap[K constraints.Ordered, W constraints.Float](weights map[K]W) (*WeightedSet[K], error) {
	keys := make([]K, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	ws := New[K]()
	for _, k := range keys {
		if err := ws.Add(k, float64(weights[k])); err != nil {
			return nil, errors.Wrapf(err, "key %v", k)
		}
	}

	return ws, nil
}

// Add inserts a key with the given weight, or increases the weight of an
// already present key by it. A zero weight is ignored entirely.
func (ws *WeightedSet[K]) Add(key K, weight float64) error {
	if weight < 0 || math.IsInf(weight, 0) || math.IsNaN(weight) {
		return errors.Wrapf(ErrInvalidWeight, "got %v", weight)
	}

	if weight == 0 {
		return nil
	}

	el, found := ws.m[key]
	if !found {
		newEl := dll.NewElement(Pair[K]{Key: key, Weight: weight})
		ws.m[key] = newEl
		ws.list.PushTail(newEl)
		return nil
	}

	sum := el.Value().Weight + weight
	if math.IsInf(sum, 0) {
		return errors.Wrapf(ErrOverflow, "weight for key %v became %v", key, sum)
	}

	el.ReplaceValue(Pair[K]{Key: key, Weight: sum})
	return nil
}

// AddAll adds every key with DefaultWeight.
func (ws *WeightedSet[K]) AddAll(keys ...K) {
	for _, key := range keys {
		_ = ws.Add(key, DefaultWeight)
	}
}

// Contains reports whether key is present with a non-zero weight.
func (ws *WeightedSet[K]) Contains(key K) bool {
	_, found := ws.m[key]
	return found
}

// Get returns the weight stored for key, or ErrKeyNotFound.
func (ws *WeightedSet[K]) Get(key K) (float64, error) {
	el, found := ws.m[key]
	if !found {
		return 0, errors.Wrapf(ErrKeyNotFound, "key %v", key)
	}

	return el.Value().Weight, nil
}

// ScaleBy multiplies every weight by factor. Weights that become exactly
// zero are dropped from the set, a weight that becomes infinite or NaN
// aborts with ErrOverflow before any change is committed.
func (ws *WeightedSet[K]) ScaleBy(factor float64) error {
	if factor < 0 {
		return errors.Wrapf(ErrInvalidWeight, "scale factor %v is negative", factor)
	}

	return ws.rescale(func(weight float64) float64 { return weight * factor })
}

// ScaleByInverse divides every weight by divisor. Division is performed
// directly per key rather than via a reciprocal, so overflow on extreme
// exponents is detected. Drop-on-zero and overflow rules match ScaleBy.
func (ws *WeightedSet[K]) ScaleByInverse(divisor float64) error {
	if divisor == 0 {
		return errors.Wrap(ErrDivisionByZero, "cannot scale weights")
	}
	if divisor < 0 {
		return errors.Wrapf(ErrInvalidWeight, "divisor %v is negative", divisor)
	}

	return ws.rescale(func(weight float64) float64 { return weight / divisor })
}

// rescale rebuilds the internal storage and swaps it in only when every
// new weight is valid, so a failed scaling never leaves a partially
// scaled set behind.
func (ws *WeightedSet[K]) rescale(apply func(weight float64) float64) error {
	scaledM := make(map[K]*dll.Element[Pair[K]], len(ws.m))
	scaledList := dll.New[Pair[K]]()

	curr := ws.list.Head()
	for curr != nil {
		p := curr.Value()
		scaled := apply(p.Weight)
		if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
			return errors.Wrapf(ErrOverflow, "weight for key %v became %v", p.Key, scaled)
		}

		if scaled != 0 {
			newEl := dll.NewElement(Pair[K]{Key: p.Key, Weight: scaled})
			scaledM[p.Key] = newEl
			scaledList.PushTail(newEl)
		}

		curr = curr.Next()
	}

	ws.m = scaledM
	ws.list = scaledList
	return nil
}

// Clamp caps every weight at limit. The cap applies once, it is not a
// persistent constraint: later additions may push weights above limit
// again.
func (ws *WeightedSet[K]) Clamp(limit float64) error {
	if limit == 0 {
		return errors.Wrap(ErrInvalidWeight, "limit must be non-zero")
	}
	if limit < 0 || math.IsInf(limit, 0) || math.IsNaN(limit) {
		return errors.Wrapf(ErrInvalidWeight, "limit %v must be positive and finite", limit)
	}

	curr := ws.list.Head()
	for curr != nil {
		p := curr.Value()
		if p.Weight > limit {
			curr.ReplaceValue(Pair[K]{Key: p.Key, Weight: limit})
		}
		curr = curr.Next()
	}

	return nil
}

// Update merges every other set into this one in place, accumulating
// weights key by key in the order the other set's Keys returns them.
func (ws *WeightedSet[K]) Update(others ...*WeightedSet[K]) {
	for _, other := range others {
		for _, p := range other.Items() {
			// weights coming from a valid set are always positive
			// and finite, so Add cannot fail here
			_ = ws.Add(p.Key, p.Weight)
		}
	}
}

// Remove drops a key from the set regardless of its weight.
func (ws *WeightedSet[K]) Remove(key K) bool {
	el, found := ws.m[key]
	if !found {
		return false
	}

	delete(ws.m, key)
	ws.list.Remove(el)
	return true
}

func (ws *WeightedSet[K]) Clear() {
	ws.m = make(map[K]*dll.Element[Pair[K]])
	ws.list = dll.New[Pair[K]]()
}

// Copy returns an independent instance with the same keys, weights and
// insertion order. Mutating either instance does not affect the other.
func (ws *WeightedSet[K]) Copy() *WeightedSet[K] {
	result := New[K]()

	curr := ws.list.Head()
	for curr != nil {
		p := curr.Value()
		newEl := dll.NewElement(p)
		result.m[p.Key] = newEl
		result.list.PushTail(newEl)
		curr = curr.Next()
	}

	return result
}

// Items returns a snapshot of all key/weight pairs ordered by descending
// weight. The sort is stable, equal weights come back in insertion order.
func (ws *WeightedSet[K]) Items() []Pair[K] {
	items := make([]Pair[K], 0, len(ws.m))

	curr := ws.list.Head()
	for curr != nil {
		items = append(items, curr.Value())
		curr = curr.Next()
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Weight > items[j].Weight
	})

	return items
}

// Keys returns a snapshot of all keys ordered by descending weight,
// highest weighted key first.
func (ws *WeightedSet[K]) Keys() []K {
	items := ws.Items()
	keys := make([]K, len(items))
	for i := range items {
		keys[i] = items[i].Key
	}

	return keys
}

// MaxWeight returns the largest weight in the set, or 0 when it is empty.
func (ws *WeightedSet[K]) MaxWeight() float64 {
	var max float64

	curr := ws.list.Head()
	for curr != nil {
		if w := curr.Value().Weight; w > max {
			max = w
		}
		curr = curr.Next()
	}

	return max
}

// TotalWeight returns the sum of all weights in the set.
func (ws *WeightedSet[K]) TotalWeight() float64 {
	var total float64

	curr := ws.list.Head()
	for curr != nil {
		total += curr.Value().Weight
		curr = curr.Next()
	}

	return total
}

func (ws *WeightedSet[K]) Len() int {
	return len(ws.m)
}

// ForEach walks the set in insertion order.
func (ws *WeightedSet[K]) ForEach(f ForEachFn[K]) {
	curr := ws.list.Head()
	order := 0
	for curr != nil {
		p := curr.Value()
		f(p.Key, p.Weight, order)
		curr = curr.Next()
		order++
	}
}

// Pairs streams the key/weight pairs in insertion order until the set is
// exhausted or ctx is cancelled.
func (ws *WeightedSet[K]) Pairs(ctx context.Context) <-chan Pair[K] {
	resultCh := make(chan Pair[K])

	go func() {
		defer close(resultCh)

		curr := ws.list.Head()
		for curr != nil {
			if ctx.Err() != nil {
				return
			}

			resultCh <- curr.Value()
			curr = curr.Next()
		}
	}()

	return resultCh
}
