package solver

import "fmt"

// DefaultCombinationLimit caps the size of the search space.
const DefaultCombinationLimit = 1_000_000

// CountCombinations returns the number of count vectors spanned by bounds,
// i.e. the product of (bound+1). It fails with ErrTooManyCombinations as soon
// as the product exceeds limit. An empty bounds vector spans nothing.
func CountCombinations(bounds []int, limit int) (int, error) {
	if len(bounds) == 0 {
		return 0, nil
	}

	total := 1
	for _, bound := range bounds {
		radix := max(bound, 0) + 1
		// total*radix > limit without overflowing
		if total > limit || radix > limit/total {
			return 0, fmt.Errorf("%w: search space over %d bounded by %v", ErrTooManyCombinations, limit, bounds)
		}
		total *= radix
	}
	return total, nil
}

// GenerateAllCombinations enumerates every vector whose i-th coordinate lies in
// [0, bounds[i]], in lexicographic order with the last index varying fastest.
func GenerateAllCombinations(bounds []int, limit int) ([][]int, error) {
	total, err := CountCombinations(bounds, limit)
	if err != nil {
		return nil, err
	}

	results := make([][]int, 0, total)
	if total == 0 {
		return results, nil
	}

	odo := newOdometer(bounds, 0)
	for {
		results = append(results, odo.snapshot())
		if !odo.next() {
			break
		}
	}
	return results, nil
}

// odometer is a mixed-radix counter over a bounds vector.
type odometer struct {
	bounds []int
	digits []int
}

// newOdometer positions the counter at the given linear index.
func newOdometer(bounds []int, index int) *odometer {
	o := &odometer{
		bounds: bounds,
		digits: make([]int, len(bounds)),
	}
	for i := len(bounds) - 1; i >= 0 && index > 0; i-- {
		radix := max(bounds[i], 0) + 1
		o.digits[i] = index % radix
		index /= radix
	}
	return o
}

// next advances to the following vector and reports false once the counter wraps around.
func (o *odometer) next() bool {
	for i := len(o.digits) - 1; i >= 0; i-- {
		if o.digits[i] < o.bounds[i] {
			o.digits[i]++
			return true
		}
		o.digits[i] = 0
	}
	return false
}

func (o *odometer) snapshot() []int {
	out := make([]int, len(o.digits))
	copy(out, o.digits)
	return out
}
