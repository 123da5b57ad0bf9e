// Package extrema detects support and resistance levels as local minima and
// maxima of a price series.
package extrema

// Kind classifies an extremum as a price floor or ceiling.
type Kind string

const (
	Support    Kind = "support"
	Resistance Kind = "resistance"
)

// Point is a detected local extremum.
type Point struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
	Kind  Kind    `json:"kind"`
}

// DefaultWindow is the number of neighbors checked on each side.
const DefaultWindow = 5

// FindSupportResistance scans prices for local minima (supports) and maxima
// (resistances). A point qualifies when it is <= (resp. >=) every price
// within `window` positions on both sides. The support test runs first, so a
// flat run that satisfies both conditions is classified as support.
// Returns empty slices when len(prices) < 2*window+1.
func FindSupportResistance(prices []float64, window int) (supports, resistances []Point) {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(prices) < 2*window+1 {
		return nil, nil
	}

	for i := window; i < len(prices)-window; i++ {
		if isLocalMin(prices, i, window) {
			supports = append(supports, Point{Index: i, Price: prices[i], Kind: Support})
		} else if isLocalMax(prices, i, window) {
			resistances = append(resistances, Point{Index: i, Price: prices[i], Kind: Resistance})
		}
	}
	return supports, resistances
}

func isLocalMin(prices []float64, i, window int) bool {
	for j := 1; j <= window; j++ {
		if prices[i] > prices[i-j] || prices[i] > prices[i+j] {
			return false
		}
	}
	return true
}

func isLocalMax(prices []float64, i, window int) bool {
	for j := 1; j <= window; j++ {
		if prices[i] < prices[i-j] || prices[i] < prices[i+j] {
			return false
		}
	}
	return true
}
