package regbloom

import (
	"math"

	"github.com/pkg/errors"
)

// sizing is the result of one sizing pass: the filter bit length to
// allocate and the number of salts to activate.
type sizing struct {
	bitsCount  uint
	saltsCount int
}

// estimateSizing picks, for itemsCount stored items and a target error
// rate, the salt count k in [1, poolSize] that minimizes the required
// filter length m_k = -k*n / ln(1 - rate^(1/k)). Ties keep the smallest k.
// The resulting length never falls below minLength nor below prevLength,
// so the filter only ever grows across rebuilds.
func estimateSizing(itemsCount int, errorRate float64, poolSize int, minLength, prevLength uint) (sizing, error) {
	if itemsCount == 0 {
		return sizing{}, errors.Wrap(ErrConfiguration, "no items to size the filter for")
	}
	if poolSize == 0 {
		return sizing{}, errors.Wrap(ErrConfiguration, "salts are not set")
	}
	if errorRate <= 0 || errorRate >= 1 {
		return sizing{}, errors.Wrap(ErrConfiguration, "error rate is not set")
	}

	bestK := 0
	bestM := math.Inf(1)
	for k := 1; k <= poolSize; k++ {
		m := -float64(k) * float64(itemsCount) / math.Log(1-math.Pow(errorRate, 1/float64(k)))
		if m < bestM {
			bestM = m
			bestK = k
		}
	}

	bitsCount := uint(math.Floor(bestM)) + 1
	if bitsCount < minLength {
		bitsCount = minLength
	}
	if bitsCount < prevLength {
		bitsCount = prevLength
	}
	return sizing{bitsCount: bitsCount, saltsCount: bestK}, nil
}
