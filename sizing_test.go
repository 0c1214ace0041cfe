package regbloom

import (
	"testing"

	requireLib "github.com/stretchr/testify/require"
)

func TestEstimateSizing(t *testing.T) {
	testCases := []struct {
		name       string
		itemsCount int
		errorRate  float64
		poolSize   int
		minLength  uint
		prevLength uint
		bitsCount  uint
		saltsCount int
	}{
		{
			name:       "single salt",
			itemsCount: 1,
			errorRate:  0.01,
			poolSize:   1,
			minLength:  1,
			prevLength: 1,
			bitsCount:  100,
			saltsCount: 1,
		},
		{
			name:       "small pool is used in full",
			itemsCount: 1,
			errorRate:  0.01,
			poolSize:   3,
			minLength:  1,
			prevLength: 1,
			bitsCount:  13,
			saltsCount: 3,
		},
		{
			name:       "raw length below the minimum is clamped",
			itemsCount: 1,
			errorRate:  0.01,
			poolSize:   3,
			minLength:  20,
			prevLength: 20,
			bitsCount:  20,
			saltsCount: 3,
		},
		{
			name:       "large pool stops at the optimal salt count",
			itemsCount: 100,
			errorRate:  0.01,
			poolSize:   20,
			minLength:  1,
			prevLength: 1,
			bitsCount:  960,
			saltsCount: 7,
		},
		{
			name:       "previous length wins over a smaller estimate",
			itemsCount: 1,
			errorRate:  0.01,
			poolSize:   3,
			minLength:  1,
			prevLength: 5000,
			bitsCount:  5000,
			saltsCount: 3,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require := requireLib.New(t)
			sz, err := estimateSizing(tc.itemsCount, tc.errorRate, tc.poolSize, tc.minLength, tc.prevLength)
			require.NoError(err)
			require.Equal(tc.bitsCount, sz.bitsCount, "unexpected bits count")
			require.Equal(tc.saltsCount, sz.saltsCount, "unexpected salts count")
		})
	}
}

func TestEstimateSizingFailures(t *testing.T) {
	testCases := []struct {
		name       string
		itemsCount int
		errorRate  float64
		poolSize   int
	}{
		{name: "no items", itemsCount: 0, errorRate: 0.01, poolSize: 3},
		{name: "no salts", itemsCount: 10, errorRate: 0.01, poolSize: 0},
		{name: "zero error rate", itemsCount: 10, errorRate: 0, poolSize: 3},
		{name: "error rate of one", itemsCount: 10, errorRate: 1, poolSize: 3},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := estimateSizing(tc.itemsCount, tc.errorRate, tc.poolSize, 20, 20)
			requireLib.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestEstimateSizingGrowsWithItems(t *testing.T) {
	require := requireLib.New(t)
	prev := uint(1)
	for _, itemsCount := range []int{10, 100, 1000, 10000} {
		sz, err := estimateSizing(itemsCount, 0.001, 10, 1, prev)
		require.NoError(err)
		require.Greater(sz.bitsCount, prev, "bits count should grow with the items count")
		prev = sz.bitsCount
	}
}
