package miner

import "math"

// supportEpsilon absorbs float noise in minSupport*n, e.g. 0.7*10 = 7.000000000000001.
const supportEpsilon = 1e-9

// Threshold converts a fractional minimum support into the minimum
// transaction count an itemset needs to be frequent:
//
//	max(1, ceil(minSupport*n))
//
// An itemset no transaction contains is never frequent, so minSupport <= 0
// keeps every observed itemset. minSupport > 1 yields n+1, which nothing
// can reach.
func Threshold(minSupport float64, n int) int64 {
	if minSupport > 1 {
		return int64(n) + 1
	}
	t := int64(math.Ceil(minSupport*float64(n) - supportEpsilon))
	if t < 1 {
		t = 1
	}
	return t
}
