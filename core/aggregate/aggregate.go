// Package aggregate derives summary statistics from flat lists of records.
// Every function is a pure fold; nothing is rounded until Round1 is applied at render time.
package aggregate

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrEmpty is returned by folds that are undefined on an empty list.
var ErrEmpty = errors.New("no values to aggregate")

// Round1 rounds v half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// PassRate returns the share of values >= threshold as a percentage rounded to one decimal.
// An empty list has a pass rate of 0.
func PassRate(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var passed int
	for _, v := range values {
		if v >= threshold {
			passed++
		}
	}
	return Round1(float64(passed) / float64(len(values)) * 100)
}

// Average returns the mean of values rounded to one decimal; 0 for an empty list.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Round1(Sum(values) / float64(len(values)))
}

// Sum adds up values; it is 0 for none.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Percentage returns value as a percentage of max, unrounded. A non-positive max yields 0.
func Percentage(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return value / max * 100
}

// MinMax scans values for their extremes. Callers must handle ErrEmpty.
func MinMax(values []float64) (min, max float64, err error) {
	if len(values) == 0 {
		return 0, 0, ErrEmpty
	}
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, nil
}

// Group is one partition produced by GroupBy.
type Group[K comparable, R any] struct {
	Key     K
	Records []R
}

// GroupBy partitions records by key. Groups come out in order of first occurrence.
func GroupBy[K comparable, R any](records []R, key func(R) K) []Group[K, R] {
	idx := make(map[K]int)
	groups := make([]Group[K, R], 0)
	for _, r := range records {
		k := key(r)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group[K, R]{Key: k})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// Subtotal is the sum of one group's values.
type Subtotal[K comparable] struct {
	Key   K
	Count int
	Total float64
}

// GroupSum sums val per key, in order of first occurrence.
func GroupSum[K comparable, R any](records []R, key func(R) K, val func(R) float64) []Subtotal[K] {
	groups := GroupBy(records, key)
	subs := make([]Subtotal[K], 0, len(groups))
	for _, g := range groups {
		st := Subtotal[K]{Key: g.Key, Count: len(g.Records)}
		for _, r := range g.Records {
			st.Total += val(r)
		}
		subs = append(subs, st)
	}
	return subs
}

// SumDecimal adds money amounts without float rounding.
func SumDecimal(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Band is a labelled lower bound (inclusive) of a distribution bucket.
type Band struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
}

// Bucket is the number of values that fell in a Band.
type Bucket struct {
	Band
	Count int `json:"count"`
}

// GradeBands are the percentage bands used by reports, highest first.
var GradeBands = []Band{
	{Label: "A", Min: 80},
	{Label: "B", Min: 70},
	{Label: "C", Min: 60},
	{Label: "D", Min: 50},
	{Label: "E", Min: 40},
	{Label: "F", Min: 0},
}

// Classify returns the label of the first band (highest first) whose Min <= v, or "".
func Classify(v float64, bands []Band) string {
	for _, b := range bands {
		if v >= b.Min {
			return b.Label
		}
	}
	return ""
}

// Distribution counts values per band. bands must be sorted by Min, highest first;
// values below every band are not counted.
func Distribution(values []float64, bands []Band) []Bucket {
	buckets := make([]Bucket, len(bands))
	for i, b := range bands {
		buckets[i].Band = b
	}
	for _, v := range values {
		for i, b := range bands {
			if v >= b.Min {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// Summary is the standard score summary shown on reports.
type Summary struct {
	Count    int     `json:"count"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
	Average  float64 `json:"average"`
	Highest  float64 `json:"highest"`
	Lowest   float64 `json:"lowest"`
}

// Summarize folds values into a Summary. Highest and Lowest stay 0 for an empty list.
func Summarize(values []float64, threshold float64) Summary {
	s := Summary{
		Count:    len(values),
		PassRate: PassRate(values, threshold),
		Average:  Average(values),
	}
	for _, v := range values {
		if v >= threshold {
			s.Passed++
		}
	}
	s.Failed = s.Count - s.Passed
	if min, max, err := MinMax(values); err == nil {
		s.Lowest, s.Highest = min, max
	}
	return s
}
