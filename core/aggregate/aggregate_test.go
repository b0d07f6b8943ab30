package aggregate

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassRate(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		threshold float64
		want      float64
	}{
		{name: "empty", values: nil, threshold: 40, want: 0},
		{name: "all pass", values: []float64{40, 50, 100}, threshold: 40, want: 100},
		{name: "none pass", values: []float64{1, 2, 39.9}, threshold: 40, want: 0},
		{name: "mixed", values: []float64{35, 40, 85, 100}, threshold: 40, want: 75},
		{name: "one third", values: []float64{10, 50, 20}, threshold: 40, want: 33.3},
		{name: "two thirds", values: []float64{60, 50, 20}, threshold: 40, want: 66.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PassRate(tt.values, tt.threshold))
		})
	}
}

func TestPassRate_random(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := rnd.Intn(50) + 1
		values := make([]float64, n)
		var k int
		for j := range values {
			values[j] = float64(rnd.Intn(101))
			if values[j] >= 40 {
				k++
			}
		}
		assert.Equal(t, Round1(float64(k)/float64(n)*100), PassRate(values, 40))
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 100.0, Percentage(100, 100))
	assert.Equal(t, 100.0, Percentage(37.5, 37.5))
	assert.Equal(t, 0.0, Percentage(10, 0))
	assert.Equal(t, 33.3, Round1(Percentage(1, 3)))

	// monotonic in value for a fixed max
	prev := -1.0
	for v := 0.0; v <= 75; v += 0.5 {
		p := Percentage(v, 75)
		assert.Greater(t, p, prev)
		prev = p
	}
}

func TestMinMax(t *testing.T) {
	_, _, err := MinMax(nil)
	assert.Equal(t, ErrEmpty, err)

	min, max, err := MinMax([]float64{35, 40, 85, 100})
	require.NoError(t, err)
	assert.Equal(t, 35.0, min)
	assert.Equal(t, 100.0, max)
}

func TestSummarize_examScenario(t *testing.T) {
	s := Summarize([]float64{35, 40, 85, 100}, 40)
	assert.Equal(t, Summary{
		Count:    4,
		Passed:   3,
		Failed:   1,
		PassRate: 75.0,
		Average:  65.0,
		Highest:  100,
		Lowest:   35,
	}, s)

	assert.Equal(t, Summary{}, Summarize(nil, 40))
}

func TestGroupSum_keepsFirstOccurrenceOrder(t *testing.T) {
	type row struct {
		student string
		marks   float64
	}
	rows := []row{{"zoe", 10}, {"adam", 5}, {"zoe", 7}, {"mia", 1}, {"adam", 2}}
	got := GroupSum(rows, func(r row) string { return r.student }, func(r row) float64 { return r.marks })
	assert.Equal(t, []Subtotal[string]{
		{Key: "zoe", Count: 2, Total: 17},
		{Key: "adam", Count: 2, Total: 7},
		{Key: "mia", Count: 1, Total: 1},
	}, got)
}

func TestDistribution(t *testing.T) {
	got := Distribution([]float64{95, 80, 79.9, 65, 41, 12}, GradeBands)
	counts := make(map[string]int)
	for _, b := range got {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 1, "D": 0, "E": 1, "F": 1}, counts)
	assert.Equal(t, "C", Classify(65, GradeBands))
}

func TestSumDecimal(t *testing.T) {
	got := SumDecimal(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.2"))
	assert.True(t, got.Equal(decimal.RequireFromString("0.3")))
}
