package inmemdb

import (
	"cmp"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/shule/core"
)

// comparator compares two rows on one field.
type comparator[T any] func(a, b T) int

func byString[T any](get func(T) string) comparator[T] {
	return func(a, b T) int { return strings.Compare(strings.ToLower(get(a)), strings.ToLower(get(b))) }
}

func byFloat[T any](get func(T) float64) comparator[T] {
	return func(a, b T) int { return cmp.Compare(get(a), get(b)) }
}

func byTime[T any](get func(T) time.Time) comparator[T] {
	return func(a, b T) int { return get(a).Compare(get(b)) }
}

// sortRows orders rows like an ORDER BY built from ordering; unknown fields are ignored
// and fallback breaks ties.
func sortRows[T any](rows []T, ordering []core.DBOrdering, fields map[string]comparator[T], fallback comparator[T]) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			compare, ok := fields[ord.Field]
			if !ok {
				continue
			}
			c := compare(rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return fallback(rows[i], rows[j]) < 0
	})
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
