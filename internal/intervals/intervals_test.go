package intervals

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnion(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    []Interval
		expected []Interval
	}{
		{
			name:     "empty",
			input:    nil,
			expected: nil,
		},
		{
			name:     "single",
			input:    []Interval{{3, 7}},
			expected: []Interval{{3, 7}},
		},
		{
			name:     "overlapping",
			input:    []Interval{{0, 5}, {3, 10}},
			expected: []Interval{{0, 10}},
		},
		{
			name:     "touching",
			input:    []Interval{{0, 5}, {6, 10}},
			expected: []Interval{{0, 10}},
		},
		{
			name:     "disjoint",
			input:    []Interval{{0, 5}, {7, 10}},
			expected: []Interval{{0, 5}, {7, 10}},
		},
		{
			name:     "unsorted with containment",
			input:    []Interval{{8, 9}, {0, 10}, {2, 3}},
			expected: []Interval{{0, 10}},
		},
		{
			name:     "duplicates",
			input:    []Interval{{1, 4}, {1, 4}, {1, 4}},
			expected: []Interval{{1, 4}},
		},
		{
			name:     "zero start touching",
			input:    []Interval{{0, 0}, {1, 1}, {3, 3}},
			expected: []Interval{{0, 1}, {3, 3}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, Union(tc.input))
		})
	}
}

func TestUnion_Idempotent(t *testing.T) {
	t.Parallel()

	input := []Interval{{5, 9}, {0, 3}, {10, 12}, {2, 6}}
	once := Union(input)
	require.Equal(t, once, Union(once))
}

func TestIntersectionMany(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		lists    [][]Interval
		expected []Interval
	}{
		{
			name:     "no lists",
			lists:    nil,
			expected: nil,
		},
		{
			name:     "one empty list kills the intersection",
			lists:    [][]Interval{{{0, 10}}, {}},
			expected: nil,
		},
		{
			name:     "identity for single list",
			lists:    [][]Interval{{{0, 5}, {8, 10}}},
			expected: []Interval{{0, 5}, {8, 10}},
		},
		{
			name:     "self intersection",
			lists:    [][]Interval{{{0, 5}, {8, 10}}, {{0, 5}, {8, 10}}},
			expected: []Interval{{0, 5}, {8, 10}},
		},
		{
			name:     "partial overlap",
			lists:    [][]Interval{{{0, 10}}, {{5, 15}}},
			expected: []Interval{{5, 10}},
		},
		{
			name:     "disjoint lists",
			lists:    [][]Interval{{{0, 4}}, {{5, 9}}},
			expected: nil,
		},
		{
			name:     "fragmented against solid",
			lists:    [][]Interval{{{0, 5}, {6, 10}}, {{0, 10}}},
			expected: []Interval{{0, 10}},
		},
		{
			name:     "three lists",
			lists:    [][]Interval{{{0, 100}}, {{10, 50}, {60, 90}}, {{20, 70}}},
			expected: []Interval{{20, 50}, {60, 70}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.expected, IntersectionMany(tc.lists))
		})
	}
}

func TestIntersectionMany_EqualsUnionForSingleList(t *testing.T) {
	t.Parallel()

	list := []Interval{{0, 3}, {5, 9}}
	require.Equal(t, Union(list), IntersectionMany([][]Interval{list}))
	require.Equal(t, Union(list), IntersectionMany([][]Interval{list, list}))
}
