package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		page, size int
		from, lim  int
	}{
		{1, 10, 0, 10},
		{3, 20, 40, 20},
		{0, 0, 0, 10},
		{2, 500, 10, 10},
		{-4, 5, 0, 5},
	}
	for _, tc := range cases {
		from, lim := Calculate(tc.page, tc.size)
		assert.Equal(t, tc.from, from)
		assert.Equal(t, tc.lim, lim)
	}
}
