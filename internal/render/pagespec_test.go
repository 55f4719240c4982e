// SPDX-License-Identifier: MIT

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePageSpec(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		pageCount int
		want      []int
	}{
		{"single and range", "1,3-5", 6, []int{1, 3, 4, 5}},
		{"empty falls back to all", "", 6, []int{1, 2, 3, 4, 5, 6}},
		{"out of range clamps", "9", 6, []int{6}},
		{"zero clamps up", "0", 6, []int{1}},
		{"range clamped at both ends", "0-9", 3, []int{1, 2, 3}},
		{"duplicates collapse", "2,2,1-2", 4, []int{2, 1}},
		{"reversed range dropped", "5-3", 6, []int{1, 2, 3, 4, 5, 6}},
		{"garbage falls back to all", "abc", 4, []int{1, 2, 3, 4}},
		{"whitespace tolerated", " 1 , 3 - 4 ", 6, []int{1, 3, 4}},
		{"single page document", "", 1, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePageSpec(tt.spec, tt.pageCount))
		})
	}
}
