// SPDX-License-Identifier: MIT

package recovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want Category
	}{
		{"websocket: close 1006 (abnormal closure)", CategoryPushChannel},
		{"dial tcp 10.0.0.1:443: connection refused", CategoryNetwork},
		{"fetch failed after 3 attempts", CategoryNetwork},
		{"video element error: MEDIA_ERR_DECODE", CategoryMedia},
		{"unsupported codec in stream 0", CategoryMedia},
		{"pdf render worker crashed", CategoryDocument},
		{"asset 01H8 not found", CategoryContent},
		{"playlist validation failed", CategoryContent},
		{"something else entirely", CategoryGeneric},
		// Push channel markers win over the network ones they overlap with.
		{"websocket dial tcp: timeout", CategoryPushChannel},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(errors.New(tt.msg)))
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Equal(t, CategoryGeneric, Classify(nil))
}

func TestEveryCategoryHasHint(t *testing.T) {
	for _, c := range []Category{
		CategoryNetwork, CategoryContent, CategoryPushChannel,
		CategoryMedia, CategoryDocument, CategoryGeneric,
	} {
		assert.NotEmpty(t, c.Hint())
	}
}
