package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Portland":         "portland",
		"  New York City ": "new_york_city",
		"Saint-Étienne":    "saint_étienne",
		"Washington, D.C.": "washington_d_c",
		"":                 "",
		"--":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slug(in), in)
	}
}
