package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextTag(t *testing.T) {
	cases := []struct {
		highest string
		want    string
	}{
		{"", "0001"},
		{"0000", "0001"},
		{"0001", "0002"},
		{"0009", "000A"},
		{"00FF", "0100"},
		{"0FFF", "1000"},
		{"FFFE", "FFFF"},
		{"FFFF", "0000"}, // wraps modulo 0x10000
		{"abcd", "ABCE"}, // lowercase input, uppercase output
		{"garbage", "0001"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextTag(tc.highest), "highest %q", tc.highest)
	}
}

func TestNextTag_FixedWidth(t *testing.T) {
	tag := ""
	for i := 0; i < 300; i++ {
		tag = NextTag(tag)
		assert.Len(t, tag, 4)
	}
	assert.Equal(t, "012C", tag)
}
