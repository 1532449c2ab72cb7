package controllers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParentID(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "NULL", "none"} {
		id, err := parseParentID(raw)
		require.NoError(t, err, raw)
		assert.Nil(t, id, raw)
	}

	id, err := parseParentID(" 17 ")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(17), *id)

	for _, raw := range []string{"0", "-3", "1.5", "abc"} {
		_, err := parseParentID(raw)
		assert.Error(t, err, raw)
	}
}

func TestRawParentID(t *testing.T) {
	cases := map[string]string{
		``:       "",
		`null`:   "",
		`12`:     "12",
		`"12"`:   "12",
		`""`:     "",
		`"null"`: "null",
	}
	for in, want := range cases {
		got, err := rawParentID(json.RawMessage(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", " ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
