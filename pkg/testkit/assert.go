package testkit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONEqual compares two JSON documents ignoring key order and
// whitespace.
func AssertJSONEqual(t testing.TB, expected string, actual []byte) bool {
	t.Helper()

	var expVal, actVal any
	require.NoError(t, json.Unmarshal([]byte(expected), &expVal), "expected is not valid JSON")
	if !assert.NoError(t, json.Unmarshal(actual, &actVal), "actual is not valid JSON\nbody: %s", string(actual)) {
		return false
	}
	return assert.Equal(t, expVal, actVal)
}
