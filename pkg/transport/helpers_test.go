package transport

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeClientID(t *testing.T) {
	testCases := []struct {
		id       string
		expected string
	}{
		{"worker_1", "worker_1"},
		{"my-host.local_w1", "my_host_local_w1"},
		{"", ""},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, sanitizeClientID(tc.id))
	}
}

func TestNewClientIDIsUniqueAndSafe(t *testing.T) {
	safe := regexp.MustCompile(`^[0-9A-Za-z_]+$`)
	a := NewClientID("w1")
	b := NewClientID("w1")
	require.NotEqual(t, a, b)
	require.Regexp(t, safe, a)
	require.Contains(t, a, "w1_")
}

func TestFirstError(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")
	require.NoError(t, firstError(nil))
	require.NoError(t, firstError([]error{nil, nil}))
	require.Equal(t, e1, firstError([]error{nil, e1, e2}))
}
