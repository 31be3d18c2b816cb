package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDurationField(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
		bad  bool
	}{
		{raw: "", want: 0},
		{raw: " 5 ", want: 5 * time.Second},
		{raw: "1500ms", want: 1500 * time.Millisecond},
		{raw: "-1s", bad: true},
		{raw: "-3", bad: true},
		{raw: "soon", bad: true},
	}
	for _, tc := range cases {
		got, err := ParseDurationField("storage.busy_timeout", tc.raw)
		if tc.bad {
			require.Error(t, err, tc.raw)
			require.Contains(t, err.Error(), "storage.busy_timeout")
			continue
		}
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, got, tc.raw)
	}

	d, err := ParseDurationOrDefault("x", "0", time.Minute)
	require.NoError(t, err)
	require.Equal(t, time.Minute, d)
}
