package carrier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseEstimatedDelivery(t *testing.T) {
	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-01-10",
		"10.01.2024",
		"2024-01-10 18:30:00",
		"10.01.2024 18:30:00",
	} {
		got, err := ParseEstimatedDelivery(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestParseEstimatedDelivery_Bad(t *testing.T) {
	_, err := ParseEstimatedDelivery("next tuesday")
	require.Error(t, err)
}

func TestFailure(t *testing.T) {
	r := Failure("boom")
	require.False(t, r.Success)
	require.Equal(t, []string{"boom"}, r.Errors)
	require.Empty(t, r.Data)
}
