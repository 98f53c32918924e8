package sigmon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTripIsSticky(t *testing.T) {
	var m = New("test")
	require.False(t, m.Shutdown())

	m.Trip()
	require.True(t, m.Shutdown())

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("Done was not closed after Trip")
	}

	// A second trip is a no-op.
	m.Trip()
	require.True(t, m.Shutdown())
}
