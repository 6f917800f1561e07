package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	t.Parallel()

	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.Len(t, next, 26)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestAtAndTime(t *testing.T) {
	t.Parallel()

	when := time.Date(2024, 3, 15, 10, 30, 0, 123_000_000, time.UTC)
	s := At(when)

	got, err := Time(s)
	require.NoError(t, err)
	assert.True(t, when.Equal(got), "got %s", got)

	assert.Less(t, At(when), At(when.Add(time.Millisecond)))
}

func TestTimeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
