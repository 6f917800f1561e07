package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var closes = []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}

func TestMA(t *testing.T) {
	ma, err := MA(closes, 5)
	require.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)

	_, err = MA(closes, 0)
	assert.Error(t, err)
	_, err = MA(closes[:2], 3)
	assert.Error(t, err)
}

func TestSimpleMAStreaming(t *testing.T) {
	t.Run("full window", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "SMA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(closes[0])
		ma.Update(closes[1])
		assert.False(t, ma.Ready())

		ma.Update(closes[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 0.001)

		ma.Update(closes[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 0.001)
	})

	t.Run("partial window", func(t *testing.T) {
		ma := NewPartialMA(3)
		assert.Equal(t, 1, ma.Warmup())

		ma.Update(closes[0])
		assert.True(t, ma.Ready())
		assert.Equal(t, 102.0, ma.Value())

		ma.Update(closes[1])
		assert.InDelta(t, 103.5, ma.Value(), 1e-9)
	})

	t.Run("reset", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(closes[0])
		ma.Update(closes[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		ma := NewMA(4)
		for _, c := range closes {
			ma.Update(c)
		}
		batch, err := MA(closes, 4)
		require.NoError(t, err)
		assert.InDelta(t, batch, ma.Value(), 1e-9)
	})
}

func TestAllTimeHigh(t *testing.T) {
	ath := NewAllTimeHigh()
	assert.False(t, ath.Ready())

	seq := []float64{50, 40, 60, 55, 60, 30}
	want := []float64{50, 50, 60, 60, 60, 60}
	for i, c := range seq {
		ath.Update(c)
		assert.Equal(t, want[i], ath.Value())
	}

	ath.Reset()
	assert.False(t, ath.Ready())
}
