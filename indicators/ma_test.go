package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleMA(t *testing.T) {
	m := NewSMA(3)
	assert.Equal(t, "SMA(3)", m.Name())

	m.Update(1)
	m.Update(2)
	assert.False(t, m.Ready())
	assert.InDelta(t, 0, m.Value(), 1e-12)

	m.Update(3)
	assert.True(t, m.Ready())
	assert.InDelta(t, 2.0, m.Value(), 1e-12)

	// Window slides: (2+3+7)/3
	m.Update(7)
	assert.InDelta(t, 4.0, m.Value(), 1e-12)

	m.Reset()
	assert.False(t, m.Ready())
}

func TestExponentialMA(t *testing.T) {
	e := NewEMA(3)
	assert.Equal(t, "EMA(3)", e.Name())

	e.Update(1)
	e.Update(2)
	assert.False(t, e.Ready())

	// Warmup seeds with the simple average.
	e.Update(3)
	assert.True(t, e.Ready())
	assert.InDelta(t, 2.0, e.Value(), 1e-12)

	// multiplier = 2/(3+1) = 0.5: (6-2)*0.5 + 2 = 4
	e.Update(6)
	assert.InDelta(t, 4.0, e.Value(), 1e-12)

	e.Reset()
	assert.False(t, e.Ready())
	assert.InDelta(t, 0, e.Value(), 1e-12)
}
