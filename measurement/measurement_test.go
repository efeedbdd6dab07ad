package measurement

import (
	"testing"

	"github.com/c360/sttp/ticks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsToNormal(t *testing.T) {
	m := New(uuid.New(), 1.5, ticks.Now())
	assert.Equal(t, Normal, m.Flags)
}

func TestFlagsHas(t *testing.T) {
	f := BadDataFlag | SuspectTimeFlag
	assert.True(t, f.Has(BadDataFlag))
	assert.True(t, f.Has(SuspectTimeFlag))
	assert.False(t, f.Has(CalculatedValueFlag))
	assert.True(t, f.Has(BadDataFlag|SuspectTimeFlag))
}

func TestBatchBySignalID(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	batch := Batch{
		New(a, 1, 0),
		New(b, 2, 1),
		New(a, 3, 2),
	}
	grouped := batch.BySignalID()
	assert.Len(t, grouped[a], 2)
	assert.Len(t, grouped[b], 1)
}
