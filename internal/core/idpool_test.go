package core

import (
	"testing"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDPool_ReusesLowestFreed(t *testing.T) {
	p := NewIDPool(0)

	var ids []int
	for i := 0; i < 4; i++ {
		id, err := p.Get()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, ids)

	require.NoError(t, p.Free(3))
	require.NoError(t, p.Free(2))
	assert.Equal(t, 2, p.InUse())

	id, _ := p.Get()
	assert.Equal(t, 2, id)
	id, _ = p.Get()
	assert.Equal(t, 3, id)
	id, _ = p.Get()
	assert.Equal(t, 5, id)
}

func TestIDPool_Errors(t *testing.T) {
	p := NewIDPool(2)
	_, _ = p.Get()
	_, _ = p.Get()

	_, err := p.Get()
	assert.True(t, errs.HasCode(err, errs.CodeIDPoolExhausted))

	assert.True(t, errs.HasCode(p.Free(7), errs.CodeIDNotReserved))
	require.NoError(t, p.Free(1))
	assert.True(t, errs.HasCode(p.Free(1), errs.CodeIDNotReserved))

	id, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}
