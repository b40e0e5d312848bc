package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ondemand_os/types"
)

func TestTxStatusCacheRespectsPriority(t *testing.T) {
	c := NewTxStatusCache(10)
	hash := []byte{1}

	assert.True(t, c.Update(types.NewTxResponse(hash, types.StatelessValid, "")))
	assert.True(t, c.Update(types.NewTxResponse(hash, types.Committed, "")))
	assert.False(t, c.Update(types.NewTxResponse(hash, types.StatelessValid, "")), "must not downgrade")
	assert.Equal(t, types.Committed, c.Get(hash).Status)

	assert.True(t, c.Update(types.NewTxResponse(hash, types.StatefulFailed, "bad")))
	assert.Equal(t, "bad", c.Get(hash).ErrorMessage)
}

func TestTxStatusCacheEvictsOldest(t *testing.T) {
	c := NewTxStatusCache(2)
	for i := byte(0); i < 3; i++ {
		c.Update(types.NewTxResponse([]byte{i}, types.StatelessValid, ""))
	}

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, types.NotReceived, c.Get([]byte{0}).Status)
	assert.Equal(t, types.StatelessValid, c.Get([]byte{2}).Status)
}

func TestNilTxStatusCache(t *testing.T) {
	c := NewTxStatusCache(0)
	assert.Nil(t, c)
	assert.False(t, c.Update(types.NewTxResponse([]byte{1}, types.Committed, "")))
	assert.Equal(t, types.NotReceived, c.Get([]byte{1}).Status)
	assert.Zero(t, c.Len())
}
