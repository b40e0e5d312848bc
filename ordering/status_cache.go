package ordering

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"ondemand_os/types"
)

// TxStatusCache 记录最近交易的状态，状态只能被优先级更高的状态覆盖
type TxStatusCache struct {
	mtx   sync.Mutex
	cache *lru.Cache
}

// NewTxStatusCache returns nil if size is not positive; a nil cache records nothing.
func NewTxStatusCache(size int) *TxStatusCache {
	if size <= 0 {
		return nil
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil
	}
	return &TxStatusCache{cache: cache}
}

// Update stores resp unless a higher-priority status is already known.
// It reports whether resp was stored.
func (c *TxStatusCache) Update(resp *types.TxResponse) bool {
	if c == nil {
		return false
	}
	key := string(resp.TxHash)

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if v, ok := c.cache.Peek(key); ok {
		if v.(*types.TxResponse).ComparePriorities(resp) > 0 {
			return false
		}
	}
	c.cache.Add(key, resp)
	return true
}

// Get returns NotReceived for unknown hashes.
func (c *TxStatusCache) Get(hash []byte) *types.TxResponse {
	if c != nil {
		if v, ok := c.cache.Get(string(hash)); ok {
			return v.(*types.TxResponse)
		}
	}
	return types.NewTxResponse(hash, types.NotReceived, "")
}

func (c *TxStatusCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
