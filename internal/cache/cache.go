// Package cache holds the hot-path LRU caches. Links and per-link rule
// configuration are read on every click but written rarely, so both live
// behind a short TTL and are invalidated explicitly on write.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zhortlabs/zhort/internal/models"
)

type LinkCache struct {
	c *expirable.LRU[string, *models.Link]
}

func NewLinkCache(size int, ttl time.Duration) *LinkCache {
	return &LinkCache{c: expirable.NewLRU[string, *models.Link](size, nil, ttl)}
}

func (lc *LinkCache) Get(code string) (*models.Link, bool) {
	return lc.c.Get(code)
}

func (lc *LinkCache) Set(code string, link *models.Link) {
	lc.c.Add(code, link)
}

func (lc *LinkCache) Invalidate(code string) {
	lc.c.Remove(code)
}

// LinkConfig bundles the per-link policy configuration read on every
// resolution. Variant rows are deliberately not cached: their counters move
// with every selection.
type LinkConfig struct {
	Schedule *models.Schedule
	Rules    []models.RedirectRule
}

type ConfigCache struct {
	c *expirable.LRU[int64, *LinkConfig]
}

func NewConfigCache(size int, ttl time.Duration) *ConfigCache {
	return &ConfigCache{c: expirable.NewLRU[int64, *LinkConfig](size, nil, ttl)}
}

func (cc *ConfigCache) Get(linkID int64) (*LinkConfig, bool) {
	return cc.c.Get(linkID)
}

func (cc *ConfigCache) Set(linkID int64, cfg *LinkConfig) {
	cc.c.Add(linkID, cfg)
}

func (cc *ConfigCache) Invalidate(linkID int64) {
	cc.c.Remove(linkID)
}
