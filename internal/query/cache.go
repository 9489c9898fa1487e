package query

import (
	"fmt"

	"github.com/maypok86/otter"
)

// ResultPair is a single projected hit: the artefact's input and output
// text, with vector fields dropped.
type ResultPair struct {
	Input  string
	Output string
}

const cacheCapacity = 10_000

// resultCache is the ageless, advisory (indexName, queryText) -> hits cache.
// Concurrent reads are safe; writes are last-writer-wins, both guaranteed
// by otter's own internal synchronization.
type resultCache struct {
	cache otter.Cache[string, []ResultPair]
}

func newResultCache() (*resultCache, error) {
	c, err := otter.MustBuilder[string, []ResultPair](cacheCapacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("build result cache: %w", err)
	}
	return &resultCache{cache: c}, nil
}

func cacheKey(indexName, queryText string) string {
	return indexName + "\x00" + queryText
}

func (c *resultCache) get(indexName, queryText string) ([]ResultPair, bool) {
	return c.cache.Get(cacheKey(indexName, queryText))
}

func (c *resultCache) set(indexName, queryText string, hits []ResultPair) {
	c.cache.Set(cacheKey(indexName, queryText), hits)
}
