package extract

import (
	"sync"

	"deforest/src/source"
)

// All extracts every source concurrently. Extraction of one source touches
// no shared state, so the fan-out is purely for throughput; results come
// back in input order so downstream phases stay deterministic.
func All(sources []*source.Source, dialect Dialect) []*Result {
	results := make([]*Result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src *source.Source) {
			defer wg.Done()
			results[i] = New(dialect).Extract(src)
		}(i, src)
	}
	wg.Wait()

	return results
}
