package link

import (
	"context"
	"sync"
)

type merged struct {
	lines chan []byte
}

func (m *merged) Lines() <-chan []byte {
	return m.lines
}

// Merge fans several sources into one. Order is preserved per source only.
// The merged channel closes once every source has closed or ctx is cancelled.
func Merge(ctx context.Context, sources ...Source) Source {
	if len(sources) == 1 {
		return sources[0]
	}

	m := &merged{lines: make(chan []byte)}
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			for line := range src.Lines() {
				select {
				case m.lines <- line:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(m.lines)
	}()
	return m
}
