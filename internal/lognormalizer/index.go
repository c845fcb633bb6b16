// Package lognormalizer transforms the raw stdout/stderr byte stream of one
// execution into an ordered sequence of JSON Patch operations over a
// virtual /entries/<i> object (spec §4.2), pushed back into the same
// messagestore.Store as JsonPatch entries. It is grounded on the
// line-delimited-JSON parsing the teacher's internal/coding/cli_backend.go
// does for OpenCode's stream, generalized into a per-agent-kind dispatch
// table, and on the chunk-buffering style of claudecode_backend.go for the
// plain-text clustering strategy.
package lognormalizer

import (
	"regexp"
	"sync"
)

// IndexProvider is a monotonic counter producing indices in call order
// (spec §4.3). It is cheap to share across the goroutines reading stdout
// and stderr of the same execution.
type IndexProvider struct {
	mu   sync.Mutex
	next int
}

func NewIndexProvider() *IndexProvider {
	return &IndexProvider{}
}

// Next returns the next index and advances the counter.
func (p *IndexProvider) Next() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.next
	p.next++
	return n
}

// Peek returns the index Next() would return without advancing.
func (p *IndexProvider) Peek() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

var addEntryPath = regexp.MustCompile(`^/entries/(\d+)$`)

// StartFrom resumes the counter after crash recovery: it scans all
// `add /entries/<n>` paths among existingPatches and resumes at max(n)+1.
func (p *IndexProvider) StartFrom(existingPatches []Patch) {
	max := -1
	for _, op := range existingPatches {
		if op.Op != OpAdd {
			continue
		}
		m := addEntryPath.FindStringSubmatch(op.Path)
		if m == nil {
			continue
		}
		n := 0
		for _, c := range m[1] {
			n = n*10 + int(c-'0')
		}
		if n > max {
			max = n
		}
	}
	p.mu.Lock()
	p.next = max + 1
	p.mu.Unlock()
}
