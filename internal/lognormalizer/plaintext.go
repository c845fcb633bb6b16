package lognormalizer

import (
	"strings"
	"sync"
	"time"
)

// plainTextConfig controls the clustering strategy spec §4.2 describes for
// agents whose CLI does not emit structured JSON: bytes are accumulated
// into one open entry until either sizeThreshold is reached or the stream
// goes idle past timeGap, at which point the entry is closed (replace) and
// a new one opened on the next byte. Grounded on the buffering style of
// the teacher's claudecode_backend.go stdout reader loop.
type plainTextConfig struct {
	sizeThreshold int           // bytes; 0 disables size-based flush
	timeGap       time.Duration // 0 disables idle-based flush
	// boundaryPredicate, if set, is consulted when sizeThreshold is reached
	// and may veto closing the entry (spec §4.2 "message_boundary_predicate(lines) ->
	// {split_i | incomplete_content}"): returning false means the content
	// looks mid-message and should keep accumulating. Flush closes the
	// entry without consulting it, so with sizeThreshold 0 it never applies.
	boundaryPredicate func(content string) bool
}

func plainTextConfigFor(kind AgentKind) plainTextConfig {
	switch kind {
	case AgentClaude:
		// Claude's stdout is stream-JSON (streamJSONMappings[AgentClaude]);
		// this config backs only its stderr fallback path and the
		// stream-JSON normalizer's own unparseable-line fallback, both of
		// which cluster on a 2s idle gap.
		return plainTextConfig{timeGap: 2 * time.Second, boundaryPredicate: claudeBoundaryPredicate}
	case AgentGemini, AgentQwen, AgentAmp, AgentDroid:
		return plainTextConfig{sizeThreshold: 8 * 1024, timeGap: 2 * time.Second}
	case AgentCopilot:
		return plainTextConfig{timeGap: 1500 * time.Millisecond}
	default:
		return plainTextConfig{sizeThreshold: 8 * 1024}
	}
}

// claudeBoundaryPredicate avoids splitting mid-sentence on an obvious
// continuation (content not yet ending a line).
func claudeBoundaryPredicate(content string) bool {
	return strings.HasSuffix(content, "\n")
}

type plainTextNormalizer struct {
	mu        sync.Mutex
	idx       *IndexProvider
	cfg       plainTextConfig
	open      bool
	openIdx   int
	content   strings.Builder
	lastWrite time.Time
	sessionID string
	messageID string
}

func newPlainTextNormalizer(idx *IndexProvider, cfg plainTextConfig) *plainTextNormalizer {
	return &plainTextNormalizer{idx: idx, cfg: cfg}
}

func (n *plainTextNormalizer) ProcessStdout(chunk []byte) []Patch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accumulate(chunk, EntryTypeAssistant)
}

func (n *plainTextNormalizer) processStderrAsErrorMessage(chunk []byte) []Patch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.accumulate(chunk, EntryTypeErrorMessage)
}

func (n *plainTextNormalizer) ProcessStderr(chunk []byte) []Patch {
	return n.processStderrAsErrorMessage(chunk)
}

func (n *plainTextNormalizer) accumulate(chunk []byte, entryType EntryType) []Patch {
	var out []Patch
	if !n.open {
		n.openIdx = n.idx.Next()
		n.open = true
		n.content.Reset()
		out = append(out, addEntry(n.openIdx, NormalizedEntry{Type: entryType, Content: ""}))
	}
	n.content.Write(chunk)
	n.lastWrite = time.Now()

	out = append(out, replaceEntry(n.openIdx, NormalizedEntry{Type: entryType, Content: n.content.String()}))

	if n.cfg.sizeThreshold > 0 && n.content.Len() >= n.cfg.sizeThreshold {
		if n.cfg.boundaryPredicate == nil || n.cfg.boundaryPredicate(n.content.String()) {
			n.open = false
		}
	}
	return out
}

// Flush closes any currently-open entry; called on idle past timeGap or on
// stream close.
func (n *plainTextNormalizer) Flush() []Patch {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.open {
		return nil
	}
	n.open = false
	return nil
}

// IdleTimeout returns the configured time_gap (0 disables idle flush).
func (n *plainTextNormalizer) IdleTimeout() time.Duration {
	return n.cfg.timeGap
}

func (n *plainTextNormalizer) SessionID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessionID
}

func (n *plainTextNormalizer) MessageID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messageID
}
