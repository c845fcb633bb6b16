package lognormalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlainTextClustersUntilSizeThreshold(t *testing.T) {
	idx := NewIndexProvider()
	n := newPlainTextNormalizer(idx, plainTextConfig{sizeThreshold: 10})

	patches := n.ProcessStdout([]byte("Hello "))
	require.Len(t, patches, 2)
	require.Equal(t, OpAdd, patches[0].Op)
	require.Equal(t, "/entries/0", patches[0].Path)
	require.Equal(t, OpReplace, patches[1].Op)

	patches = n.ProcessStdout([]byte("world!"))
	require.Equal(t, OpReplace, patches[len(patches)-1].Op)
	require.Equal(t, "/entries/0", patches[len(patches)-1].Path)

	// Threshold crossed: the next write opens a new entry.
	patches = n.ProcessStdout([]byte("next"))
	require.Equal(t, OpAdd, patches[0].Op)
	require.Equal(t, "/entries/1", patches[0].Path)
}

func TestPlainTextBoundaryPredicateVetoesSplit(t *testing.T) {
	idx := NewIndexProvider()
	n := newPlainTextNormalizer(idx, plainTextConfig{
		sizeThreshold:     4,
		boundaryPredicate: claudeBoundaryPredicate,
	})

	// Exceeds threshold but does not end in a newline: predicate vetoes
	// the split, so the entry stays open.
	n.ProcessStdout([]byte("abcdef"))
	patches := n.ProcessStdout([]byte("ghi"))
	require.Equal(t, "/entries/0", patches[len(patches)-1].Path)
	require.Equal(t, OpReplace, patches[len(patches)-1].Op)
}

func TestStreamJSONParsesKnownType(t *testing.T) {
	idx := NewIndexProvider()
	n := newStreamJSONNormalizer(idx, streamJSONMappings[AgentOpenCode], plainTextConfig{sizeThreshold: 8 * 1024})

	patches := n.ProcessStdout([]byte(`{"type":"assistant","sessionID":"sess-1","text":"hi there"}` + "\n"))
	require.Len(t, patches, 1)
	require.Equal(t, OpAdd, patches[0].Op)
	require.Equal(t, "/entries/0", patches[0].Path)
	require.Equal(t, "sess-1", n.SessionID())
}

func TestStreamJSONFallsBackOnUnparseableLine(t *testing.T) {
	idx := NewIndexProvider()
	n := newStreamJSONNormalizer(idx, streamJSONMappings[AgentOpenCode], plainTextConfig{sizeThreshold: 8 * 1024})

	patches := n.ProcessStdout([]byte("not json at all\n"))
	require.NotEmpty(t, patches)
	require.Equal(t, OpAdd, patches[0].Op)
}

func TestNewDispatchesByAgentKind(t *testing.T) {
	sj := New(AgentOpenCode, nil)
	_, ok := sj.(*streamJSONNormalizer)
	require.True(t, ok)

	pt := New(AgentGemini, nil)
	_, ok = pt.(*plainTextNormalizer)
	require.True(t, ok)
}

func TestNewMapsClaudeToStreamJSON(t *testing.T) {
	n := New(AgentClaude, nil)
	sj, ok := n.(*streamJSONNormalizer)
	require.True(t, ok, "Claude's stdout must use the stream-JSON strategy, not plain-text")

	patches := sj.ProcessStdout([]byte(`{"type":"assistant","sessionID":"sess-1","text":"hi"}` + "\n"))
	require.Len(t, patches, 1)
	require.Equal(t, OpAdd, patches[0].Op)

	// Claude's idle gap (2s) still applies via the fallback path used for
	// stderr and unparseable stdout lines.
	require.Equal(t, 2*time.Second, n.IdleTimeout())
}

func TestNewResumesIndexFromExistingPatches(t *testing.T) {
	existing := []Patch{
		addEntry(0, NormalizedEntry{Type: EntryTypeAssistant, Content: "a"}),
		addEntry(1, NormalizedEntry{Type: EntryTypeAssistant, Content: "b"}),
	}
	n := New(AgentGemini, existing).(*plainTextNormalizer)
	require.Equal(t, 2, n.idx.Peek())
}
