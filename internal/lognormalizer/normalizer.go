package lognormalizer

import "time"

// Normalizer consumes raw stdout/stderr chunks of one execution and emits
// Patch operations plus any side-channel SessionId/MessageId it discovers.
// One instance is constructed per agent kind per execution.
type Normalizer interface {
	// ProcessStdout consumes one chunk of stdout bytes, returning the
	// patches it produces (zero or more).
	ProcessStdout(chunk []byte) []Patch
	// ProcessStderr consumes one chunk of stderr bytes.
	ProcessStderr(chunk []byte) []Patch
	// Flush is called when the stream goes idle past any configured
	// time_gap, or on stream close, to finalize any still-open entry.
	Flush() []Patch
	// SessionID/MessageID return the most recently observed provider
	// session/message id, if any (empty string if none seen yet).
	SessionID() string
	MessageID() string
	// IdleTimeout returns the time_gap (spec §4.2) after which the
	// supervisor's pump loop should call Flush even though the child
	// process is still running; zero disables idle-based flushing.
	IdleTimeout() time.Duration
}

// AgentKind enumerates the nine coding-agent families named in spec §4.2.
type AgentKind string

const (
	AgentClaude   AgentKind = "claude"
	AgentCodex    AgentKind = "codex"
	AgentCursor   AgentKind = "cursor"
	AgentCopilot  AgentKind = "copilot"
	AgentGemini   AgentKind = "gemini"
	AgentAmp      AgentKind = "amp"
	AgentQwen     AgentKind = "qwen"
	AgentOpenCode AgentKind = "opencode"
	AgentDroid    AgentKind = "droid"
)

// New constructs the normalizer appropriate for kind, resuming index
// allocation at resumeFrom existing patches (crash recovery, §4.3).
func New(kind AgentKind, resumeFrom []Patch) Normalizer {
	idx := NewIndexProvider()
	idx.StartFrom(resumeFrom)

	if mapping, ok := streamJSONMappings[kind]; ok {
		// The fallback strategy used for this kind's stderr (and any
		// unparseable stdout line) keeps its own per-kind clustering
		// config — e.g. Claude's stderr still clusters on the 2s idle
		// gap plainTextConfigFor(AgentClaude) declares, even though
		// Claude's stdout itself goes through the stream-JSON path.
		return newStreamJSONNormalizer(idx, mapping, plainTextConfigFor(kind))
	}
	return newPlainTextNormalizer(idx, plainTextConfigFor(kind))
}
