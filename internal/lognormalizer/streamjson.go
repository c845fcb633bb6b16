package lognormalizer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// rawEvent mirrors the shape of the teacher's cliEvent/cliTextPart/
// cliToolPart (internal/coding/cli_backend.go), generalized across agent
// kinds: each event carries a type discriminant, an optional provider
// session id, an optional message/reset id, and a free-form payload that
// per-kind field paths pull role/text/tool data out of.
type rawEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionID"`
	MessageID string          `json:"messageID"`
	Role      string          `json:"role"`
	Text      string          `json:"text"`
	ToolName  string          `json:"tool"`
	ToolInput json.RawMessage `json:"input"`
	Raw       json.RawMessage `json:"-"`
}

// streamJSONMapping adapts event `type` values (which differ per agent CLI)
// onto the canonical EntryType set of spec §4.2.
type streamJSONMapping struct {
	typeToEntry map[string]EntryType
}

var streamJSONMappings = map[AgentKind]streamJSONMapping{
	// Claude's --output-format stream-json default (spec §4.5's own
	// example executor params) emits this same system/assistant/user/
	// tool_use/tool_result/result vocabulary as the teacher's opencode
	// mapping (internal/coding/cli_backend.go's cliEvent shape).
	AgentClaude: {typeToEntry: map[string]EntryType{
		"system": EntryTypeSystem, "assistant": EntryTypeAssistant, "user": EntryTypeUser,
		"tool_use": EntryTypeToolUse, "tool_result": EntryTypeToolResult, "result": EntryTypeResult,
	}},
	AgentOpenCode: {typeToEntry: map[string]EntryType{
		"system": EntryTypeSystem, "assistant": EntryTypeAssistant, "user": EntryTypeUser,
		"tool_use": EntryTypeToolUse, "tool_result": EntryTypeToolResult, "result": EntryTypeResult,
	}},
	AgentCodex: {typeToEntry: map[string]EntryType{
		"system": EntryTypeSystem, "assistant": EntryTypeAssistant, "user": EntryTypeUser,
		"tool_use": EntryTypeToolUse, "tool_result": EntryTypeToolResult, "result": EntryTypeResult,
	}},
	AgentCursor: {typeToEntry: map[string]EntryType{
		"system": EntryTypeSystem, "assistant": EntryTypeAssistant, "user": EntryTypeUser,
		"tool_use": EntryTypeToolUse, "tool_result": EntryTypeToolResult, "result": EntryTypeResult,
	}},
}

// streamJSONNormalizer parses line-delimited JSON from stdout (spec §4.2
// "Stream-JSON normalizers"). Unparseable lines fall back to plain-text
// clustering for that line, per spec's explicit fallback rule.
type streamJSONNormalizer struct {
	mu        sync.Mutex
	idx       *IndexProvider
	mapping   streamJSONMapping
	buf       bytes.Buffer
	fallback  *plainTextNormalizer
	sessionID string
	messageID string
}

func newStreamJSONNormalizer(idx *IndexProvider, mapping streamJSONMapping, fallbackCfg plainTextConfig) *streamJSONNormalizer {
	return &streamJSONNormalizer{
		idx:      idx,
		mapping:  mapping,
		fallback: newPlainTextNormalizer(idx, fallbackCfg),
	}
}

func (n *streamJSONNormalizer) ProcessStdout(chunk []byte) []Patch {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.buf.Write(chunk)
	var out []Patch
	for {
		line, err := n.buf.ReadString('\n')
		if err != nil {
			// No full line yet: put back what we read and wait for more.
			n.buf.Reset()
			n.buf.WriteString(line)
			break
		}
		out = append(out, n.processLine(strings.TrimRight(line, "\r\n"))...)
	}
	return out
}

func (n *streamJSONNormalizer) processLine(line string) []Patch {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	var ev rawEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return n.fallback.ProcessStdout([]byte(line + "\n"))
	}

	var out []Patch
	if ev.SessionID != "" && n.sessionID == "" {
		n.sessionID = ev.SessionID
	}
	if ev.MessageID != "" && n.messageID == "" {
		n.messageID = ev.MessageID
	}

	entryType, ok := n.mapping.typeToEntry[ev.Type]
	if !ok {
		// Recognized JSON but an unmapped type: fall back to plain text so
		// nothing is silently dropped.
		return n.fallback.ProcessStdout([]byte(line + "\n"))
	}

	entry := NormalizedEntry{Type: entryType, Content: ev.Text}
	if entryType == EntryTypeToolUse {
		entry.ToolName = ev.ToolName
		entry.ToolInput = string(ev.ToolInput)
	}
	out = append(out, addEntry(n.idx.Next(), entry))
	return out
}

func (n *streamJSONNormalizer) ProcessStderr(chunk []byte) []Patch {
	// stderr on stream-JSON agents is unstructured text; cluster it the
	// same way the plain-text strategy would, tagged as an error_message
	// (spec §4.2: "used e.g. by Claude's stderr which is marked as
	// error_message").
	return n.fallback.processStderrAsErrorMessage(chunk)
}

func (n *streamJSONNormalizer) Flush() []Patch {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Patch
	if n.buf.Len() > 0 {
		out = append(out, n.processLine(n.buf.String())...)
		n.buf.Reset()
	}
	out = append(out, n.fallback.Flush()...)
	return out
}

// IdleTimeout defers to the fallback plain-text normalizer's time_gap:
// stream-JSON entries are framed by newlines, not idle time, but the
// fallback path (stderr, or an unparseable stdout line) still needs it.
func (n *streamJSONNormalizer) IdleTimeout() time.Duration {
	return n.fallback.IdleTimeout()
}

func (n *streamJSONNormalizer) SessionID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sessionID
}

func (n *streamJSONNormalizer) MessageID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messageID
}

var _ = bufio.NewReader // retained: line framing above mirrors bufio.Scanner's token shape used by cli_backend.go
