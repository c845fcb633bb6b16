package lognormalizer

// Op is a JSON Patch operation kind, restricted to the subset spec §6's
// wire shape uses.
type Op string

const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// ValueType discriminates the payload carried by a Patch's Value.
type ValueType string

const (
	ValueNormalizedEntry ValueType = "NORMALIZED_ENTRY"
	ValueStdout          ValueType = "STDOUT"
	ValueStderr          ValueType = "STDERR"
	ValueDiff            ValueType = "DIFF"
)

// Value is the wire payload attached to an add/replace Patch.
type Value struct {
	Type    ValueType `json:"type"`
	Content any       `json:"content"`
}

// Patch is one JSON Patch operation, as pushed into the MessageStore and
// replayed by subscribers against an initially empty document (spec §6).
type Patch struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value *Value `json:"value,omitempty"`
}

// EntryType enumerates the normalized conversation entry kinds spec §4.2
// maps stream-JSON object types onto.
type EntryType string

const (
	EntryTypeSystem       EntryType = "system"
	EntryTypeAssistant    EntryType = "assistant_message"
	EntryTypeUser         EntryType = "user_message"
	EntryTypeToolUse      EntryType = "tool_use"
	EntryTypeToolResult   EntryType = "tool_result"
	EntryTypeResult       EntryType = "result"
	EntryTypeErrorMessage EntryType = "error_message"
)

// NormalizedEntry is one unit of the user-facing conversation log.
type NormalizedEntry struct {
	Type    EntryType `json:"entry_type"`
	Content string    `json:"content"`
	// ToolName/ToolInput are populated for EntryTypeToolUse.
	ToolName  string `json:"tool_name,omitempty"`
	ToolInput string `json:"tool_input,omitempty"`
}

func addEntry(idx int, entry NormalizedEntry) Patch {
	return Patch{Op: OpAdd, Path: entryPath(idx), Value: &Value{Type: ValueNormalizedEntry, Content: entry}}
}

func replaceEntry(idx int, entry NormalizedEntry) Patch {
	return Patch{Op: OpReplace, Path: entryPath(idx), Value: &Value{Type: ValueNormalizedEntry, Content: entry}}
}

func removeEntry(idx int) Patch {
	return Patch{Op: OpRemove, Path: entryPath(idx)}
}

func entryPath(idx int) string {
	return "/entries/" + itoa(idx)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
