// Package models holds the persisted entity types of the execution core:
// the Task ▸ Workspace ▸ Session ▸ ExecutionProcess owning tree plus the
// entities hanging off it (images, approvals, scratch, migration state).
package models

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task is the user's unit of work.
type Task struct {
	ID                string     `json:"id" db:"id"`
	ProjectID         string     `json:"project_id" db:"project_id"`
	Title             string     `json:"title" db:"title"`
	Description       string     `json:"description" db:"description"`
	Status            TaskStatus `json:"status" db:"status"`
	ParentWorkspaceID *string    `json:"parent_workspace_id,omitempty" db:"parent_workspace_id"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Workspace is an attempt at a task, owning one or more worktrees.
type Workspace struct {
	ID              string    `json:"id" db:"id"`
	TaskID          string    `json:"task_id" db:"task_id"`
	Name            string    `json:"name" db:"name"`
	Branch          *string   `json:"branch,omitempty" db:"branch"`
	AgentWorkingDir string    `json:"agent_working_dir" db:"agent_working_dir"`
	Archived        bool      `json:"archived" db:"archived"`
	Pinned          bool      `json:"pinned" db:"pinned"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// WorkspaceRepo is the N:M join between a Workspace and a Repo.
type WorkspaceRepo struct {
	WorkspaceID  string  `json:"workspace_id" db:"workspace_id"`
	RepoID       string  `json:"repo_id" db:"repo_id"`
	TargetBranch string  `json:"target_branch" db:"target_branch"`
	WorktreePath *string `json:"worktree_path,omitempty" db:"worktree_path"`
}

// Repo is a registered git checkout with optional lifecycle scripts.
type Repo struct {
	ID                  string    `json:"id" db:"id"`
	ProjectID           string    `json:"project_id" db:"project_id"`
	Path                string    `json:"path" db:"path"`
	DisplayName         string    `json:"display_name" db:"display_name"`
	SetupScript         *string   `json:"setup_script,omitempty" db:"setup_script"`
	CleanupScript       *string   `json:"cleanup_script,omitempty" db:"cleanup_script"`
	ArchiveScript       *string   `json:"archive_script,omitempty" db:"archive_script"`
	DevServerScript     *string   `json:"dev_server_script,omitempty" db:"dev_server_script"`
	ToolInstallScript   *string   `json:"tool_install_script,omitempty" db:"tool_install_script"`
	ParallelSetupScript bool      `json:"parallel_setup_script" db:"parallel_setup_script"`
	DefaultTargetBranch string    `json:"default_target_branch" db:"default_target_branch"`
	DefaultWorkingDir   string    `json:"default_working_dir" db:"default_working_dir"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// Session is a conversational thread with one executor inside a workspace.
type Session struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	Executor    string    `json:"executor" db:"executor"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type RunReason string

const (
	RunReasonSetupScript   RunReason = "setup_script"
	RunReasonCleanupScript RunReason = "cleanup_script"
	RunReasonArchiveScript RunReason = "archive_script"
	RunReasonDevServer     RunReason = "dev_server"
	RunReasonToolInstall   RunReason = "tool_install"
	RunReasonCodingAgent   RunReason = "coding_agent"
	RunReasonReview        RunReason = "review"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusKilled    ExecutionStatus = "killed"
)

// KillExitCode is the sentinel exit code recorded for an execution that was
// terminated by an explicit stop() call rather than exiting on its own.
const KillExitCode = -1

// SpawnFailureExitCode is recorded when the child process could not be
// spawned at all (missing executable, bad action).
const SpawnFailureExitCode = 127

// CrashRecoveryExitCode is the sentinel recorded for rows that were left
// `running` across a process restart (§7 crash recovery).
const CrashRecoveryExitCode = -2

// ExecutionProcess is one child-process run belonging to a Session.
type ExecutionProcess struct {
	ID          string          `json:"id" db:"id"`
	SessionID   string          `json:"session_id" db:"session_id"`
	RunReason   RunReason       `json:"run_reason" db:"run_reason"`
	Action      string          `json:"action" db:"action"` // serialized action node (JSON)
	Status      ExecutionStatus `json:"status" db:"status"`
	ExitCode    *int            `json:"exit_code,omitempty" db:"exit_code"`
	StartedAt   time.Time       `json:"started_at" db:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Dropped     bool            `json:"dropped" db:"dropped"`
}

// ExecutionProcessRepoState is a per-execution, per-repo before/after commit snapshot.
type ExecutionProcessRepoState struct {
	ExecutionProcessID string  `json:"execution_process_id" db:"execution_process_id"`
	RepoID              string  `json:"repo_id" db:"repo_id"`
	BeforeHeadCommit    *string `json:"before_head_commit,omitempty" db:"before_head_commit"`
	AfterHeadCommit     *string `json:"after_head_commit,omitempty" db:"after_head_commit"`
}

// CodingAgentTurn links an execution to the external agent's own session/message ids.
type CodingAgentTurn struct {
	ExecutionProcessID string `json:"execution_process_id" db:"execution_process_id"`
	AgentSessionID      *string `json:"agent_session_id,omitempty" db:"agent_session_id"`
	AgentMessageID      *string `json:"agent_message_id,omitempty" db:"agent_message_id"`
	Prompt              string  `json:"prompt" db:"prompt"`
	Summary             string  `json:"summary" db:"summary"`
	Seen                bool    `json:"seen" db:"seen"`
}

type MergeKind string

const (
	MergeKindDirect MergeKind = "direct"
	MergeKindPR     MergeKind = "pr"
)

type PRStatus string

const (
	PRStatusOpen    PRStatus = "open"
	PRStatusMerged  PRStatus = "merged"
	PRStatusClosed  PRStatus = "closed"
	PRStatusUnknown PRStatus = "unknown"
)

// Merge is a tagged union: a direct-commit merge or a pull-request merge.
type Merge struct {
	ID           string     `json:"id" db:"id"`
	WorkspaceID  string     `json:"workspace_id" db:"workspace_id"`
	Kind         MergeKind  `json:"kind" db:"kind"`
	MergeCommit  *string    `json:"merge_commit,omitempty" db:"merge_commit"`
	TargetBranch *string    `json:"target_branch,omitempty" db:"target_branch"`
	PRNumber     *int       `json:"pr_number,omitempty" db:"pr_number"`
	PRUrl        *string    `json:"pr_url,omitempty" db:"pr_url"`
	PRStatus     *PRStatus  `json:"pr_status,omitempty" db:"pr_status"`
	PRMergedAt   *time.Time `json:"pr_merged_at,omitempty" db:"pr_merged_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Image is a content-addressed blob associated with tasks.
type Image struct {
	ID               string    `json:"id" db:"id"`
	StoredFilename   string    `json:"stored_filename" db:"stored_filename"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	MimeType         string    `json:"mime_type" db:"mime_type"`
	SizeBytes        int64     `json:"size_bytes" db:"size_bytes"`
	SHA256Hex        string    `json:"sha256_hex" db:"sha256_hex"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

type ScratchType string

const (
	ScratchDraftTask       ScratchType = "DRAFT_TASK"
	ScratchDraftFollowUp   ScratchType = "DRAFT_FOLLOW_UP"
	ScratchDraftWorkspace  ScratchType = "DRAFT_WORKSPACE"
	ScratchPreviewSettings ScratchType = "PREVIEW_SETTINGS"
	ScratchWorkspaceNotes  ScratchType = "WORKSPACE_NOTES"
	ScratchUIPreferences   ScratchType = "UI_PREFERENCES"
)

// Scratch is a keyed, typed JSON draft/preference record.
type Scratch struct {
	ID          string      `json:"id" db:"id"`
	ScratchType ScratchType `json:"scratch_type" db:"scratch_type"`
	Payload     string      `json:"payload" db:"payload"` // opaque JSON at the persistence boundary
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// ErrTypeMismatch is returned when a Scratch row's stored discriminant
// in Payload disagrees with its ScratchType column (§9 design notes).
type ErrTypeMismatch struct {
	Expected ScratchType
	Got      string
}

func (e *ErrTypeMismatch) Error() string {
	return "scratch type mismatch: expected " + string(e.Expected) + ", payload declares " + e.Got
}

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalDenied    ApprovalStatus = "denied"
	ApprovalTimedOut  ApprovalStatus = "timed_out"
)

// Approval is a pending (or resolved) tool-call approval request.
type Approval struct {
	ID                  string         `json:"id" db:"id"`
	ExecutionProcessID   string         `json:"execution_process_id" db:"execution_process_id"`
	ToolName             string         `json:"tool_name" db:"tool_name"`
	ToolInput            string         `json:"tool_input" db:"tool_input"` // opaque JSON
	ToolCallID           string         `json:"tool_call_id" db:"tool_call_id"`
	Status               ApprovalStatus `json:"status" db:"status"`
	RequestedAt          time.Time      `json:"requested_at" db:"requested_at"`
	TimeoutAt            time.Time      `json:"timeout_at" db:"timeout_at"`
	Reason               *string        `json:"reason,omitempty" db:"reason"`
}

type MigrationStatus string

const (
	MigrationPending  MigrationStatus = "pending"
	MigrationMigrated MigrationStatus = "migrated"
	MigrationFailed   MigrationStatus = "failed"
	MigrationSkipped  MigrationStatus = "skipped"
)

// MigrationState tracks per-entity remote-sync bookkeeping.
type MigrationState struct {
	EntityType string          `json:"entity_type" db:"entity_type"`
	LocalID    string          `json:"local_id" db:"local_id"`
	Status     MigrationStatus `json:"status" db:"status"`
	RemoteID   *string         `json:"remote_id,omitempty" db:"remote_id"`
	Attempts   int             `json:"attempts" db:"attempts"`
}
