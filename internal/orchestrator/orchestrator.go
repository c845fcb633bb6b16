// Package orchestrator implements the Orchestrator of spec §4.8: the
// public entry point that starts an ExecutionProcess, stops one, and runs
// the finalize_after_exit pipeline (persist exit status, drain any queued
// follow-up, auto-commit, decide whether the task is ready for review,
// emit completion events). Grounded on the teacher's top-level session
// run loop (`internal/coding`'s backend-dispatch-then-await shape) and
// `cmd/main.go`'s construct-services-then-serve wiring, generalized from
// "one backend call" into "supervise a chain, then react to how it
// ended."
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"station/internal/actionchain"
	"station/internal/agentlauncher"
	"station/internal/approval"
	"station/internal/db/repositories"
	"station/internal/events"
	"station/internal/gitservice"
	"station/internal/lognormalizer"
	"station/internal/messagestore"
	"station/internal/queuedfollowup"
	"station/internal/registry"
	"station/internal/supervisor"
	"station/pkg/models"
)

// Orchestrator ties every other component together behind a small public
// surface: StartExecution, StopExecution, and the finalize pipeline that
// runs once a supervised chain exits.
type Orchestrator struct {
	repos      *repositories.Repositories
	registry   *registry.Registry
	approvals  *approval.Coordinator
	followups  *queuedfollowup.Store
	git        *gitservice.Service
	bus        *events.Bus

	// AutoCommit toggles whether finalize_after_exit commits the working
	// tree's uncommitted changes on the caller's behalf after a completed
	// run (spec §4.8 step 3); on by default.
	AutoCommit bool
}

func New(repos *repositories.Repositories, reg *registry.Registry, approvals *approval.Coordinator, followups *queuedfollowup.Store, git *gitservice.Service, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		repos:      repos,
		registry:   reg,
		approvals:  approvals,
		followups:  followups,
		git:        git,
		bus:        bus,
		AutoCommit: true,
	}
}

// StartOptions carries everything StartExecution needs to bring up one
// supervised run.
type StartOptions struct {
	Session      *models.Session
	RunReason    models.RunReason
	Chain        *actionchain.Action
	BaseDir      string
	RepoIDs      []string // repos whose HEAD should be snapshotted before/after
	Normalizer   lognormalizer.Normalizer
	ActionJSON   string // serialized Action for persistence (spec §3 ExecutionProcess.Action)
}

// StartExecution creates the ExecutionProcess row, snapshots each repo's
// HEAD, then runs the chain under a Supervisor in a background goroutine,
// publishing its handle to the ExecutionRegistry before returning (spec
// §4.7/§4.8, §4.9 registry publication happens before the caller can
// possibly race a stop()).
func (o *Orchestrator) StartExecution(ctx context.Context, opts StartOptions) (*models.ExecutionProcess, error) {
	ep := &models.ExecutionProcess{
		ID:        newID("ep"),
		SessionID: opts.Session.ID,
		RunReason: opts.RunReason,
		Action:    opts.ActionJSON,
		Status:    models.ExecutionStatusRunning,
		StartedAt: time.Now(),
	}
	if err := o.repos.ExecutionProcesses.Create(ctx, ep); err != nil {
		return nil, fmt.Errorf("orchestrator: create execution process: %w", err)
	}

	for _, repoID := range opts.RepoIDs {
		head, err := o.repoHead(ctx, repoID, opts.BaseDir)
		if err != nil {
			continue // best-effort snapshot; a missing HEAD (fresh repo) isn't fatal
		}
		_ = o.repos.ExecutionRepoStates.RecordBefore(ctx, ep.ID, repoID, head)
	}

	store := messagestore.New()
	runCtx, cancel := context.WithCancel(context.Background())
	stopSignal := make(chan struct{})
	var stopOnce sync.Once

	o.registry.Register(&registry.Handle{
		ExecutionID:  ep.ID,
		Cancel: func() {
			stopOnce.Do(func() {
				close(stopSignal)
				cancel()
			})
		},
		MessageStore: store,
	})

	sup := supervisor.New(store, opts.Normalizer)

	go func() {
		result := sup.Run(runCtx, opts.Chain, opts.BaseDir, stopSignal)
		o.finalizeAfterExit(context.Background(), ep, opts, result, store)
	}()

	return ep, nil
}

func (o *Orchestrator) repoHead(ctx context.Context, repoID, baseDir string) (string, error) {
	return o.git.RevParse(ctx, baseDir, "HEAD")
}

// StopExecution cancels a running execution via the registry, escalating
// to SIGKILL if it hasn't exited within the grace period (spec §4.7 step
// 6, §4.9 Stop/WaitThenKill handshake).
func (o *Orchestrator) StopExecution(executionID string) bool {
	stopped := o.registry.Stop(executionID)
	if !stopped {
		return false
	}
	if o.registry.WaitThenKill(executionID, supervisor.GracePeriod) {
		// Still registered after the grace period: the supervisor's own
		// terminate() already escalated to SIGKILL internally, so there is
		// nothing further for the orchestrator to do beyond reporting it.
		return true
	}
	return true
}

// finalizeAfterExit is the post-exit pipeline of spec §4.8: persist the
// outcome, snapshot the after-HEAD, drain one queued follow-up (recursing
// into a new StartExecution if one is pending — step 2 returns without
// running the rest of this pipeline, since the new execution reaches it
// on its own exit), auto-commit uncommitted changes, and decide whether
// the owning task should move to in_review.
func (o *Orchestrator) finalizeAfterExit(ctx context.Context, ep *models.ExecutionProcess, opts StartOptions, result supervisor.Result, store *messagestore.Store) {
	defer o.registry.Unregister(ep.ID)
	defer store.Close()

	status := models.ExecutionStatusCompleted
	exitCode := result.ExitCode
	switch {
	case result.ExitCode == -1:
		status = models.ExecutionStatusKilled
		exitCode = models.KillExitCode
	case result.Err != nil || result.ExitCode != 0:
		status = models.ExecutionStatusFailed
	}

	if err := o.repos.ExecutionProcesses.Finish(ctx, ep.ID, status, exitCode); err != nil {
		o.bus.Emit("execution.persist_failed", map[string]any{"execution_id": ep.ID, "error": err.Error()})
		return
	}

	for _, repoID := range opts.RepoIDs {
		head, err := o.repoHead(ctx, repoID, opts.BaseDir)
		if err != nil {
			continue
		}
		_ = o.repos.ExecutionRepoStates.RecordAfter(ctx, ep.ID, repoID, head)
	}

	// Step 2: a clean exit with a queued follow-up consumes it and
	// recurses into StartExecution instead of finalizing this execution
	// any further ("Return without finalizing — the new execution will
	// reach this pipeline").
	if status == models.ExecutionStatusCompleted {
		if follow, ok := o.followups.Take(opts.Session.WorkspaceID); ok {
			o.bus.Emit("execution.followup_drained", map[string]any{"session_id": follow.SessionID, "prompt": follow.Prompt})
			resetToMessageID := ""
			if follow.ResetToMessage != nil {
				resetToMessageID = *follow.ResetToMessage
			}
			if _, err := o.SpawnFollowUp(ctx, follow.SessionID, follow.Prompt, resetToMessageID); err != nil {
				o.bus.Emit("execution.followup_failed", map[string]any{"session_id": follow.SessionID, "error": err.Error()})
			}
			return
		}
	}

	// Step 3.
	if status == models.ExecutionStatusCompleted && o.AutoCommit {
		if _, err := o.git.AutoCommit(ctx, opts.BaseDir, autoCommitMessage(opts.Session)); err != nil {
			o.bus.Emit("execution.autocommit_failed", map[string]any{"execution_id": ep.ID, "error": err.Error()})
		}
	}

	// Step 4: should_finalize(exit_code, run_reason).
	if shouldFinalize(exitCode, opts.RunReason) {
		if err := o.finalizeTask(ctx, opts.Session.WorkspaceID); err != nil {
			o.bus.Emit("execution.finalize_failed", map[string]any{"execution_id": ep.ID, "error": err.Error()})
		}
	}

	// Step 5.
	topic := "execution.completed"
	if status != models.ExecutionStatusCompleted {
		topic = "execution.failed"
	}
	o.bus.Emit(topic, map[string]any{
		"execution_id": ep.ID,
		"session_id":   opts.Session.ID,
		"status":       status,
		"exit_code":    exitCode,
	})
}

// shouldFinalize implements spec §4.8 step 4's predicate: only a clean
// coding-agent turn (initial, follow-up, or review) moves the task
// forward — script/dev_server/tool_install runs never do.
func shouldFinalize(exitCode int, reason models.RunReason) bool {
	if exitCode != 0 {
		return false
	}
	return reason == models.RunReasonCodingAgent || reason == models.RunReasonReview
}

// finalizeTask transitions the owning task to in_review and fires a
// task-completed event (spec §4.8 step 4, §3's "in_review requires at
// least one successful agent execution" invariant — satisfied here since
// finalizeTask is only reached on a clean exit). Desktop notification
// delivery is a named external collaborator (spec §1) this package does
// not implement; the event is this pipeline's one hook for it.
func (o *Orchestrator) finalizeTask(ctx context.Context, workspaceID string) error {
	workspace, err := o.repos.Workspaces.Get(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("orchestrator: finalize task: workspace: %w", err)
	}
	if err := o.repos.Tasks.TransitionStatus(ctx, workspace.TaskID, models.TaskStatusInReview); err != nil {
		return fmt.Errorf("orchestrator: finalize task: %w", err)
	}
	o.bus.Emit("task.completed", map[string]any{"task_id": workspace.TaskID, "workspace_id": workspaceID})
	return nil
}

// followUpActionRecord is the ActionJSON persisted for a
// coding_agent_follow_up ExecutionProcess row (spec §3 ExecutionProcess.Action).
type followUpActionRecord struct {
	Kind             actionchain.ActionKind `json:"kind"`
	Prompt           string                 `json:"prompt"`
	ResetToMessageID string                 `json:"reset_to_message_id,omitempty"`
}

// SpawnFollowUp implements spec §4.8's spawn_follow_up: looks up the
// latest CodingAgentTurn for the session, validates its agent_session_id,
// builds a follow-up command via agentlauncher.BuildFollowUp, and
// recurses into StartExecution with a coding_agent_follow_up action
// chained off the session's existing workspace/repos.
func (o *Orchestrator) SpawnFollowUp(ctx context.Context, sessionID, prompt, resetToMessageID string) (*models.ExecutionProcess, error) {
	session, err := o.repos.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: session: %w", err)
	}

	turn, err := o.repos.CodingAgentTurns.LatestForSession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: latest turn: %w", err)
	}
	if turn.AgentSessionID == nil || *turn.AgentSessionID == "" {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: session %s has no agent_session_id recorded yet", session.ID)
	}

	profile, ok := agentlauncher.ProfileFor(session.Executor)
	if !ok {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: no executor profile for %q", session.Executor)
	}
	cmd, err := agentlauncher.BuildFollowUp(profile, *turn.AgentSessionID, resetToMessageID, nil)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: %w", err)
	}

	workspace, err := o.repos.Workspaces.Get(ctx, session.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: workspace: %w", err)
	}
	wrepos, err := o.repos.WorkspaceRepos.ListByWorkspace(ctx, session.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: workspace repos: %w", err)
	}
	repoIDs := make([]string, len(wrepos))
	for i, wr := range wrepos {
		repoIDs[i] = wr.RepoID
	}

	chain := agentlauncher.CommandAction(actionchain.KindCodingAgentFollowUp, models.RunReasonCodingAgent, "", cmd)
	actionJSON, err := json.Marshal(followUpActionRecord{Kind: chain.Kind, Prompt: prompt, ResetToMessageID: resetToMessageID})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: spawn_follow_up: marshal action: %w", err)
	}

	return o.StartExecution(ctx, StartOptions{
		Session:    session,
		RunReason:  models.RunReasonCodingAgent,
		Chain:      chain,
		BaseDir:    workspace.AgentWorkingDir,
		RepoIDs:    repoIDs,
		Normalizer: lognormalizer.New(lognormalizer.AgentKind(session.Executor), nil),
		ActionJSON: string(actionJSON),
	})
}

func autoCommitMessage(s *models.Session) string {
	return fmt.Sprintf("vibe: session %s checkpoint", s.ID)
}

// RecoverCrashed marks every execution left `running` across a process
// restart as failed (spec §7 crash recovery), returning their ids.
func (o *Orchestrator) RecoverCrashed(ctx context.Context) ([]string, error) {
	return o.repos.ExecutionProcesses.RecoverCrashed(ctx)
}

// newID mints a prefixed google/uuid, the id scheme the teacher uses for
// every generated row id.
func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
