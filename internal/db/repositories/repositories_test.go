package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"station/internal/db"
	"station/pkg/models"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	d, err := db.New(path)
	require.NoError(t, err)
	require.NoError(t, d.Migrate())
	t.Cleanup(func() { d.Close() })
	return d
}

func seedProject(t *testing.T, ctx context.Context, conn *Repositories) string {
	t.Helper()
	_, err := conn.conn.ExecContext(ctx, `INSERT INTO projects (id, name) VALUES (?, ?)`, "proj_1", "p")
	require.NoError(t, err)
	return "proj_1"
}

func TestImageDedupBySHA256(t *testing.T) {
	d := openTestDB(t)
	repo := NewImageRepo(d.Conn())
	ctx := context.Background()

	hash := "deadbeef"
	existing, err := repo.FindBySHA256(ctx, hash)
	require.NoError(t, err)
	require.Nil(t, existing)

	img := &models.Image{ID: "img_1", StoredFilename: "img_1_a.png", OriginalFilename: "a.png", MimeType: "image/png", SizeBytes: 10, SHA256Hex: hash}
	require.NoError(t, repo.Create(ctx, img))

	found, err := repo.FindBySHA256(ctx, hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "img_1", found.ID)
}

func seedChain(t *testing.T, ctx context.Context, repos *Repositories) (taskID, wsID, repoID, sessionID string) {
	t.Helper()
	projectID := seedProject(t, ctx, repos)

	task := &models.Task{ID: "task_1", ProjectID: projectID, Title: "t", Status: models.TaskStatusTodo}
	require.NoError(t, repos.Tasks.Create(ctx, task))

	ws := &models.Workspace{ID: "ws_1", TaskID: task.ID, Name: "ws"}
	require.NoError(t, repos.Workspaces.Create(ctx, ws))

	r := &models.Repo{ID: "repo_1", ProjectID: projectID, Path: "/tmp/r", DisplayName: "r", DefaultTargetBranch: "main"}
	require.NoError(t, repos.Repos.Create(ctx, r))

	require.NoError(t, repos.WorkspaceRepos.Upsert(ctx, &models.WorkspaceRepo{WorkspaceID: ws.ID, RepoID: r.ID, TargetBranch: "main"}))

	session := &models.Session{ID: "sess_1", WorkspaceID: ws.ID, Executor: "claude"}
	require.NoError(t, repos.Sessions.Create(ctx, session))

	return task.ID, ws.ID, r.ID, session.ID
}

func TestApprovalResolveIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	repos := New(d)
	ctx := context.Background()

	_, _, _, sessionID := seedChain(t, ctx, repos)
	ep := &models.ExecutionProcess{ID: "ep_1", SessionID: sessionID, RunReason: models.RunReasonCodingAgent, Action: "{}"}
	require.NoError(t, repos.ExecutionProcesses.Create(ctx, ep))

	approval := &models.Approval{
		ID:                 "appr_1",
		ExecutionProcessID: ep.ID,
		ToolName:           "bash",
		ToolInput:          "{}",
		ToolCallID:         "call_1",
		TimeoutAt:          time.Now().Add(time.Hour),
	}
	require.NoError(t, repos.Approvals.Create(ctx, approval))

	require.NoError(t, repos.Approvals.Resolve(ctx, "appr_1", models.ApprovalApproved, nil))
	err := repos.Approvals.Resolve(ctx, "appr_1", models.ApprovalDenied, nil)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	got, err := repos.Approvals.Get(ctx, "appr_1")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, got.Status)
}

func TestAtMostOneRunningExecutionProcessPerSession(t *testing.T) {
	d := openTestDB(t)
	repos := New(d)
	ctx := context.Background()

	_, _, _, sessionID := seedChain(t, ctx, repos)

	first := &models.ExecutionProcess{ID: "ep_1", SessionID: sessionID, RunReason: models.RunReasonCodingAgent, Action: "{}"}
	require.NoError(t, repos.ExecutionProcesses.Create(ctx, first))

	second := &models.ExecutionProcess{ID: "ep_2", SessionID: sessionID, RunReason: models.RunReasonCodingAgent, Action: "{}"}
	err := repos.ExecutionProcesses.Create(ctx, second)
	require.Error(t, err)
}

func TestDevServerExemptFromSingleRunningInvariant(t *testing.T) {
	d := openTestDB(t)
	repos := New(d)
	ctx := context.Background()

	_, _, _, sessionID := seedChain(t, ctx, repos)

	first := &models.ExecutionProcess{ID: "ep_1", SessionID: sessionID, RunReason: models.RunReasonCodingAgent, Action: "{}"}
	require.NoError(t, repos.ExecutionProcesses.Create(ctx, first))

	devServer := &models.ExecutionProcess{ID: "ep_2", SessionID: sessionID, RunReason: models.RunReasonDevServer, Action: "{}"}
	require.NoError(t, repos.ExecutionProcesses.Create(ctx, devServer))
}
