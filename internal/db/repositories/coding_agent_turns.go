package repositories

import (
	"context"
	"database/sql"

	"station/pkg/models"
)

type CodingAgentTurnRepo struct {
	db *sql.DB
}

func NewCodingAgentTurnRepo(db *sql.DB) *CodingAgentTurnRepo {
	return &CodingAgentTurnRepo{db: db}
}

func (r *CodingAgentTurnRepo) Create(ctx context.Context, t *models.CodingAgentTurn) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coding_agent_turns (execution_process_id, agent_session_id, agent_message_id, prompt, summary, seen)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ExecutionProcessID, nullString(t.AgentSessionID), nullString(t.AgentMessageID), t.Prompt, t.Summary, t.Seen)
	return err
}

// SetAgentSessionID records the external tool's own session id once it
// appears in the log stream (§4.2: SessionId message).
func (r *CodingAgentTurnRepo) SetAgentSessionID(ctx context.Context, executionProcessID, agentSessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE coding_agent_turns SET agent_session_id = ? WHERE execution_process_id = ?`,
		agentSessionID, executionProcessID)
	return err
}

func (r *CodingAgentTurnRepo) SetAgentMessageID(ctx context.Context, executionProcessID, agentMessageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE coding_agent_turns SET agent_message_id = ? WHERE execution_process_id = ?`,
		agentMessageID, executionProcessID)
	return err
}

func (r *CodingAgentTurnRepo) Get(ctx context.Context, executionProcessID string) (*models.CodingAgentTurn, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT execution_process_id, agent_session_id, agent_message_id, prompt, summary, seen
		FROM coding_agent_turns WHERE execution_process_id = ?`, executionProcessID)
	var t models.CodingAgentTurn
	var sessID, msgID sql.NullString
	if err := row.Scan(&t.ExecutionProcessID, &sessID, &msgID, &t.Prompt, &t.Summary, &t.Seen); err != nil {
		return nil, err
	}
	t.AgentSessionID, t.AgentMessageID = strPtr(sessID), strPtr(msgID)
	return &t, nil
}

// LatestForSession joins execution_processes to find the most recent turn
// for a session, used by Orchestrator.spawn_follow_up (§4.8).
func (r *CodingAgentTurnRepo) LatestForSession(ctx context.Context, sessionID string) (*models.CodingAgentTurn, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT t.execution_process_id, t.agent_session_id, t.agent_message_id, t.prompt, t.summary, t.seen
		FROM coding_agent_turns t
		JOIN execution_processes e ON e.id = t.execution_process_id
		WHERE e.session_id = ? AND e.dropped = 0
		ORDER BY e.started_at DESC LIMIT 1`, sessionID)
	var t models.CodingAgentTurn
	var sessID, msgID sql.NullString
	if err := row.Scan(&t.ExecutionProcessID, &sessID, &msgID, &t.Prompt, &t.Summary, &t.Seen); err != nil {
		return nil, err
	}
	t.AgentSessionID, t.AgentMessageID = strPtr(sessID), strPtr(msgID)
	return &t, nil
}
