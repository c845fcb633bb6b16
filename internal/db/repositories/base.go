// Package repositories implements the persistence rules of spec §4.11: every
// row representing an external observable is written in a single
// transaction with the source-of-truth change, upserts use the database's
// native ON CONFLICT primitive, and soft deletes use a `dropped` column
// rather than a real DELETE so in-flight log index invariants survive.
package repositories

import (
	"database/sql"

	"station/internal/db"
)

// Repositories aggregates one repository per entity, following the
// teacher's internal/db/repositories.Repositories constructor shape.
type Repositories struct {
	Tasks                  *TaskRepo
	Workspaces             *WorkspaceRepo
	WorkspaceRepos         *WorkspaceRepoRepo
	Repos                  *RepoRepo
	Sessions               *SessionRepo
	ExecutionProcesses     *ExecutionProcessRepo
	ExecutionRepoStates    *ExecutionProcessRepoStateRepo
	CodingAgentTurns       *CodingAgentTurnRepo
	Merges                 *MergeRepo
	Images                 *ImageRepo
	Scratches              *ScratchRepo
	Approvals              *ApprovalRepo
	MigrationStates        *MigrationStateRepo

	conn *sql.DB
}

func New(database db.Database) *Repositories {
	conn := database.Conn()
	return &Repositories{
		Tasks:               NewTaskRepo(conn),
		Workspaces:          NewWorkspaceRepo(conn),
		WorkspaceRepos:      NewWorkspaceRepoRepo(conn),
		Repos:               NewRepoRepo(conn),
		Sessions:            NewSessionRepo(conn),
		ExecutionProcesses:  NewExecutionProcessRepo(conn),
		ExecutionRepoStates: NewExecutionProcessRepoStateRepo(conn),
		CodingAgentTurns:    NewCodingAgentTurnRepo(conn),
		Merges:              NewMergeRepo(conn),
		Images:              NewImageRepo(conn),
		Scratches:           NewScratchRepo(conn),
		Approvals:           NewApprovalRepo(conn),
		MigrationStates:     NewMigrationStateRepo(conn),
		conn:                conn,
	}
}

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on any returned error. Used whenever a caller needs to write
// more than one row atomically (e.g. execution-process update + repo-state
// upsert at exit). Held behind db.SQLiteWriteMutex since sqlite allows only
// one writer at a time even in WAL mode.
func (r *Repositories) WithTx(fn func(*sql.Tx) error) error {
	db.SQLiteWriteMutex.Lock()
	defer db.SQLiteWriteMutex.Unlock()

	tx, err := r.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
