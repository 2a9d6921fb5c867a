package unitofwork

import (
	"context"

	"algo-collab-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SessionRepository() contract.SessionRepository
	CommentRepository() contract.CommentRepository
	SnapshotRepository() contract.SnapshotRepository
	UserRepository() contract.UserRepository
}
