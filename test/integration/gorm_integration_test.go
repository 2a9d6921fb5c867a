package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"algo-collab-be/internal/entity"
	"algo-collab-be/internal/repository/specification"
	"algo-collab-be/internal/repository/unitofwork"
	"algo-collab-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.UserRepository())
	assert.NotNil(t, uow.SessionRepository())
	assert.NotNil(t, uow.CommentRepository())
	assert.NotNil(t, uow.SnapshotRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	t.Run("Check Session Repository", func(t *testing.T) {
		count, err := uow.SessionRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Session count: %d", count)
	})

	t.Run("Session Lifecycle Round Trip", func(t *testing.T) {
		ctx := context.Background()

		id := uuid.New()
		session := &entity.Session{
			Id:          id,
			ProjectId:   uuid.New(),
			SessionType: entity.SessionTypeReview,
			SessionName: "integration-" + id.String()[:8],
			CreatedBy:   uuid.New(),
			StartedAt:   time.Now().UTC(),
		}

		err := uow.SessionRepository().Create(ctx, session)
		assert.NoError(t, err)

		found, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: id})
		assert.NoError(t, err)
		if assert.NotNil(t, found) {
			assert.True(t, found.Active())
			assert.Equal(t, session.SessionName, found.SessionName)
		}

		err = uow.SessionRepository().End(ctx, id)
		assert.NoError(t, err)

		ended, err := uow.SessionRepository().FindOne(ctx, specification.ByID{ID: id})
		assert.NoError(t, err)
		if assert.NotNil(t, ended) {
			assert.False(t, ended.Active())
		}
	})

	t.Run("Snapshot Upsert Is Idempotent Per Path", func(t *testing.T) {
		ctx := context.Background()

		projectId := uuid.New()
		snap := &entity.DocumentSnapshot{
			ProjectId:     projectId,
			FilePath:      "src/main.go",
			Content:       "package main\n",
			VersionVector: map[string]uint64{"r1": 3},
		}

		err := uow.SnapshotRepository().Upsert(ctx, snap)
		assert.NoError(t, err)

		snap.Content = "package main\n\nfunc main() {}\n"
		snap.VersionVector["r1"] = 5
		err = uow.SnapshotRepository().Upsert(ctx, snap)
		assert.NoError(t, err)

		found, err := uow.SnapshotRepository().Find(ctx, projectId, "src/main.go")
		assert.NoError(t, err)
		if assert.NotNil(t, found) {
			assert.Equal(t, snap.Content, found.Content)
			assert.Equal(t, uint64(5), found.VersionVector["r1"])
		}
	})

	t.Run("Transactional Comment Thread", func(t *testing.T) {
		ctx := context.Background()

		err := uow.Begin(ctx)
		assert.NoError(t, err)
		defer uow.Rollback()

		rootId := uuid.New()
		root := &entity.Comment{
			Id:         rootId,
			ProjectId:  uuid.New(),
			FilePath:   "pkg/sort/quick.go",
			LineNumber: 42,
			Content:    "this pivot choice degrades on sorted input",
			AuthorId:   uuid.New(),
			CreatedAt:  time.Now().UTC(),
		}
		err = uow.CommentRepository().Create(ctx, root)
		assert.NoError(t, err)

		reply := &entity.Comment{
			Id:         uuid.New(),
			ProjectId:  root.ProjectId,
			FilePath:   root.FilePath,
			LineNumber: root.LineNumber,
			ParentId:   &rootId,
			Content:    "good catch, switching to median-of-three",
			AuthorId:   uuid.New(),
			CreatedAt:  time.Now().UTC(),
		}
		err = uow.CommentRepository().Create(ctx, reply)
		assert.NoError(t, err)

		err = uow.Commit()
		assert.NoError(t, err)

		t.Log("Successfully created comment thread in Transaction")
	})
}
