package mongodb

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"sitebuilder/internal/domain/entity"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestNewMongoRoundRepoLogsIndexFailure(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("index error", func(mt *mtest.T) {
		var logs bytes.Buffer
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    85,
			Name:    "IndexOptionsConflict",
			Message: "index already exists with different options",
		}))

		repo := NewMongoRoundRepo(context.Background(), mt.DB, bufferLogger(&logs))
		if repo == nil {
			t.Fatal("repo is nil")
		}
		if !strings.Contains(logs.String(), "create rounds indexes failed") ||
			!strings.Contains(logs.String(), "index already exists") {
			t.Errorf("index failure not logged: %q", logs.String())
		}
	})

	mt.Run("index ok", func(mt *mtest.T) {
		var logs bytes.Buffer
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		NewMongoRoundRepo(context.Background(), mt.DB, bufferLogger(&logs))
		if logs.Len() != 0 {
			t.Errorf("unexpected log output: %q", logs.String())
		}
	})
}

func TestMongoRoundRepoSaveAndList(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("save and list", func(mt *mtest.T) {
		var logs bytes.Buffer
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewMongoRoundRepo(context.Background(), mt.DB, bufferLogger(&logs))

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		rec := &entity.RoundRecord{ID: "r1", Task: "demo-site", Round: 1, Status: entity.RoundStatusOK}
		if err := repo.Save(context.Background(), rec); err != nil {
			t.Fatalf("Save: %v", err)
		}

		ns := mt.DB.Name() + ".rounds"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "id", Value: "r1"}, {Key: "task", Value: "demo-site"}, {Key: "round", Value: 1}, {Key: "status", Value: "ok"}},
			bson.D{{Key: "id", Value: "r2"}, {Key: "task", Value: "demo-site"}, {Key: "round", Value: 2}, {Key: "status", Value: "failed"}, {Key: "error", Value: "boom"}},
		))
		rounds, err := repo.ListByTask(context.Background(), "demo-site")
		if err != nil {
			t.Fatalf("ListByTask: %v", err)
		}
		if len(rounds) != 2 || rounds[0].ID != "r1" || rounds[1].Status != entity.RoundStatusFailed || rounds[1].Error != "boom" {
			t.Errorf("rounds = %+v", rounds)
		}
	})

	mt.Run("save error", func(mt *mtest.T) {
		var logs bytes.Buffer
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		repo := NewMongoRoundRepo(context.Background(), mt.DB, bufferLogger(&logs))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad"}))
		if err := repo.Save(context.Background(), &entity.RoundRecord{ID: "r1"}); err == nil {
			t.Fatal("expected error")
		}
	})
}
