package mongodb

import (
	"context"
	"log/slog"

	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/domain/repository"
	"sitebuilder/internal/infrastructure/metrics"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRoundRepo struct {
	roundsCol *mongo.Collection
	logger    *slog.Logger
}

// NewMongoRoundRepo creates the indexes on the rounds collection. A failure
// there is logged and the repository is still usable; queries only get slower.
func NewMongoRoundRepo(ctx context.Context, db *mongo.Database, logger *slog.Logger) repository.RoundRepository {
	col := db.Collection("rounds")

	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "task", Value: 1}, bson.E{Key: "started_at", Value: 1}}},
	})
	if err != nil {
		metrics.IncError("mongo_round_repo", "create_indexes")
		logger.Warn("create rounds indexes failed", "collection", col.Name(), "err", err)
	}

	return &MongoRoundRepo{
		roundsCol: col,
		logger:    logger,
	}
}

// Save upserts the record by id, so a running round can be saved again
// once it finishes.
func (r *MongoRoundRepo) Save(ctx context.Context, rec *entity.RoundRecord) error {
	_, err := r.roundsCol.ReplaceOne(ctx, bson.M{"id": rec.ID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		metrics.IncError("mongo_round_repo", "save_error")
		return err
	}
	return nil
}

func (r *MongoRoundRepo) ListByTask(ctx context.Context, task string) ([]*entity.RoundRecord, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "started_at", Value: 1}})
	cur, err := r.roundsCol.Find(ctx, bson.M{"task": task}, opts)
	if err != nil {
		metrics.IncError("mongo_round_repo", "list_error")
		return nil, err
	}
	defer func() {
		if err := cur.Close(ctx); err != nil {
			r.logger.Warn("close rounds cursor failed", "task", task, "err", err)
		}
	}()

	var rounds []*entity.RoundRecord
	for cur.Next(ctx) {
		var rec entity.RoundRecord
		if err := cur.Decode(&rec); err != nil {
			metrics.IncError("mongo_round_repo", "list_decode_error")
			return nil, err
		}
		rounds = append(rounds, &rec)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_round_repo", "list_cursor_error")
		return nil, err
	}
	return rounds, nil
}
