package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CodeRepositoryMongo implements domain.CodeRepository for one code kind.
// Documents are keyed by subject id, so a Put replaces the previous code.
type CodeRepositoryMongo struct {
	kind       domain.CodeKind
	collection *mongo.Collection
}

// NewCodeRepositoryMongo creates the repository and ensures the expiry index
// used by the sweeper.
func NewCodeRepositoryMongo(ctx context.Context, db *mongo.Database, kind domain.CodeKind) (*CodeRepositoryMongo, error) {
	repo := &CodeRepositoryMongo{
		kind:       kind,
		collection: db.Collection(CodeCollection(kind)),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("expires_at_1"),
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Str("collection", repo.collection.Name()).
			Msg("Issue creating indexes for code collection (might already exist or other error)")
	}

	return repo, nil
}

var _ domain.CodeRepository = (*CodeRepositoryMongo)(nil)

// Put replaces the subject's record, inserting it when absent.
func (r *CodeRepositoryMongo) Put(ctx context.Context, rec *domain.CodeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rec.SubjectID}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("kind", string(r.kind)).Msg("Error storing code record in MongoDB")
		return fmt.Errorf("put %s code: %w", r.kind, err)
	}
	return nil
}

// Get loads the subject's record and validates its shape.
func (r *CodeRepositoryMongo) Get(ctx context.Context, subjectID string) (*domain.CodeRecord, error) {
	var rec domain.CodeRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": subjectID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("get %s code: %w", r.kind, err)
	}
	if err := rec.Validate(); err != nil {
		log.Error().Err(err).Str("kind", string(r.kind)).Str("subjectID", subjectID).Msg("Rejected malformed code document")
		return nil, err
	}
	return &rec, nil
}

// IncrementAttempts bumps the counter only while it is below limit. The
// filter and the $inc are applied as one server-side operation.
func (r *CodeRepositoryMongo) IncrementAttempts(ctx context.Context, subjectID string, limit int) (int, error) {
	filter := bson.M{"_id": subjectID, "attempts": bson.M{"$lt": limit}}
	update := bson.M{"$inc": bson.M{"attempts": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec domain.CodeRecord
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec)
	if err == nil {
		return rec.Attempts, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("increment %s attempts: %w", r.kind, err)
	}
	return 0, r.missOrConflict(ctx, subjectID, domain.ErrTooManyAttempts)
}

// MarkUsed flips is_used on a record that is not used yet.
func (r *CodeRepositoryMongo) MarkUsed(ctx context.Context, subjectID string, at time.Time) error {
	at = at.UTC().Truncate(time.Millisecond)
	filter := bson.M{"_id": subjectID, "is_used": false}
	update := bson.M{"$set": bson.M{"is_used": true, "used_at": at}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mark %s code used: %w", r.kind, err)
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, subjectID, domain.ErrCodeAlreadyUsed)
	}
	return nil
}

// DeleteExpiredBefore removes every record whose expires_at is before now.
func (r *CodeRepositoryMongo) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now.UTC()}})
	if err != nil {
		log.Error().Err(err).Str("kind", string(r.kind)).Msg("Error deleting expired codes from MongoDB")
		return 0, fmt.Errorf("delete expired %s codes: %w", r.kind, err)
	}
	return result.DeletedCount, nil
}

// missOrConflict tells a missing record apart from a conditional update
// that matched nothing because of the record's state.
func (r *CodeRepositoryMongo) missOrConflict(ctx context.Context, subjectID string, conflict error) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": subjectID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("lookup %s code: %w", r.kind, err)
	}
	if n == 0 {
		return domain.ErrCodeNotFound
	}
	return conflict
}
