package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/biihlive/authcodes/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionRepositoryMongo implements the domain.SessionRepository interface using MongoDB.
type SessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSessionRepositoryMongo creates a new SessionRepositoryMongo.
// It also ensures that necessary indexes are created on the collection.
func NewSessionRepositoryMongo(ctx context.Context, db *mongo.Database) (*SessionRepositoryMongo, error) {
	repo := &SessionRepositoryMongo{
		collection: db.Collection(UserSessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_revoked", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index for automatic cleanup
		},
	}

	_, err := repo.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for user_sessions collection (might already exist or other error)")
	} else {
		log.Info().Msg("Indexes for user_sessions collection ensured.")
	}

	return repo, nil
}

var _ domain.SessionRepository = (*SessionRepositoryMongo)(nil)

// StoreSession creates a new session.
func (r *SessionRepositoryMongo) StoreSession(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		session.ID = NewObjectID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("session with this ID or TokenID already exists")
		}
		log.Error().Err(err).Msg("Error storing session in MongoDB")
		return err
	}
	return nil
}

// GetSessionByTokenID retrieves a session by its TokenID (the JWT jti).
func (r *SessionRepositoryMongo) GetSessionByTokenID(ctx context.Context, tokenID string) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"token_id": tokenID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		log.Error().Err(err).Str("tokenID", tokenID).Msg("Error getting session by TokenID from MongoDB")
		return nil, err
	}
	return &session, nil
}

// RevokeSessionsByUserID marks every live session of the user as revoked.
func (r *SessionRepositoryMongo) RevokeSessionsByUserID(ctx context.Context, userID string) (int64, error) {
	now := time.Now().UTC()
	filter := bson.M{"user_id": userID, "is_revoked": false}
	update := bson.M{"$set": bson.M{"is_revoked": true, "revoked_at": now}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error revoking sessions by user ID in MongoDB")
		return 0, err
	}
	return result.ModifiedCount, nil
}
