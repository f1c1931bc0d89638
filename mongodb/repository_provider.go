package mongodb

import (
	"context"
	"fmt"

	"github.com/biihlive/authcodes/domain"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoRepositoryProvider owns every MongoDB-backed repository of the
// service. Repositories are built once so index creation runs at startup.
type MongoRepositoryProvider struct {
	codeRepos   map[domain.CodeKind]*CodeRepositoryMongo
	userRepo    *UserRepository
	sessionRepo *SessionRepositoryMongo
}

// NewMongoRepositoryProvider builds the repositories on top of db.
func NewMongoRepositoryProvider(ctx context.Context, db *mongo.Database) (*MongoRepositoryProvider, error) {
	p := &MongoRepositoryProvider{codeRepos: make(map[domain.CodeKind]*CodeRepositoryMongo)}

	for _, kind := range domain.CodeKinds() {
		repo, err := NewCodeRepositoryMongo(ctx, db, kind)
		if err != nil {
			return nil, fmt.Errorf("init %s repository: %w", kind, err)
		}
		p.codeRepos[kind] = repo
	}

	var err error
	if p.userRepo, err = NewUserRepository(ctx, db); err != nil {
		return nil, fmt.Errorf("init user repository: %w", err)
	}
	if p.sessionRepo, err = NewSessionRepositoryMongo(ctx, db); err != nil {
		return nil, fmt.Errorf("init session repository: %w", err)
	}
	return p, nil
}

var _ domain.CodeStoreProvider = (*MongoRepositoryProvider)(nil)

// CodeRepository returns the repository for kind.
func (p *MongoRepositoryProvider) CodeRepository(kind domain.CodeKind) domain.CodeRepository {
	return p.codeRepos[kind]
}

// UserRepository returns the MongoDB-backed user repository.
func (p *MongoRepositoryProvider) UserRepository() domain.UserRepository {
	return p.userRepo
}

// SessionRepository returns the MongoDB-backed session repository.
func (p *MongoRepositoryProvider) SessionRepository() domain.SessionRepository {
	return p.sessionRepo
}

func (p *MongoRepositoryProvider) Ping(ctx context.Context) error {
	return Ping(ctx)
}

func (p *MongoRepositoryProvider) Close(ctx context.Context) error {
	CloseMongoDB(ctx)
	return nil
}
