package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/biihlive/authcodes/cache"
	redisstore "github.com/biihlive/authcodes/cache/redis"
	"github.com/biihlive/authcodes/config"
	"github.com/biihlive/authcodes/domain"
	"github.com/biihlive/authcodes/internal/identity"
	"github.com/biihlive/authcodes/internal/server"
	"github.com/biihlive/authcodes/internal/storage"
	"github.com/biihlive/authcodes/mongodb"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Stores are the backends selected by configuration. Users and sessions
// live in MongoDB unless the whole service runs in memory.
type Stores struct {
	Codes    domain.CodeStoreProvider
	Users    domain.UserRepository
	Sessions domain.SessionRepository

	mongo *mongodb.MongoRepositoryProvider
}

// OpenStores connects the configured backends.
func OpenStores(ctx context.Context, cfg *config.ServerConfig) (*Stores, error) {
	switch cfg.StoreBackend {
	case config.StoreMongoDB, config.StoreRedis, config.StoreBolt, config.StoreMemory:
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	s := &Stores{}
	if cfg.NeedsMongo() {
		if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		provider, err := mongodb.NewMongoRepositoryProvider(ctx, mongodb.GetDB())
		if err != nil {
			mongodb.CloseMongoDB(ctx)
			return nil, err
		}
		s.mongo = provider
		s.Users = provider.UserRepository()
		s.Sessions = provider.SessionRepository()
	} else {
		s.Users = identity.NewUserStore()
		s.Sessions = identity.NewSessionStore()
	}

	switch cfg.StoreBackend {
	case config.StoreMongoDB:
		s.Codes = s.mongo
	case config.StoreRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			s.closeMongo(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.Codes = redisstore.NewProvider(client, cfg.RedisPrefix, cache.DefaultRetention)
	case config.StoreBolt:
		store, err := storage.NewBBoltStore(cfg.BoltPath)
		if err != nil {
			s.closeMongo(ctx)
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		s.Codes = store
	default:
		s.Codes = cache.NewMemoryProvider(cache.DefaultRetention)
	}

	log.Info().Str("backend", cfg.StoreBackend).Bool("mongo_identity", s.mongo != nil).Msg("Stores opened")
	return s, nil
}

// Pingers lists every distinct backend for the health check.
func (s *Stores) Pingers() []server.Pinger {
	pingers := []server.Pinger{s.Codes}
	if s.mongo != nil && domain.CodeStoreProvider(s.mongo) != s.Codes {
		pingers = append(pingers, s.mongo)
	}
	return pingers
}

func (s *Stores) closeMongo(ctx context.Context) {
	if s.mongo != nil {
		_ = s.mongo.Close(ctx)
	}
}

// Close releases every backend once.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.Codes != nil && s.Codes != domain.CodeStoreProvider(s.mongo) {
		errs = append(errs, s.Codes.Close(ctx))
	}
	if s.mongo != nil {
		errs = append(errs, s.mongo.Close(ctx))
	}
	return errors.Join(errs...)
}
