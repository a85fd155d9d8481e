package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Implementation identifiers the configuration document uses to select
// store backends and observers.
const (
	ImplInMemoryEventStore    = "orthrus/storage.InMemoryEventStore"
	ImplInMemoryAttackStore   = "orthrus/storage.InMemoryAttackStore"
	ImplInMemoryResponseStore = "orthrus/storage.InMemoryResponseStore"

	ImplSQLiteEventStore    = "orthrus/storage.SQLiteEventStore"
	ImplSQLiteAttackStore   = "orthrus/storage.SQLiteAttackStore"
	ImplSQLiteResponseStore = "orthrus/storage.SQLiteResponseStore"

	ImplRedisEventStore    = "orthrus/storage.RedisEventStore"
	ImplRedisAttackStore   = "orthrus/storage.RedisAttackStore"
	ImplRedisResponseStore = "orthrus/storage.RedisResponseStore"

	ImplLoggingObserver = "orthrus/storage.LoggingObserver"
	ImplMetricsObserver = "orthrus/storage.MetricsObserver"
)

// ErrUnknownImplementation is returned when a configured identifier does
// not name a known implementation.
var ErrUnknownImplementation = errors.New("unknown implementation identifier")

// Backends carries connection settings for the backends that need them.
type Backends struct {
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// Registry resolves implementation identifiers from the configuration
// document into live stores and observers. The SQLite and Redis connections
// are opened on first use and shared by every store that names them.
type Registry struct {
	backends Backends
	logger   *zap.SugaredLogger

	mu     sync.Mutex
	sqlite *SQLite
	redis  *RedisClient
}

// NewRegistry creates a registry with the given backend settings.
func NewRegistry(backends Backends, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		backends: backends,
		logger:   logger,
	}
}

func (r *Registry) openSQLite() (*SQLite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sqlite != nil {
		return r.sqlite, nil
	}

	db, err := NewSQLite(r.backends.SQLitePath, r.logger)
	if err != nil {
		return nil, err
	}
	r.sqlite = db
	return db, nil
}

func (r *Registry) openRedis() (*RedisClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.redis != nil {
		return r.redis, nil
	}

	client := NewRedisClient(r.backends.RedisAddr, r.backends.RedisPassword,
		r.backends.RedisDB, r.backends.RedisPoolSize, r.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", r.backends.RedisAddr, err)
	}

	r.redis = client
	return client, nil
}

// EventStore resolves an event store identifier.
func (r *Registry) EventStore(impl string) (EventStore, error) {
	switch impl {
	case ImplInMemoryEventStore:
		return NewInMemoryEventStore(), nil
	case ImplSQLiteEventStore:
		db, err := r.openSQLite()
		if err != nil {
			return nil, err
		}
		return NewSQLiteEventStore(db), nil
	case ImplRedisEventStore:
		client, err := r.openRedis()
		if err != nil {
			return nil, err
		}
		return NewRedisEventStore(client), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownImplementation, impl)
	}
}

// AttackStore resolves an attack store identifier.
func (r *Registry) AttackStore(impl string) (AttackStore, error) {
	switch impl {
	case ImplInMemoryAttackStore:
		return NewInMemoryAttackStore(), nil
	case ImplSQLiteAttackStore:
		db, err := r.openSQLite()
		if err != nil {
			return nil, err
		}
		return NewSQLiteAttackStore(db), nil
	case ImplRedisAttackStore:
		client, err := r.openRedis()
		if err != nil {
			return nil, err
		}
		return NewRedisAttackStore(client), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownImplementation, impl)
	}
}

// ResponseStore resolves a response store identifier.
func (r *Registry) ResponseStore(impl string) (ResponseStore, error) {
	switch impl {
	case ImplInMemoryResponseStore:
		return NewInMemoryResponseStore(), nil
	case ImplSQLiteResponseStore:
		db, err := r.openSQLite()
		if err != nil {
			return nil, err
		}
		return NewSQLiteResponseStore(db), nil
	case ImplRedisResponseStore:
		client, err := r.openRedis()
		if err != nil {
			return nil, err
		}
		return NewRedisResponseStore(client), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownImplementation, impl)
	}
}

// Observer resolves an observer identifier.
func (r *Registry) Observer(impl string) (Observer, error) {
	switch impl {
	case ImplLoggingObserver:
		return NewLoggingObserver(r.logger), nil
	case ImplMetricsObserver:
		return NewMetricsObserver(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownImplementation, impl)
	}
}

// Close releases the shared backend connections. Stores resolved from this
// registry must not be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	if r.sqlite != nil {
		if err := r.sqlite.Close(); err != nil {
			r.logger.Errorw("Failed to close SQLite database", "error", err)
			firstErr = err
		}
		r.sqlite = nil
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			r.logger.Errorw("Failed to close Redis connection", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		r.redis = nil
	}
	return firstErr
}
