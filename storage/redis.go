package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"orthrus/core"
)

// Sorted-set keys holding each entity kind, scored by timestamp.
const (
	redisKeyEvents    = "orthrus:events"
	redisKeyAttacks   = "orthrus:attacks"
	redisKeyResponses = "orthrus:responses"
)

// RedisClient wraps the Redis connection shared by the Redis-backed stores.
type RedisClient struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisClient creates a new Redis connection.
func NewRedisClient(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	return &RedisClient{
		client: client,
		logger: logger,
	}
}

// Ping tests the Redis connection.
func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// scoreMin converts the inclusive lower time bound into a sorted-set range
// boundary. Scores are Unix milliseconds: nanosecond counts do not fit
// exactly in a float64, so the range is only a prefilter and
// SearchCriteria.matches applies the exact bound on the decoded timestamps.
func scoreMin(earliest time.Time) string {
	if earliest.IsZero() {
		return "-inf"
	}
	return strconv.FormatInt(earliest.UnixMilli(), 10)
}

// RedisEventStore persists events in a Redis sorted set.
type RedisEventStore struct {
	observerList
	redis *RedisClient
}

// NewRedisEventStore creates an event store backed by the given connection.
func NewRedisEventStore(client *RedisClient) *RedisEventStore {
	return &RedisEventStore{redis: client}
}

// AddEvent stores an event and notifies observers.
func (s *RedisEventStore) AddEvent(ctx context.Context, event *core.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = s.redis.client.ZAdd(ctx, redisKeyEvents, redis.Z{
		Score:  float64(event.Timestamp.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}

	s.notifyEvent(*event)
	return nil
}

// FindEvents returns events matching the criteria, in chronological order.
func (s *RedisEventStore) FindEvents(ctx context.Context, criteria SearchCriteria) ([]core.Event, error) {
	members, err := s.redis.client.ZRangeByScore(ctx, redisKeyEvents, &redis.ZRangeBy{
		Min: scoreMin(criteria.Earliest),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var found []core.Event
	for _, member := range members {
		var e core.Event
		if err := json.Unmarshal([]byte(member), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		if !criteria.matches(e.DetectionPointID, e.ClientApplication, e.Username, e.Timestamp) {
			continue
		}
		found = append(found, e)
	}
	return found, nil
}

// RedisAttackStore persists attacks in a Redis sorted set.
type RedisAttackStore struct {
	observerList
	redis *RedisClient
}

// NewRedisAttackStore creates an attack store backed by the given
// connection.
func NewRedisAttackStore(client *RedisClient) *RedisAttackStore {
	return &RedisAttackStore{redis: client}
}

// AddAttack stores an attack and notifies observers.
func (s *RedisAttackStore) AddAttack(ctx context.Context, attack *core.Attack) error {
	data, err := json.Marshal(attack)
	if err != nil {
		return fmt.Errorf("failed to marshal attack: %w", err)
	}

	err = s.redis.client.ZAdd(ctx, redisKeyAttacks, redis.Z{
		Score:  float64(attack.Timestamp.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store attack: %w", err)
	}

	s.notifyAttack(*attack)
	return nil
}

// FindAttacks returns attacks matching the criteria, in chronological order.
func (s *RedisAttackStore) FindAttacks(ctx context.Context, criteria SearchCriteria) ([]core.Attack, error) {
	members, err := s.redis.client.ZRangeByScore(ctx, redisKeyAttacks, &redis.ZRangeBy{
		Min: scoreMin(criteria.Earliest),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query attacks: %w", err)
	}

	var found []core.Attack
	for _, member := range members {
		var a core.Attack
		if err := json.Unmarshal([]byte(member), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attack: %w", err)
		}
		if !criteria.matches(a.DetectionPointID, a.ClientApplication, a.Username, a.Timestamp) {
			continue
		}
		found = append(found, a)
	}
	return found, nil
}

// RedisResponseStore persists response records in a Redis sorted set.
type RedisResponseStore struct {
	observerList
	redis *RedisClient
}

// NewRedisResponseStore creates a response store backed by the given
// connection.
func NewRedisResponseStore(client *RedisClient) *RedisResponseStore {
	return &RedisResponseStore{redis: client}
}

// AddResponse stores a response record and notifies observers.
func (s *RedisResponseStore) AddResponse(ctx context.Context, response *core.ResponseRecord) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	err = s.redis.client.ZAdd(ctx, redisKeyResponses, redis.Z{
		Score:  float64(response.Timestamp.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}

	s.notifyResponse(*response)
	return nil
}

// FindResponses returns response records matching the criteria, in
// chronological order.
func (s *RedisResponseStore) FindResponses(ctx context.Context, criteria SearchCriteria) ([]core.ResponseRecord, error) {
	members, err := s.redis.client.ZRangeByScore(ctx, redisKeyResponses, &redis.ZRangeBy{
		Min: scoreMin(criteria.Earliest),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}

	var found []core.ResponseRecord
	for _, member := range members {
		var r core.ResponseRecord
		if err := json.Unmarshal([]byte(member), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if !criteria.matches(r.DetectionPointID, r.ClientApplication, r.Username, r.Timestamp) {
			continue
		}
		found = append(found, r)
	}
	return found, nil
}
