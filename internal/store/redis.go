package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/driver-agent/pkg/models"
	redisClient "github.com/richxcame/driver-agent/pkg/redis"
)

// RedisStore keeps the session records in Redis, keyed per driver. Used
// when the agent runs server-hosted rather than on a device. Redis writes
// are single commands, so atomic-visibility holds per record.
type RedisStore struct {
	client   *redisClient.Client
	driverID string
}

// NewRedisStore creates a Redis-backed session store for one driver
func NewRedisStore(client *redisClient.Client, driverID string) *RedisStore {
	return &RedisStore{client: client, driverID: driverID}
}

func (s *RedisStore) sessionKey() string {
	return fmt.Sprintf("driver:%s:session", s.driverID)
}

func (s *RedisStore) flagsKey() string {
	return fmt.Sprintf("driver:%s:flags", s.driverID)
}

// SaveSession persists the full session record
func (s *RedisStore) SaveSession(ctx context.Context, session *models.RideSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	return s.client.Set(ctx, s.sessionKey(), string(data), 0).Err()
}

// LoadSession returns the persisted session, or nil when none exists
func (s *RedisStore) LoadSession(ctx context.Context) (*models.RideSession, error) {
	data, err := s.client.GetString(ctx, s.sessionKey())
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}

	var session models.RideSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &session, nil
}

// SaveFlags persists the trip progress flags
func (s *RedisStore) SaveFlags(ctx context.Context, flags models.Flags) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode flags record: %w", err)
	}
	return s.client.Set(ctx, s.flagsKey(), string(data), 0).Err()
}

// LoadFlags returns the persisted flags, zero-valued when none exist
func (s *RedisStore) LoadFlags(ctx context.Context) (models.Flags, error) {
	var flags models.Flags

	data, err := s.client.GetString(ctx, s.flagsKey())
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return flags, nil
		}
		return flags, fmt.Errorf("read flags record: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &flags); err != nil {
		return flags, fmt.Errorf("decode flags record: %w", err)
	}
	return flags, nil
}

// Clear removes both records
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Delete(ctx, s.sessionKey(), s.flagsKey())
}
