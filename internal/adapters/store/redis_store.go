package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// RedisOptions holds configuration for connecting to a Redis server
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces the record keys, the key index and the change channel
	Prefix string
}

// RedisStore is a Redis implementation of the Store interface. Records are
// JSON values under Prefix+key, indexed by the Prefix+"keys" set. Writes are
// announced on the Prefix+"changes" channel so every process sharing the
// database sees the change; local listeners are driven from that channel.
type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
	logger *zap.Logger
	prefix string
	stopCh chan struct{}
	doneCh chan struct{}
	*changeFeed
}

// NewRedisStore connects to Redis and starts relaying change events
func NewRedisStore(options RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     options.Address,
		Password: options.Password,
		DB:       options.DB,
	})
	return newRedisStore(client, options.Prefix, logger)
}

func newRedisStore(client *redis.Client, prefix string, logger *zap.Logger) (*RedisStore, error) {
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := &RedisStore{
		client:     client,
		logger:     logger,
		prefix:     prefix,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		changeFeed: newChangeFeed(),
	}

	s.pubsub = client.Subscribe(ctx, s.channel())
	if _, err := s.pubsub.Receive(ctx); err != nil {
		s.pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	logger.Info("Opened Redis store", zap.String("address", client.Options().Addr), zap.String("prefix", prefix))
	go s.relayChanges()
	return s, nil
}

func (s *RedisStore) recordKey(key string) string { return s.prefix + "record:" + key }
func (s *RedisStore) indexKey() string            { return s.prefix + "keys" }
func (s *RedisStore) channel() string             { return s.prefix + "changes" }

// relayChanges forwards change messages from Redis to local listeners
func (s *RedisStore) relayChanges() {
	defer close(s.doneCh)
	ch := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var keys []string
			if err := json.Unmarshal([]byte(msg.Payload), &keys); err != nil {
				s.logger.Warn("Ignoring malformed change message", zap.Error(err))
				continue
			}
			s.changeFeed.publish(keys)
		case <-s.stopCh:
			return
		}
	}
}

func (s *RedisStore) announce(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	payload, err := json.Marshal(keys)
	if err != nil {
		s.logger.Error("Failed to encode change message", zap.Error(err))
		return
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		s.logger.Error("Failed to publish change message", zap.Error(err))
	}
}

// GetAll returns every record ordered by key
func (s *RedisStore) GetAll(ctx context.Context) ([]*core.Record, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = s.recordKey(k)
	}
	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	out := make([]*core.Record, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var r core.Record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			s.logger.Warn("Skipping unreadable record", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

// Get retrieves the record stored under key
func (s *RedisStore) Get(ctx context.Context, key string) (*core.Record, error) {
	str, err := s.client.Get(ctx, s.recordKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	var r core.Record
	if err := json.Unmarshal([]byte(str), &r); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return &r, nil
}

// Set stores a record, replacing any previous record with the same key
func (s *RedisStore) Set(ctx context.Context, record *core.Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(record.SubjectKey), payload, 0)
	pipe.SAdd(ctx, s.indexKey(), record.SubjectKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", record.SubjectKey, err)
	}

	s.announce(ctx, []string{record.SubjectKey})
	return nil
}

// Remove deletes the records stored under keys
func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	redisKeys := make([]string, len(keys))
	members := make([]any, len(keys))
	for i, k := range keys {
		redisKeys[i] = s.recordKey(k)
		members[i] = k
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisKeys...)
	pipe.SRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	s.announce(ctx, keys)
	return nil
}

// Clear deletes every record under the store prefix
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("redis smembers failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	// Only the listed members leave the index; a concurrent Set keeps its entry
	if err := s.Remove(ctx, keys...); err != nil {
		return fmt.Errorf("redis clear failed: %w", err)
	}

	s.logger.Debug("Cleared Redis store", zap.Int("removed_count", len(keys)))
	return nil
}

// Stop stops relaying changes and closes the Redis connection
func (s *RedisStore) Stop() {
	close(s.stopCh)
	if err := s.pubsub.Close(); err != nil {
		s.logger.Error("Failed to close Redis subscription", zap.Error(err))
	}
	<-s.doneCh
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}
