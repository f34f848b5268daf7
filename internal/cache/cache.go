// Package cache provides Redis-backed storage for the dashboard snapshot
// and the audit trail mirror
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/savegress/amldesk/pkg/models"
)

// Default TTLs
const (
	TTLDashboard = 15 * time.Minute
)

// Keys, relative to the prefix
const (
	KeyDashboard = "dashboard:latest"
	KeyAudit     = "audit"
)

// ErrMiss is returned when a key is absent or caching is disabled
var ErrMiss = errors.New("cache miss")

// Cache provides Redis caching operations. A disabled cache accepts
// writes and reports misses.
type Cache struct {
	client    *redis.Client
	keyPrefix string
	enabled   bool
}

// Config holds cache configuration
type Config struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	Enabled   bool   `yaml:"enabled"`
}

// New connects to Redis when cfg.Enabled
func New(ctx context.Context, cfg *Config) (*Cache, error) {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "amldesk"
	}
	if !cfg.Enabled {
		return &Cache{keyPrefix: prefix}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Cache{
		client:    client,
		keyPrefix: prefix,
		enabled:   true,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsEnabled returns whether caching is enabled
func (c *Cache) IsEnabled() bool {
	return c.enabled
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// key generates a cache key with prefix
func (c *Cache) key(parts ...string) string {
	key := c.keyPrefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// Get decodes the JSON value at key into dest
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.enabled {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set stores value as JSON with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes keys
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled || len(keys) == 0 {
		return nil
	}

	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.key(k)
	}

	return c.client.Del(ctx, fullKeys...).Err()
}

// Audit mirror

// PushAudit prepends entry to the audit list and trims it to capacity
func (c *Cache) PushAudit(ctx context.Context, entry models.AuditEntry, capacity int) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := c.key(KeyAudit)
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(capacity-1))
	_, err = pipe.Exec(ctx)
	return err
}

// LoadAudit returns up to limit audit entries, newest first
func (c *Cache) LoadAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	if !c.enabled || limit <= 0 {
		return nil, nil
	}

	raw, err := c.client.LRange(ctx, c.key(KeyAudit), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.AuditEntry, 0, len(raw))
	for _, item := range raw {
		var e models.AuditEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Stats returns cache statistics
func (c *Cache) Stats(ctx context.Context) (map[string]interface{}, error) {
	if !c.enabled {
		return map[string]interface{}{"enabled": false}, nil
	}

	dbSize, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	auditLen, err := c.client.LLen(ctx, c.key(KeyAudit)).Result()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"enabled":     true,
		"keys":        dbSize,
		"audit_items": auditLen,
	}, nil
}
