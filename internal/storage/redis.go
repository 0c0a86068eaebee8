// Package storage provides the Redis-backed reputation store the policy
// package reads and writes: banned/whitelisted addresses and IPs. Slimmed
// from the pool's full persistence layer (shares, blocks, miner balances,
// payments, hashrate history) since match outcomes are settled through the
// broker and never persisted locally; only the abuse-prevention lists
// survive a restart.
package storage

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/saltmark/hunt-server/internal/util"
)

const (
	keyPrefix    = "hunt:"
	keyBlacklist = keyPrefix + "blacklist"
	keyWhitelist = keyPrefix + "whitelist"
)

// RedisClient wraps the Redis operations the policy store needs.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client.
func NewRedisClient(url, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	util.Info("Connected to Redis at ", url)
	return &RedisClient{client: client, ctx: ctx}, nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// IsBlacklisted checks if an address is blacklisted.
func (r *RedisClient) IsBlacklisted(address string) (bool, error) {
	return r.client.SIsMember(r.ctx, keyBlacklist, address).Result()
}

// IsWhitelisted checks if an IP is whitelisted.
func (r *RedisClient) IsWhitelisted(ip string) (bool, error) {
	return r.client.SIsMember(r.ctx, keyWhitelist, ip).Result()
}

// AddToBlacklist adds an address to the blacklist.
func (r *RedisClient) AddToBlacklist(address string) error {
	return r.client.SAdd(r.ctx, keyBlacklist, address).Err()
}

// RemoveFromBlacklist removes an address from the blacklist.
func (r *RedisClient) RemoveFromBlacklist(address string) error {
	return r.client.SRem(r.ctx, keyBlacklist, address).Err()
}

// GetBlacklist returns all blacklisted addresses.
func (r *RedisClient) GetBlacklist() ([]string, error) {
	return r.client.SMembers(r.ctx, keyBlacklist).Result()
}

// GetWhitelist returns all whitelisted IPs.
func (r *RedisClient) GetWhitelist() ([]string, error) {
	return r.client.SMembers(r.ctx, keyWhitelist).Result()
}

// AddToWhitelist adds an IP to the whitelist.
func (r *RedisClient) AddToWhitelist(ip string) error {
	return r.client.SAdd(r.ctx, keyWhitelist, ip).Err()
}

// RemoveFromWhitelist removes an IP from the whitelist.
func (r *RedisClient) RemoveFromWhitelist(ip string) error {
	return r.client.SRem(r.ctx, keyWhitelist, ip).Err()
}
