/*
 * @module service/governance/cache
 * @description 生效解析结果缓存，默认进程内TTL缓存，配置Redis后切换为分布式缓存
 * @architecture 分层架构 - 缓存层
 * @documentReference dev_docs/requirements.md
 * @stateFlow 解析命中写入缓存 -> TTL过期或发布/停用后按编码失效
 * @rules 缓存键按（编码, 分支）组织，失效按编码整体清除，保证发布后读到新版本
 * @dependencies github.com/go-redis/redis/v8, sync
 * @refs dev_docs/model.md
 */

package governance

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ResolverCache 解析结果缓存接口
type ResolverCache interface {
	Get(code, branchID string) ([]byte, bool)
	Set(code, branchID string, value []byte, ttl time.Duration)
	Invalidate(code string)
}

// memoryCacheEntry 进程内缓存条目
type memoryCacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryResolverCache 进程内TTL缓存
type MemoryResolverCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]memoryCacheEntry // code -> branchID -> entry
}

// NewMemoryResolverCache 创建进程内缓存实例
func NewMemoryResolverCache() *MemoryResolverCache {
	return &MemoryResolverCache{
		entries: make(map[string]map[string]memoryCacheEntry),
	}
}

func (c *MemoryResolverCache) Get(code, branchID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byBranch, ok := c.entries[code]
	if !ok {
		return nil, false
	}
	entry, ok := byBranch[branchID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryResolverCache) Set(code, branchID string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byBranch, ok := c.entries[code]
	if !ok {
		byBranch = make(map[string]memoryCacheEntry)
		c.entries[code] = byBranch
	}
	byBranch[branchID] = memoryCacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (c *MemoryResolverCache) Invalidate(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
}

// RedisResolverCache Redis分布式缓存，同一编码的各分支结果存在同一个Hash键下
type RedisResolverCache struct {
	client *redis.Client
	prefix string
}

// NewRedisResolverCache 创建Redis缓存实例
func NewRedisResolverCache(client *redis.Client) *RedisResolverCache {
	return &RedisResolverCache{
		client: client,
		prefix: "confighub:resolve:",
	}
}

func (c *RedisResolverCache) key(code string) string {
	return c.prefix + code
}

// 空分支在Hash字段中的占位
const globalBranchField = "__global__"

func branchField(branchID string) string {
	if branchID == "" {
		return globalBranchField
	}
	return branchID
}

func (c *RedisResolverCache) Get(code, branchID string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	value, err := c.client.HGet(ctx, c.key(code), branchField(branchID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("解析缓存读取失败 code=%s: %v", code, err)
		}
		return nil, false
	}
	return value, true
}

func (c *RedisResolverCache) Set(code, branchID string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, c.key(code), branchField(branchID), value)
	pipe.Expire(ctx, c.key(code), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("解析缓存写入失败 code=%s: %v", code, err)
	}
}

func (c *RedisResolverCache) Invalidate(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.client.Del(ctx, c.key(code)).Err(); err != nil {
		log.Printf("解析缓存失效失败 code=%s: %v", code, err)
	}
}

// NewResolverCacheFromEnv 根据环境变量选择缓存实现
// REDIS_URL 配置时使用Redis，否则使用进程内缓存
func NewResolverCacheFromEnv() ResolverCache {
	redisURL := getEnvWithDefault("REDIS_URL", "")
	if redisURL == "" {
		return NewMemoryResolverCache()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("REDIS_URL 解析失败，回退进程内缓存: %v", err)
		return NewMemoryResolverCache()
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis连接失败，回退进程内缓存: %v", err)
		return NewMemoryResolverCache()
	}
	fmt.Println("解析缓存使用Redis:", opts.Addr)
	return NewRedisResolverCache(client)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
