// Package cache оборачивает Redis: кэш значений конфигурации и счетчики
// ограничителя запросов. Недоступный Redis деградирует в «без кэша»,
// запросы из-за него не падают.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

// NewCache создает клиент Redis и проверяет соединение.
// Возвращает nil без ошибки, если адрес не задан — кэширование отключено.
func NewCache(cfg *Config) (*Cache, error) {
	if cfg == nil || cfg.Addr == "" {
		log.Println("[Cache] Redis address is not configured, caching disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Get возвращает значение ключа; пустая строка и false — промах или отказ Redis
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		log.Printf("[Cache] get %s failed: %v", key, err)
		return "", false
	}
	return val, true
}

// Set записывает значение с TTL; отказ только логируется
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("[Cache] set %s failed: %v", key, err)
	}
}

// Delete удаляет ключ (инвалидация при изменении конфигурации)
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("[Cache] delete %s failed: %v", key, err)
	}
}

// Increment атомарно увеличивает счетчик и выставляет TTL при первом обращении.
// Возвращает новое значение счетчика.
func (c *Cache) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("cache is not available")
	}

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			log.Printf("[Cache] expire %s failed: %v", key, err)
		}
	}
	return count, nil
}

// Available сообщает, отвечает ли Redis в данный момент
func (c *Cache) Available(ctx context.Context) bool {
	if c == nil {
		return false
	}
	return c.client.Ping(ctx).Err() == nil
}

// Close закрывает соединение с Redis
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
