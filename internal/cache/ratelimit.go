package cache

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"time"
)

// RateLimiter ограничивает число запросов с одного IP на эндпоинт
// в фиксированном окне. Счетчики живут в Redis; при недоступном Redis
// ограничитель пропускает запросы.
type RateLimiter struct {
	cache       *Cache
	maxRequests int64
	window      time.Duration
}

func NewRateLimiter(c *Cache, maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:       c,
		maxRequests: int64(maxRequests),
		window:      window,
	}
}

// Middleware возвращает chi-совместимый обработчик ограничения запросов
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		key := fmt.Sprintf("rate_limit:%s:%s", host, r.URL.Path)
		count, err := rl.cache.Increment(r.Context(), key, rl.window)
		if err != nil {
			// Redis недоступен — пропускаем без ограничения
			log.Printf("[RateLimiter] counter unavailable: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > rl.maxRequests {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
