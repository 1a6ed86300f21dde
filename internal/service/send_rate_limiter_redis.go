package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sendCountScript incrementa el contador del sender y fija su expiración en el primer envío de la ventana.
var sendCountScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

const redisSendKeyPrefix = "messenger:send:"

type redisSendRateLimiter struct {
	client redis.Scripter
	window time.Duration
	max    int64
}

// NewRedisSendRateLimiter crea un limitador de ventana fija compartido entre instancias.
// Devuelve nil (sin límite) sin cliente o cuando max <= 0.
func NewRedisSendRateLimiter(client *redis.Client, window time.Duration, max int) SendRateLimiter {
	if client == nil || max <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return &redisSendRateLimiter{
		client: client,
		window: window,
		max:    int64(max),
	}
}

func (l *redisSendRateLimiter) Allow(ctx context.Context, sender string) (bool, error) {
	key := senderKey(sender)
	if key == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	count, err := sendCountScript.Run(ctx, l.client, []string{redisSendKeyPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return true, fmt.Errorf("redis send counter: %w", err)
	}
	return count <= l.max, nil
}
