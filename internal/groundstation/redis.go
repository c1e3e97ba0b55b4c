package groundstation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink дописывает кадры в поток Redis (XADD с ограничением длины).
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink создаёт получатель. Соединение проверяется PING.
func NewRedisSink(ctx context.Context, addr, stream string, maxLen int64) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &RedisSink{client: client, stream: stream, maxLen: maxLen}, nil
}

// Record добавляет запись в поток.
func (s *RedisSink) Record(ctx context.Context, r Record) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: recordValues(r),
	}).Err()
}

// Close закрывает клиент.
func (s *RedisSink) Close() error { return s.client.Close() }

// recordValues раскладывает кадр в поля записи потока.
func recordValues(r Record) map[string]interface{} {
	names := telemetryNames(r.Frame.Kind)
	v := make(map[string]interface{}, len(r.Frame.Values)+3)
	v["session"] = r.Session
	v["kind"] = r.Frame.Kind
	v["time_ns"] = r.Time.UnixNano()
	for i, x := range r.Frame.Values {
		if i < len(names) {
			v[names[i]] = x
		}
	}
	return v
}
