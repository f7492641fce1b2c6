package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

func RedisClient(ctx context.Context, address string, port int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", address, port),
		Password: "",
		DB:       0, // use default DB
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis cannot be reached at %s:%d: %s", address, port, err.Error())
	}
	return client, nil
}
