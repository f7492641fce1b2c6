package storage

import (
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

func MemCachedClient(address string, port int) *memcache.Client {
	uri := fmt.Sprintf("%s:%d", address, port)
	client := memcache.New(uri)
	client.MaxIdleConns = 1000
	client.Timeout = 500 * time.Millisecond
	return client
}
