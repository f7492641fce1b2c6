package storage

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

func NatsClient(url string, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("error connecting to nats: %s", err.Error())
	}
	return conn, nil
}
