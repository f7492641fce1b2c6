package storage

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const FANOUT_EXCHANGE = "fanout"

func RabbitMQClient(username string, password string, address string, port int) (*amqp.Channel, *amqp.Connection, error) {
	uri := fmt.Sprintf("amqp://%s:%s@%s:%d/", username, password, address, port)
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("error establishing connection with rabbitmq: %s", err.Error())
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("error openning channel for rabbitmq: %s", err.Error())
	}
	return ch, conn, nil
}

// FanOutRoutingKey names the queue (and binding) for one region.
func FanOutRoutingKey(region string) string {
	return fmt.Sprintf("fanout-%s", region)
}

// DeclareFanOutQueue declares the topic exchange and the durable per-region
// queue bound to it. Producers and consumers both call it.
func DeclareFanOutQueue(ch *amqp.Channel, region string) (string, error) {
	err := ch.ExchangeDeclare(FANOUT_EXCHANGE, "topic", true, false, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("error declaring exchange for rabbitmq: %s", err.Error())
	}
	routingKey := FanOutRoutingKey(region)
	_, err = ch.QueueDeclare(routingKey, true, false, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("error declaring queue for rabbitmq: %s", err.Error())
	}
	err = ch.QueueBind(routingKey, routingKey, FANOUT_EXCHANGE, false, nil)
	if err != nil {
		return "", fmt.Errorf("error binding queue for rabbitmq: %s", err.Error())
	}
	return routingKey, nil
}
