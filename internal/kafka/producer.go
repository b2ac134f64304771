package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	kafka "github.com/segmentio/kafka-go"

	"ms-orders/internal/config"
	"ms-orders/internal/models"
)

// Producer streams order lifecycle events to Kafka. Publishing is
// best-effort: callers log failures and move on.
type Producer struct {
	Writer *kafka.Writer
	topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, topics: topics}
}

func (p *Producer) Publish(topic string, key string, value []byte) error {
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: value,
		},
	)
}

func (p *Producer) publishOrder(topic string, order models.Order) error {
	msgBytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return p.Publish(topic, order.OrderCode, msgBytes)
}

func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publishOrder(p.topics.OrderCreated, order)
}

func (p *Producer) PublishOrderUpdated(order models.Order) error {
	return p.publishOrder(p.topics.OrderUpdated, order)
}

func (p *Producer) PublishOrderCancelled(order models.Order) error {
	return p.publishOrder(p.topics.OrderCancelled, order)
}

func (p *Producer) PublishOrderVerified(order models.Order) error {
	return p.publishOrder(p.topics.OrderVerified, order)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// Noop satisfies the publisher interfaces when Kafka is disabled.
type Noop struct{}

func (Noop) PublishOrderCreated(models.Order) error   { return nil }
func (Noop) PublishOrderUpdated(models.Order) error   { return nil }
func (Noop) PublishOrderCancelled(models.Order) error { return nil }
func (Noop) PublishOrderVerified(models.Order) error  { return nil }

// EnsureTopicsExist creates any missing topics against the cluster
// controller so the first publish does not race topic auto-creation.
func EnsureTopicsExist(brokers []string, topics []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	topicConfigs := make([]kafka.TopicConfig, 0, len(topics))
	for _, topic := range topics {
		topicConfigs = append(topicConfigs, kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}
	return controllerConn.CreateTopics(topicConfigs...)
}
