// internal/service/order/infrastructure/adapter/events_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"orderflow/internal/pkg/mq"
	"orderflow/internal/service/order/domain"
)

// EventsKafkaAdapter 是 port.EventStream 的 Kafka 实现。
// 订单生命周期事件按订单 id 分区，供风控、报表等下游消费。
type EventsKafkaAdapter struct {
	writer *kafka.Writer
}

func NewEventsKafkaAdapter(writer *kafka.Writer) *EventsKafkaAdapter {
	return &EventsKafkaAdapter{writer: writer}
}

// Publish 把事件序列化后发送，key 为订单 id。
func (a *EventsKafkaAdapter) Publish(ctx context.Context, event *domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), payload)
}

func (a *EventsKafkaAdapter) Close() error {
	return a.writer.Close()
}
