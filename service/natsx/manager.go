package natsx

import (
	"context"
	"fmt"
)

// Manager 统一门面：对外只暴露这一个对象来用
type Manager struct {
	client   *Client
	producer *Producer
	consumer *Consumer
}

func NewManager(cfg Config) (*Manager, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{
		client:   c,
		producer: NewProducer(c),
		consumer: NewConsumer(c),
	}, nil
}

// Close 释放资源（优雅关闭订阅与连接）
func (m *Manager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

func (m *Manager) Publish(ctx context.Context, subject string, data []byte) error {
	if m == nil || m.producer == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.producer.Publish(ctx, subject, data)
}

func (m *Manager) Subscribe(subject, queue string, h MsgHandler) error {
	if m == nil || m.consumer == nil {
		return fmt.Errorf("manager not initialized")
	}
	return m.consumer.Subscribe(subject, queue, h)
}
