package natsx

import (
	"context"
	"errors"
)

type Producer struct {
	client *Client
}

func NewProducer(c *Client) *Producer { return &Producer{client: c} }

// Publish sends data on subject. Fire and forget with flush bounded by ctx.
func (p *Producer) Publish(ctx context.Context, subject string, data []byte) error {
	if p == nil || p.client == nil || p.client.nc == nil {
		return errors.New("producer not initialized")
	}
	if err := p.client.nc.Publish(subject, data); err != nil {
		return err
	}
	return p.client.nc.FlushWithContext(ctx)
}
