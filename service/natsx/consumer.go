package natsx

import (
	"errors"

	"github.com/nats-io/nats.go"

	"DMChat/logger"
)

// MsgHandler processes one bus message. A returned error is logged, not
// retried (best-effort delivery semantics).
type MsgHandler func(subject string, data []byte) error

type Consumer struct {
	client *Client
}

func NewConsumer(c *Client) *Consumer { return &Consumer{client: c} }

// Subscribe binds handler to subject within a queue group, so running a
// second process does not double-deliver.
func (c *Consumer) Subscribe(subject, queue string, h MsgHandler) error {
	if c == nil || c.client == nil || c.client.nc == nil {
		return errors.New("consumer not initialized")
	}
	cb := func(m *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[natsx] handler panic subject=%s: %v", m.Subject, r)
			}
		}()
		if err := h(m.Subject, m.Data); err != nil {
			logger.Errorf("[natsx] handler err subject=%s: %v", m.Subject, err)
		}
	}

	var sub *nats.Subscription
	var err error
	if queue != "" {
		sub, err = c.client.nc.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = c.client.nc.Subscribe(subject, cb)
	}
	if err != nil {
		return err
	}
	c.client.track(sub)
	return nil
}
