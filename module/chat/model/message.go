package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"DMChat/service/mgo"
)

// Message 一条私聊消息。网关将其视为不透明负载转发，不读消息体。
type Message struct {
	MsgID          string    `bson:"msg_id" json:"msg_id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SendID         string    `bson:"send_id" json:"send_id"`
	RecvID         string    `bson:"recv_id" json:"recv_id"`
	Body           string    `bson:"body" json:"body"`
	CreateTime     time.Time `bson:"create_time" json:"create_time"`
}

func (m *Message) GetTableName() string { return "msg" }

func (m *Message) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(m.GetTableName())
}

func (m *Message) Insert(ctx context.Context) error {
	_, err := m.Collection().InsertOne(ctx, m)
	return err
}

// ListByConversation pages the durable history, newest first.
func (m *Message) ListByConversation(ctx context.Context, convID string, limit int64, before time.Time) ([]*Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{"conversation_id": convID}
	if !before.IsZero() {
		filter["create_time"] = bson.M{"$lt": before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "create_time", Value: -1}}).
		SetLimit(limit)
	cur, err := m.Collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
