package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"DMChat/service/mgo"
)

// Conversation 表示两个用户之间的私聊会话。
// ConversationID 由参与者对派生（排序后拼接），同一对用户恒定。
type Conversation struct {
	ConversationID string    `bson:"conversation_id"`
	Participants   []string  `bson:"participants"` // 排序后的两个 user_id
	LastMsgID      string    `bson:"last_msg_id,omitempty"`
	LastMsgTime    time.Time `bson:"last_msg_time,omitempty"`
	CreateTime     time.Time `bson:"create_time"`
}

func (s *Conversation) GetTableName() string { return "conversation" }

func (s *Conversation) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(s.GetTableName())
}

// Upsert creates the conversation on first message and refreshes the last
// message pointer afterwards. Single atomic document write.
func (s *Conversation) Upsert(ctx context.Context) error {
	filter := bson.M{"conversation_id": s.ConversationID}
	update := bson.M{
		"$set": bson.M{
			"last_msg_id":   s.LastMsgID,
			"last_msg_time": s.LastMsgTime,
		},
		"$setOnInsert": bson.M{
			"conversation_id": s.ConversationID,
			"participants":    s.Participants,
			"create_time":     time.Now(),
		},
	}
	_, err := s.Collection().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListByUser returns the user's conversations, most recently active first.
func (s *Conversation) ListByUser(ctx context.Context, userID string, limit int64) ([]*Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_msg_time", Value: -1}}).
		SetLimit(limit)
	cur, err := s.Collection().Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByID fetches one conversation; used to resolve delivery targets.
func (s *Conversation) FindByID(ctx context.Context, convID string) (*Conversation, error) {
	out := &Conversation{}
	err := s.Collection().FindOne(ctx, bson.M{"conversation_id": convID}).Decode(out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
