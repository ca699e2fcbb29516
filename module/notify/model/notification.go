package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"DMChat/service/mgo"
)

// Notification types.
const (
	TypeSystem  = "system"
	TypeFriend  = "friend"
	TypeMention = "mention"
)

// Notification 站内通知；网关按消息同样的方式尽力投递。
type Notification struct {
	NotifyID   string    `bson:"notify_id" json:"notify_id"`
	TargetID   string    `bson:"target_id" json:"target_id"`
	Type       string    `bson:"type" json:"type"`
	Body       string    `bson:"body" json:"body"`
	Read       bool      `bson:"read" json:"read"`
	CreateTime time.Time `bson:"create_time" json:"create_time"`
}

func (n *Notification) GetTableName() string { return "notification" }

func (n *Notification) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(n.GetTableName())
}

func (n *Notification) Insert(ctx context.Context) error {
	_, err := n.Collection().InsertOne(ctx, n)
	return err
}

func (n *Notification) ListByTarget(ctx context.Context, target string, unreadOnly bool, limit int64) ([]*Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{"target_id": target}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "create_time", Value: -1}}).
		SetLimit(limit)
	cur, err := n.Collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flips the read flag; only the owner may do so.
func (n *Notification) MarkRead(ctx context.Context, target, notifyID string) (bool, error) {
	res, err := n.Collection().UpdateOne(ctx,
		bson.M{"notify_id": notifyID, "target_id": target},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0 || res.MatchedCount > 0, nil
}
