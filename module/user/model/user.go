package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"DMChat/service/mgo"
)

// Status
const (
	UserNormal int32 = 0
	UserBanned int32 = 1
	UserClosed int32 = 2
)

// User 用户主档；偏好/设备等扩展信息单独拆表。
type User struct {
	UserID       string    `bson:"user_id" json:"UserID"` // 全局唯一、不可变（主键）
	Nickname     string    `bson:"nickname" json:"Nickname"`
	FaceURL      string    `bson:"face_url,omitempty" json:"FaceURL"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Status       int32     `bson:"status" json:"Status"`
	CreateTime   time.Time `bson:"create_time" json:"CreateTime"`
}

func (u *User) GetTableName() string { return "user" }

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.GetTableName())
}

func (u *User) Insert(ctx context.Context) error {
	_, err := u.Collection().InsertOne(ctx, u)
	return err
}

func (u *User) FindByNickname(ctx context.Context, nickname string) (*User, error) {
	out := &User{}
	err := u.Collection().FindOne(ctx, bson.M{"nickname": nickname}).Decode(out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *User) FindByID(ctx context.Context, userID string) (*User, error) {
	out := &User{}
	err := u.Collection().FindOne(ctx, bson.M{"user_id": userID}).Decode(out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
