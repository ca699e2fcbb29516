package mgo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"DMChat/logger"
)

type Config struct {
	URI            string
	Database       string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
	MaxRetry       int
}

var (
	mu     sync.RWMutex
	client *mongo.Client
	dbName string
)

// Init connects with bounded retries and exponential backoff. The REST
// collaborators cannot serve without the store, so this is synchronous.
func Init(ctx context.Context, cfg Config) error {
	if cfg.URI == "" || cfg.Database == "" {
		return errors.New("mongo uri/database missing")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 20
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout)

	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetry; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		cli, err := mongo.Connect(cctx, opts)
		if err == nil {
			err = cli.Ping(cctx, readpref.Primary())
		}
		cancel()
		if err == nil {
			mu.Lock()
			client = cli
			dbName = cfg.Database
			mu.Unlock()
			logger.Infof("[mgo] connected database=%s", cfg.Database)
			return nil
		}
		lastErr = err
		logger.Warnf("[mgo] connect attempt %d: %v", attempt+1, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return errors.Wrap(lastErr, "mongo connect")
}

// GetDB panics when called before Init; storage callers are only reachable
// after main has wired the store.
func GetDB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	if client == nil {
		panic("mongo not initialized, call mgo.Init first")
	}
	return client.Database(dbName)
}

func Close(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if client == nil {
		return nil
	}
	err := client.Disconnect(ctx)
	client = nil
	return err
}
