package database

import (
	"context"
	"fmt"
	"time"

	"github.com/docflow/docflow/backend/go-services/internal/config"
	"github.com/docflow/docflow/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects and pings, retrying with a doubling backoff until
// cfg.ConnectAttempts is used up or ctx ends. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.ConnectBackoff
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var client *mongo.Client
		client, err = connectOnce(ctx, cfg.URI, cfg.Timeout)
		if err == nil {
			return client, nil
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("mongo connect: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("mongo unreachable after %d attempts: %w", attempts, err)
}

func connectOnce(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
