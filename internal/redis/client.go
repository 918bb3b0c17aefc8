package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// AwaitingEmailKey holds the consultation kind a client is entering an e-mail for.
func AwaitingEmailKey(clientID int64) string {
	return "conv:awaiting_email:" + strconv.FormatInt(clientID, 10)
}

// ContactBookKey is the hash of clients verified by the operator.
const ContactBookKey = "operator:contacts"

// OperatorFeedChannel carries live operator feed events between instances.
const OperatorFeedChannel = "operator:feed"
