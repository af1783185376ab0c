package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studytrack-backend/internal/models"
)

// Publisher fans events out to a user's live connections.
type Publisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage)
}

func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("publisher: failed to encode %s message: %v", msg.Type, err)
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		log.Printf("publisher: failed to publish %s to user %s: %v", msg.Type, userID, err)
	}
}
