package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrStateNotFound = errors.New("oauth state not found or expired")

const oauthStatePrefix = "oauth:state:"

// OAuthStateRepository binds an authorization state token to the user who
// requested it. States are single use.
type OAuthStateRepository struct {
	Redis *redis.Client
}

func NewOAuthStateRepository(rdb *redis.Client) *OAuthStateRepository {
	return &OAuthStateRepository{Redis: rdb}
}

func (r *OAuthStateRepository) Save(ctx context.Context, state string, userID uint, ttl time.Duration) error {
	return r.Redis.Set(ctx, oauthStatePrefix+state, userID, ttl).Err()
}

func (r *OAuthStateRepository) Consume(ctx context.Context, state string) (uint, error) {
	val, err := r.Redis.GetDel(ctx, oauthStatePrefix+state).Result()
	if err == redis.Nil {
		return 0, ErrStateNotFound
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, ErrStateNotFound
	}
	return uint(id), nil
}
