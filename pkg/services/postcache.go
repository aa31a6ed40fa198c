package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sn_metrics "socialnet/pkg/metrics"
	"socialnet/pkg/model"
	"socialnet/pkg/storage"

	"github.com/ServiceWeaver/weaver"
	"github.com/redis/go-redis/v9"
)

// PostCacheService maps a post id to a previously materialized post
// document. Values are cached fully expanded, so a hit reflects sender
// data as of cache time.
type PostCacheService interface {
	Get(ctx context.Context, postID int64) (model.Post, bool, error)
	Put(ctx context.Context, post model.Post, ttlSeconds int) error
	Invalidate(ctx context.Context, postID int64) error
}

type postCacheServiceOptions struct {
	RedisAddr string `toml:"redis_address"`
	RedisPort int    `toml:"redis_port"`
	Region    string `toml:"region"`
}

type postCacheService struct {
	weaver.Implements[PostCacheService]
	weaver.WithConfig[postCacheServiceOptions]
	redisClient *redis.Client
}

func (p *postCacheService) Init(ctx context.Context) error {
	logger := p.Logger(ctx)
	p.redisClient = storage.RedisClient(p.Config().RedisAddr, p.Config().RedisPort)
	logger.Info("post cache service running!", "region", p.Config().Region,
		"redis_addr", p.Config().RedisAddr, "redis_port", p.Config().RedisPort,
	)
	return nil
}

func cacheKey(postID int64) string {
	return fmt.Sprintf("posts/%d", postID)
}

// Get returns the cached post. A miss is not an error.
func (p *postCacheService) Get(ctx context.Context, postID int64) (model.Post, bool, error) {
	logger := p.Logger(ctx)

	result, err := p.redisClient.Get(ctx, cacheKey(postID)).Bytes()
	if err == redis.Nil {
		sn_metrics.CacheMisses.Get(sn_metrics.RegionLabel{Region: p.Config().Region}).Inc()
		return model.Post{}, false, nil
	}
	if err != nil {
		logger.Error("error reading post from redis", "msg", err.Error())
		return model.Post{}, false, err
	}

	var post model.Post
	err = json.Unmarshal(result, &post)
	if err != nil {
		logger.Error("error parsing post from redis result", "msg", err.Error())
		return model.Post{}, false, err
	}
	sn_metrics.CacheHits.Get(sn_metrics.RegionLabel{Region: p.Config().Region}).Inc()
	return post, true, nil
}

func (p *postCacheService) Put(ctx context.Context, post model.Post, ttlSeconds int) error {
	logger := p.Logger(ctx)

	postJSON, err := json.Marshal(post)
	if err != nil {
		logger.Error("error converting post to json", "post_id", post.PostID)
		return err
	}
	err = p.redisClient.Set(ctx, cacheKey(post.PostID), postJSON, time.Second*time.Duration(ttlSeconds)).Err()
	if err != nil {
		logger.Error("error writing post to redis", "msg", err.Error())
		return err
	}
	return nil
}

func (p *postCacheService) Invalidate(ctx context.Context, postID int64) error {
	logger := p.Logger(ctx)

	err := p.redisClient.Del(ctx, cacheKey(postID)).Err()
	if err != nil {
		logger.Error("error deleting post from redis", "msg", err.Error())
		return err
	}
	return nil
}
