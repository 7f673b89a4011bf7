package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wall/config"

	"github.com/go-redis/redis/v8"
)

const (
	REACTION_KEY_PREFIX = "wall:reactions:"    // hash: тип реакции -> счетчик
	APPROVED_FEED_KEY   = "wall:approved_feed" // zset одобренных постов, score = unix ts
	WALL_CACHE_TTL      = 24 * time.Hour
	MAX_FEED_SIZE       = 1000
)

var RedisClient *redis.Client

func InitRedis() error {
	if config.AppConfig == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}

	redisConfig := config.AppConfig.Redis
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	// Тест соединения
	_, err := RedisClient.Ping(context.Background()).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}

func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// IncrReactionCount увеличивает счетчик типа реакции в кеше поста
func IncrReactionCount(ctx context.Context, postID int64, reactionType string) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}
	key := fmt.Sprintf("%s%d", REACTION_KEY_PREFIX, postID)
	pipe := RedisClient.Pipeline()
	pipe.HIncrBy(ctx, key, reactionType, 1)
	pipe.Expire(ctx, key, WALL_CACHE_TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetCachedReactionCounts читает снимок счетчиков из кеша.
// redis.Nil-подобный пустой hash означает промах - счетчики перестроят из БД.
func GetCachedReactionCounts(ctx context.Context, postID int64) (map[string]int, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis not available")
	}
	key := fmt.Sprintf("%s%d", REACTION_KEY_PREFIX, postID)
	raw, err := RedisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, redis.Nil
	}
	counts := make(map[string]int, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		counts[k] = n
	}
	return counts, nil
}

// SetCachedReactionCounts перезаписывает кеш счетчиков целиком
func SetCachedReactionCounts(ctx context.Context, postID int64, counts map[string]int) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}
	key := fmt.Sprintf("%s%d", REACTION_KEY_PREFIX, postID)
	pipe := RedisClient.Pipeline()
	pipe.Del(ctx, key)
	for reactionType, n := range counts {
		pipe.HSet(ctx, key, reactionType, n)
	}
	pipe.Expire(ctx, key, WALL_CACHE_TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// AddToApprovedFeedCache кладет одобренный пост в zset ленты
func AddToApprovedFeedCache(ctx context.Context, postID int64, createdAt time.Time) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}
	pipe := RedisClient.Pipeline()
	pipe.ZAdd(ctx, APPROVED_FEED_KEY, &redis.Z{
		Score:  float64(createdAt.Unix()),
		Member: strconv.FormatInt(postID, 10),
	})
	// Ограничиваем размер ленты
	pipe.ZRemRangeByRank(ctx, APPROVED_FEED_KEY, 0, -MAX_FEED_SIZE-1)
	pipe.Expire(ctx, APPROVED_FEED_KEY, WALL_CACHE_TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveFromApprovedFeedCache убирает пост из zset ленты
func RemoveFromApprovedFeedCache(ctx context.Context, postID int64) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not available")
	}
	return RedisClient.ZRem(ctx, APPROVED_FEED_KEY, strconv.FormatInt(postID, 10)).Err()
}

// GetApprovedFeedPage возвращает страницу id одобренных постов из кеша,
// новые сверху
func GetApprovedFeedPage(ctx context.Context, page, limit int) ([]int64, error) {
	if RedisClient == nil {
		return nil, fmt.Errorf("redis not available")
	}
	start := int64((page - 1) * limit)
	stop := start + int64(limit) - 1
	raw, err := RedisClient.ZRevRange(ctx, APPROVED_FEED_KEY, start, stop).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
