// Package servicerequest 服务工单
package servicerequest

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/common/utils"
	"github.com/sevamart/service-market-backend/internal/repository"
)

// 工单号生成默认参数
const (
	DefaultNumberPrefix = "SR"
	DefaultSeqTTL       = 48 * time.Hour
)

// NumberGenerator 工单号生成器
// 形如 SR20250115003：前缀 + 日期 + 当日序号。
// 序号首选 Redis 按日自增，Redis 不可用时退化为数据库当日计数，
// 退化路径下的撞号由工单号唯一索引兜底，调用方重试
type NumberGenerator struct {
	redis  *redis.Client
	srRepo *repository.ServiceRequestRepository
	prefix string
	seqTTL time.Duration
}

// NewNumberGenerator 创建工单号生成器
// redis 可为 nil，此时始终走数据库计数
func NewNumberGenerator(rdb *redis.Client, srRepo *repository.ServiceRequestRepository, prefix string, seqTTL time.Duration) *NumberGenerator {
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	if seqTTL <= 0 {
		seqTTL = DefaultSeqTTL
	}
	return &NumberGenerator{
		redis:  rdb,
		srRepo: srRepo,
		prefix: prefix,
		seqTTL: seqTTL,
	}
}

// seqKey 当日序号键
func (g *NumberGenerator) seqKey(day time.Time) string {
	return fmt.Sprintf("sr:seq:%s", utils.DayKey(day))
}

// Next 生成下一个工单号
func (g *NumberGenerator) Next(ctx context.Context, now time.Time) (string, error) {
	if g.redis != nil {
		seq, err := g.redis.Incr(ctx, g.seqKey(now)).Result()
		if err == nil {
			if seq == 1 {
				// 首个序号时设置过期，跨日后键自然淘汰
				g.redis.Expire(ctx, g.seqKey(now), g.seqTTL)
			}
			return utils.FormatSRNumber(g.prefix, now, seq), nil
		}
		logger.Warn("Redis 序号生成失败，退化为数据库计数", zap.Error(err))
	}

	count, err := g.srRepo.CountByDay(ctx, now)
	if err != nil {
		return "", err
	}
	return utils.FormatSRNumber(g.prefix, now, count+1), nil
}
