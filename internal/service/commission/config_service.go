// Package commission 佣金配置与分佣
package commission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/common/metrics"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
)

// configCacheTTL 生效配置的缓存时长
const configCacheTTL = 5 * time.Minute

// ConfigService 佣金配置服务
// 生效配置读多写少，经 Redis 短缓存；写操作后主动失效
type ConfigService struct {
	configRepo *repository.CommissionConfigRepository
	redis      *redis.Client
}

// NewConfigService 创建佣金配置服务
// redis 可为 nil，此时直接读库
func NewConfigService(configRepo *repository.CommissionConfigRepository, rdb *redis.Client) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		redis:      rdb,
	}
}

// cacheKey 生效配置缓存键
func (s *ConfigService) cacheKey(serviceType, provider string) string {
	if provider == "" {
		provider = "-"
	}
	return fmt.Sprintf("commission:config:%s:%s", serviceType, provider)
}

// Resolve 解析 (service_type, provider) 在指定时刻的生效配置
// 多条命中时取 ID 最小的一条
func (s *ConfigService) Resolve(ctx context.Context, serviceType, provider string, at time.Time) (*models.CommissionConfig, error) {
	key := s.cacheKey(serviceType, provider)
	if s.redis != nil {
		data, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var cached models.CommissionConfig
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil && cached.ValidAt(at) {
				metrics.GetMetrics().RecordCacheHit("commission_config")
				return &cached, nil
			}
		}
		metrics.GetMetrics().RecordCacheMiss("commission_config")
	}

	config, err := s.configRepo.FindActive(ctx, serviceType, provider, at)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCommissionConfigNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if s.redis != nil {
		if data, jsonErr := json.Marshal(config); jsonErr == nil {
			s.redis.Set(ctx, key, data, configCacheTTL)
		}
	}

	return config, nil
}

// RateFor 取配置中指定角色的佣金比例，未识别的角色返回 0
func RateFor(config *models.CommissionConfig, userType string) decimal.Decimal {
	switch userType {
	case models.UserTypeServiceAgent:
		return config.ServiceAgentCommission
	case models.UserTypeTalukManager:
		return config.TalukManagerCommission
	case models.UserTypeBranchManager:
		return config.BranchManagerCommission
	case models.UserTypeAdmin:
		return config.AdminCommission
	case models.UserTypeRegisteredUser:
		return config.RegisteredUserCommission
	default:
		return decimal.Zero
	}
}

// Create 创建佣金配置
func (s *ConfigService) Create(ctx context.Context, config *models.CommissionConfig) error {
	if config.ServiceType == "" {
		return apperrors.ErrInvalidParams.WithMessage("service_type 不能为空")
	}
	if err := validateRates(config); err != nil {
		return err
	}
	if config.ValidFrom != nil && config.ValidTo != nil && config.ValidTo.Before(*config.ValidFrom) {
		return apperrors.ErrInvalidParams.WithMessage("有效期结束不能早于开始")
	}

	if err := s.configRepo.Create(ctx, config); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	s.invalidate(ctx, config)
	return nil
}

// GetByID 根据 ID 获取配置
func (s *ConfigService) GetByID(ctx context.Context, id int64) (*models.CommissionConfig, error) {
	config, err := s.configRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCommissionConfigNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return config, nil
}

// List 分页获取配置列表
func (s *ConfigService) List(ctx context.Context, page, pageSize int, serviceType string) ([]*models.CommissionConfig, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	configs, total, err := s.configRepo.List(ctx, (page-1)*pageSize, pageSize, serviceType)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return configs, total, nil
}

// Deactivate 停用配置
func (s *ConfigService) Deactivate(ctx context.Context, id int64) error {
	config, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.configRepo.Deactivate(ctx, id); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	s.invalidate(ctx, config)
	return nil
}

// invalidate 清除配置缓存
func (s *ConfigService) invalidate(ctx context.Context, config *models.CommissionConfig) {
	if s.redis == nil {
		return
	}
	provider := ""
	if config.Provider != nil {
		provider = *config.Provider
	}
	s.redis.Del(ctx, s.cacheKey(config.ServiceType, provider), s.cacheKey(config.ServiceType, ""))
}

// validateRates 校验各角色比例在 [0, 100] 区间
func validateRates(config *models.CommissionConfig) error {
	hundred := decimal.NewFromInt(100)
	rates := []decimal.Decimal{
		config.AdminCommission,
		config.BranchManagerCommission,
		config.TalukManagerCommission,
		config.ServiceAgentCommission,
		config.RegisteredUserCommission,
		config.APIProviderCommission,
	}
	for _, rate := range rates {
		if rate.Sign() < 0 || rate.GreaterThan(hundred) {
			return apperrors.ErrInvalidParams.WithMessage("佣金比例必须在 0 到 100 之间")
		}
	}
	return nil
}
