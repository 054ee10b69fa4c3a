// Package hierarchy 上级链解析
package hierarchy

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/common/logger"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
)

// DefaultMaxDepth 上级链默认最大层级
const DefaultMaxDepth = 8

// Resolver 上级链解析器
// 沿 parent_id 逐级向上走，带深度上限与环检测；
// 出错时返回已解析出的部分链，调用方可据此做降级处理
type Resolver struct {
	userRepo *repository.UserRepository
	maxDepth int
}

// NewResolver 创建上级链解析器
func NewResolver(userRepo *repository.UserRepository, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{
		userRepo: userRepo,
		maxDepth: maxDepth,
	}
}

// ParentChain 解析用户的上级链（不含用户本身，自下而上排序）
// 链中出现环或超出最大层级时返回部分链与对应错误，
// parent_id 指向不存在的用户时同样截断返回
func (r *Resolver) ParentChain(ctx context.Context, userID int64) ([]*models.User, error) {
	user, err := r.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	visited := map[int64]struct{}{userID: {}}
	chain := make([]*models.User, 0, 4)
	parentID := user.ParentID

	for parentID != nil {
		if len(chain) >= r.maxDepth {
			logger.Warn("上级链超出最大层级",
				zap.Int64("user_id", userID),
				zap.Int("max_depth", r.maxDepth))
			return chain, apperrors.ErrHierarchyTooDeep
		}
		if _, ok := visited[*parentID]; ok {
			logger.Warn("上级链存在环",
				zap.Int64("user_id", userID),
				zap.Int64("cycle_at", *parentID))
			return chain, apperrors.ErrHierarchyCycle
		}

		parent, err := r.userRepo.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 悬空的 parent_id，链在此截断
				logger.Warn("上级链指向不存在的用户",
					zap.Int64("user_id", userID),
					zap.Int64("missing_parent_id", *parentID))
				return chain, nil
			}
			return chain, apperrors.ErrDatabaseError.WithError(err)
		}

		visited[parent.ID] = struct{}{}
		chain = append(chain, parent)
		parentID = parent.ParentID
	}

	return chain, nil
}

// FirstOfType 在上级链中找第一个指定类型的用户
func (r *Resolver) FirstOfType(ctx context.Context, userID int64, userType string) (*models.User, error) {
	chain, err := r.ParentChain(ctx, userID)
	if err != nil && len(chain) == 0 {
		return nil, err
	}
	for _, u := range chain {
		if u.UserType == userType {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}
