// Package repository 通知仓储单元测试
package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sevamart/service-market-backend/internal/models"
)

// setupNotificationTestDB 创建通知测试数据库
func setupNotificationTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Notification{})
	require.NoError(t, err)

	return db
}

func TestNotificationRepository_CreateBatchAndList(t *testing.T) {
	db := setupNotificationTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	relatedID := int64(1)
	ns := []*models.Notification{
		{UserID: 1, Type: models.NotificationTypeSRStatus, Title: "工单已完成", Content: "您的工单 SR20250115001 已完成", RelatedID: &relatedID},
		{UserID: 2, Type: models.NotificationTypeSRAssigned, Title: "新工单指派", Content: "工单 SR20250115001 已指派给您", RelatedID: &relatedID},
	}
	require.NoError(t, repo.CreateBatch(ctx, ns))

	// 空切片不报错
	require.NoError(t, repo.CreateBatch(ctx, nil))

	got, total, err := repo.ListByUser(ctx, 1, 0, 10, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "工单已完成", got[0].Title)
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	db := setupNotificationTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	n := &models.Notification{UserID: 1, Type: models.NotificationTypeCommission, Title: "佣金到账", Content: "您有一笔佣金入账"}
	require.NoError(t, repo.Create(ctx, n))

	count, err := repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// 他人无法标记
	require.NoError(t, repo.MarkRead(ctx, 2, n.ID))
	count, err = repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.MarkRead(ctx, 1, n.ID))
	count, err = repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	got, _, err := repo.ListByUser(ctx, 1, 0, 10, false)
	require.NoError(t, err)
	assert.True(t, got[0].IsRead)
	assert.NotNil(t, got[0].ReadAt)
}

func TestNotificationRepository_MarkAllRead(t *testing.T) {
	db := setupNotificationTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID: 1, Type: models.NotificationTypeSRStatus, Title: "状态变更", Content: "工单状态已更新",
		}))
	}

	require.NoError(t, repo.MarkAllRead(ctx, 1))

	unread, total, err := repo.ListByUser(ctx, 1, 0, 10, true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, unread)
}
