// Package servicerequest 工单通知单元测试
package servicerequest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
)

func setupNotifierTest(t *testing.T) (*gorm.DB, *NotificationService) {
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))
	return db, NewNotificationService(repository.NewNotificationRepository(db))
}

func TestNotificationService_NotifyStatusChange(t *testing.T) {
	_, svc := setupNotifierTest(t)
	ctx := context.Background()

	sr := &models.ServiceRequest{ID: 1, SRNumber: "SR20250115001", UserID: 7}
	svc.NotifyStatusChange(ctx, sr, models.SRStatusCompleted)

	ns, total, err := svc.List(ctx, 7, 1, 10, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, models.NotificationTypeSRStatus, ns[0].Type)
	assert.Contains(t, ns[0].Content, "SR20250115001")
	assert.Contains(t, ns[0].Content, "已完成")
	assert.Equal(t, int64(1), *ns[0].RelatedID)
}

func TestNotificationService_NotifyCommission(t *testing.T) {
	_, svc := setupNotifierTest(t)
	ctx := context.Background()

	svc.NotifyCommission(ctx, 5, "SR20250115001", 1, decimal.NewFromFloat(2.5))

	ns, _, err := svc.List(ctx, 5, 1, 10, true)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Contains(t, ns[0].Content, "2.50")
}

func TestNotificationService_ReadFlow(t *testing.T) {
	_, svc := setupNotifierTest(t)
	ctx := context.Background()

	sr := &models.ServiceRequest{ID: 1, SRNumber: "SR20250115001", UserID: 3}
	svc.NotifyStatusChange(ctx, sr, models.SRStatusAssigned)
	svc.NotifyStatusChange(ctx, sr, models.SRStatusInProgress)

	count, err := svc.CountUnread(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ns, _, err := svc.List(ctx, 3, 1, 10, true)
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, 3, ns[0].ID))

	count, err = svc.CountUnread(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, svc.MarkAllRead(ctx, 3))
	count, err = svc.CountUnread(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
