// Package tests 提供测试框架配置
package tests

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/tests/helpers"
)

// TestSetupTestDB_Migration 迁移后所有业务表可写入
func TestSetupTestDB_Migration(t *testing.T) {
	db := SetupTestDB(t)
	ctx := NewTestContext()

	// 层级链：管理员 <- 分部经理 <- 区域经理 <- 专员
	agent, taluk, branch, admin := helpers.NewTestHierarchy()
	require.NoError(t, db.WithContext(ctx).Create(admin).Error)
	branch.ParentID = &admin.ID
	require.NoError(t, db.WithContext(ctx).Create(branch).Error)
	taluk.ParentID = &branch.ID
	require.NoError(t, db.WithContext(ctx).Create(taluk).Error)
	agent.ParentID = &taluk.ID
	require.NoError(t, db.WithContext(ctx).Create(agent).Error)

	config := helpers.NewTestCommissionConfig(models.ServiceTypeRecharge)
	require.NoError(t, db.WithContext(ctx).Create(config).Error)

	sr := helpers.NewTestServiceRequest(agent.ID, models.ServiceTypeRecharge, decimal.NewFromInt(100))
	require.NoError(t, db.WithContext(ctx).Create(sr).Error)

	notif := helpers.NewTestNotification(agent.ID, models.NotificationTypeSRStatus)
	require.NoError(t, db.WithContext(ctx).Create(notif).Error)

	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	assert.Equal(t, int64(4), userCount)
}

// TestCleanupDB 清理后所有表为空
func TestCleanupDB(t *testing.T) {
	db := SetupTestDB(t)

	agent, _, _, _ := helpers.NewTestHierarchy()
	require.NoError(t, db.Create(agent).Error)
	require.NoError(t, db.Create(helpers.NewTestCommissionConfig(models.ServiceTypeTaxi)).Error)
	require.NoError(t, db.Create(helpers.NewTestNotification(agent.ID, models.NotificationTypeCommission)).Error)

	CleanupDB(t, db)

	for _, model := range []interface{}{
		&models.User{}, &models.CommissionConfig{}, &models.Notification{},
	} {
		var count int64
		db.Model(model).Count(&count)
		assert.Equal(t, int64(0), count)
	}
}
