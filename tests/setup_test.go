// Package tests 提供测试框架配置
package tests

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sevamart/service-market-backend/internal/models"
)

// SetupTestDB 返回一个用于测试的 SQLite 内存数据库
func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect to test database")

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.User{},
		&models.WalletTransaction{},
		&models.CommissionConfig{},
		&models.Commission{},
		&models.CommissionTransaction{},
		&models.ServiceRequest{},
		&models.ServiceRequestStatusUpdate{},
		&models.ServiceRequestCommissionTransaction{},
		&models.Notification{},
		&models.OperationLog{},
	)
	require.NoError(t, err, "failed to migrate test database")

	return db
}

// NewTestContext 返回一个用于测试的 Context
func NewTestContext() context.Context {
	return context.Background()
}

// TestMain 设置测试环境
func TestMain(m *testing.M) {
	// 设置测试环境变量
	os.Setenv("GO_ENV", "test")

	// 运行测试
	code := m.Run()

	// 退出
	os.Exit(code)
}

// CleanupDB 清理数据库中的所有数据
func CleanupDB(t *testing.T, db *gorm.DB) {
	tables := []string{
		"service_request_commission_transactions",
		"service_request_status_updates",
		"service_requests",
		"commission_transactions",
		"commissions",
		"commission_configs",
		"wallet_transactions",
		"notifications",
		"operation_logs",
		"users",
	}

	for _, table := range tables {
		db.Exec("DELETE FROM " + table)
	}
}
