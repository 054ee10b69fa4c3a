// Package commission 分佣服务单元测试
package commission

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/sevamart/service-market-backend/internal/common/errors"
	"github.com/sevamart/service-market-backend/internal/models"
	"github.com/sevamart/service-market-backend/internal/repository"
	"github.com/sevamart/service-market-backend/internal/service/hierarchy"
	"github.com/sevamart/service-market-backend/internal/service/wallet"
)

// distributionFixture 分佣测试环境
type distributionFixture struct {
	db     *gorm.DB
	svc    *DistributionService
	agent  *models.User
	taluk  *models.User
	branch *models.User
	admin  *models.User
}

// testDBSeq 给每个用例独立的内存库名
var testDBSeq atomic.Int64

// openTestDB 打开单连接的共享缓存内存库
// 裸 :memory: 下连接池的新连接会拿到空库，固定单连接规避
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:commission%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db
}

// setupDistributionTest 创建完整的分佣测试环境
// 层级：服务专员 -> 区域经理 -> 分部经理 -> 管理员
func setupDistributionTest(t *testing.T) *distributionFixture {
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.WalletTransaction{},
		&models.CommissionConfig{},
		&models.Commission{},
		&models.CommissionTransaction{},
	))

	userRepo := repository.NewUserRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	txRepo := repository.NewCommissionTransactionRepository(db)
	configRepo := repository.NewCommissionConfigRepository(db)
	walletRepo := repository.NewWalletRepository(db)

	svc := NewDistributionService(
		db,
		userRepo,
		commissionRepo,
		hierarchy.NewResolver(userRepo, 0),
		NewConfigService(configRepo, nil),
		NewTrackerService(txRepo),
		wallet.NewLedgerService(db, walletRepo),
	)

	f := &distributionFixture{db: db, svc: svc}
	f.admin = f.createUser(t, "管理员", models.UserTypeAdmin, nil)
	f.branch = f.createUser(t, "分部经理", models.UserTypeBranchManager, &f.admin.ID)
	f.taluk = f.createUser(t, "区域经理", models.UserTypeTalukManager, &f.branch.ID)
	f.agent = f.createUser(t, "服务专员", models.UserTypeServiceAgent, &f.taluk.ID)

	return f
}

func (f *distributionFixture) createUser(t *testing.T, name, userType string, parentID *int64) *models.User {
	// 复制上级 ID，避免 ParentID 指针与上级 fixture 的 ID 字段共用内存
	// （gorm Update 会写穿该指针，污染上级的 ID）
	if parentID != nil {
		id := *parentID
		parentID = &id
	}
	user := &models.User{
		Name:     name,
		UserType: userType,
		ParentID: parentID,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

// createConfig 创建标准比例配置：专员2% 区域1% 分部0.5% 管理员0.5% 推荐1%
func (f *distributionFixture) createConfig(t *testing.T, serviceType string) *models.CommissionConfig {
	config := &models.CommissionConfig{
		ServiceType:              serviceType,
		ServiceAgentCommission:   decimal.NewFromInt(2),
		TalukManagerCommission:   decimal.NewFromInt(1),
		BranchManagerCommission:  decimal.NewFromFloat(0.5),
		AdminCommission:          decimal.NewFromFloat(0.5),
		RegisteredUserCommission: decimal.NewFromInt(1),
		IsActive:                 true,
	}
	require.NoError(t, f.db.Create(config).Error)
	return config
}

func (f *distributionFixture) balance(t *testing.T, userID int64) decimal.Decimal {
	var user models.User
	require.NoError(t, f.db.First(&user, userID).Error)
	return user.WalletBalance
}

func TestDistributionService_Distribute(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.Len(t, resp.Commissions, 4)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(4)), "total = %s", resp.TotalAmount)

	// 各级余额
	assert.True(t, f.balance(t, f.agent.ID).Equal(decimal.NewFromInt(2)))
	assert.True(t, f.balance(t, f.taluk.ID).Equal(decimal.NewFromInt(1)))
	assert.True(t, f.balance(t, f.branch.ID).Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, f.balance(t, f.admin.ID).Equal(decimal.NewFromFloat(0.5)))

	// 钱包流水与佣金记录数量一致
	var wtCount, cCount int64
	f.db.Model(&models.WalletTransaction{}).Count(&wtCount)
	f.db.Model(&models.Commission{}).Count(&cCount)
	assert.Equal(t, int64(4), wtCount)
	assert.Equal(t, int64(4), cCount)

	// 流水置为 credited
	var record models.CommissionTransaction
	require.NoError(t, f.db.Where("transaction_id = ?", "TXN001").First(&record).Error)
	assert.Equal(t, models.CommissionTxStatusCredited, record.Status)
}

func TestDistributionService_Distribute_Rounding(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	// 33.33 的 2% = 0.6666 -> 0.67，1% = 0.3333 -> 0.33，0.5% = 0.16665 -> 0.17
	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN-ROUND",
		Amount:         decimal.NewFromFloat(33.33),
	})
	require.NoError(t, err)

	assert.True(t, f.balance(t, f.agent.ID).Equal(decimal.NewFromFloat(0.67)))
	assert.True(t, f.balance(t, f.taluk.ID).Equal(decimal.NewFromFloat(0.33)))
	assert.True(t, f.balance(t, f.branch.ID).Equal(decimal.NewFromFloat(0.17)))
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromFloat(1.34)))
}

func TestDistributionService_Distribute_Duplicate(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	req := &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	}

	_, err := f.svc.Distribute(ctx, req)
	require.NoError(t, err)

	// 重复执行按幂等空操作返回已有记录，余额不变
	resp, err := f.svc.Distribute(ctx, req)
	require.NoError(t, err)
	assert.Len(t, resp.Commissions, 4)
	assert.True(t, resp.TotalAmount.Equal(decimal.NewFromInt(4)))
	assert.True(t, f.balance(t, f.agent.ID).Equal(decimal.NewFromInt(2)))

	var cCount int64
	f.db.Model(&models.Commission{}).Count(&cCount)
	assert.Equal(t, int64(4), cCount)

	// 不同交易号正常执行
	req2 := *req
	req2.TransactionID = "TXN002"
	_, err = f.svc.Distribute(ctx, &req2)
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.agent.ID).Equal(decimal.NewFromInt(4)))
}

func TestDistributionService_Distribute_RetryAfterFailure(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	// 预置一条失败流水，重试应复用并成功
	reason := "数据库超时"
	require.NoError(t, f.db.Create(&models.CommissionTransaction{
		UserID:        f.agent.ID,
		Amount:        decimal.NewFromInt(100),
		ServiceType:   models.ServiceTypeRecharge,
		TransactionID: "TXN-RETRY",
		Status:        models.CommissionTxStatusFailed,
		FailureReason: &reason,
	}).Error)

	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN-RETRY",
		Amount:         decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Commissions, 4)

	var record models.CommissionTransaction
	require.NoError(t, f.db.Where("transaction_id = ?", "TXN-RETRY").First(&record).Error)
	assert.Equal(t, models.CommissionTxStatusCredited, record.Status)
}

func TestDistributionService_Distribute_RegisteredUser(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	refUser := f.createUser(t, "推荐用户", models.UserTypeRegisteredUser, nil)

	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID:   f.agent.ID,
		RegisteredUserID: &refUser.ID,
		ServiceType:      models.ServiceTypeRecharge,
		TransactionID:    "TXN001",
		Amount:           decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Commissions, 5)
	assert.True(t, f.balance(t, refUser.ID).Equal(decimal.NewFromInt(1)))
}

func TestDistributionService_Distribute_RegisteredUserIsAgent(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	// 推荐人即服务专员本人，推荐佣金跳过
	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID:   f.agent.ID,
		RegisteredUserID: &f.agent.ID,
		ServiceType:      models.ServiceTypeRecharge,
		TransactionID:    "TXN001",
		Amount:           decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Commissions, 4)
	assert.True(t, f.balance(t, f.agent.ID).Equal(decimal.NewFromInt(2)))
}

func TestDistributionService_Distribute_ZeroRateSkipped(t *testing.T) {
	f := setupDistributionTest(t)
	ctx := context.Background()

	// 仅专员有比例，其余角色为 0
	require.NoError(t, f.db.Create(&models.CommissionConfig{
		ServiceType:            models.ServiceTypeTaxi,
		ServiceAgentCommission: decimal.NewFromInt(3),
		IsActive:               true,
	}).Error)

	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeTaxi,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.Len(t, resp.Commissions, 1)
	assert.Equal(t, f.agent.ID, resp.Commissions[0].UserID)
	assert.True(t, f.balance(t, f.taluk.ID).IsZero())
}

func TestDistributionService_Distribute_InactiveBeneficiarySkipped(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	// 停用区域经理，其佣金跳过，其余照常
	require.NoError(t, f.db.Model(f.taluk).Update("status", models.UserStatusDisabled).Error)

	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Commissions, 3)
	assert.True(t, f.balance(t, f.taluk.ID).IsZero())
	assert.True(t, f.balance(t, f.branch.ID).Equal(decimal.NewFromFloat(0.5)))
}

func TestDistributionService_Distribute_PartialChainOnCycle(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	// 构造 taluk <-> branch 的环，admin 不可达
	require.NoError(t, f.db.Model(f.admin).Update("parent_id", nil).Error)
	require.NoError(t, f.db.Model(f.branch).Update("parent_id", f.taluk.ID).Error)

	resp, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	// 专员 + 环检测前解析出的两级
	assert.Len(t, resp.Commissions, 3)
	assert.True(t, f.balance(t, f.agent.ID).Equal(decimal.NewFromInt(2)))
	assert.True(t, f.balance(t, f.admin.ID).IsZero())
}

func TestDistributionService_Distribute_TrackerWriteFailure(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	// 流水登记写库失败必须上抛，不能当成重复请求吞掉
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").
		Register("fail_tracker_insert", func(tx *gorm.DB) {
			if tx.Statement.Table == "commission_transactions" {
				tx.AddError(assert.AnError)
			}
		}))

	_, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)
	assert.NotErrorIs(t, err, apperrors.ErrDuplicateDistribution)

	// 没有任何入账和佣金记录
	var cCount int64
	f.db.Model(&models.Commission{}).Count(&cCount)
	assert.Equal(t, int64(0), cCount)
	assert.True(t, f.balance(t, f.agent.ID).IsZero())
}

func TestDistributionService_Distribute_ReferrerLookupError(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	// 推荐人行损坏触发真实查询错误，和"推荐人不存在"区别处理
	referrer := f.createUser(t, "推荐用户", models.UserTypeRegisteredUser, nil)
	require.NoError(t, f.db.Exec(
		"UPDATE users SET wallet_balance = 'broken' WHERE id = ?", referrer.ID).Error)

	_, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID:   f.agent.ID,
		ServiceType:      models.ServiceTypeRecharge,
		TransactionID:    "TXN001",
		Amount:           decimal.NewFromInt(100),
		RegisteredUserID: &referrer.ID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)

	// 整笔分佣失败并落 failed 流水
	var record models.CommissionTransaction
	require.NoError(t, f.db.Where("transaction_id = ?", "TXN001").First(&record).Error)
	assert.Equal(t, models.CommissionTxStatusFailed, record.Status)

	var cCount int64
	f.db.Model(&models.Commission{}).Count(&cCount)
	assert.Equal(t, int64(0), cCount)
	assert.True(t, f.balance(t, f.agent.ID).IsZero())
}

func TestDistributionService_Distribute_ConfigNotFound(t *testing.T) {
	f := setupDistributionTest(t)
	ctx := context.Background()

	_, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeGrocery,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, apperrors.ErrCommissionConfigNotFound)
}

func TestDistributionService_Distribute_AgentNotFound(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)

	_, err := f.svc.Distribute(context.Background(), &DistributeRequest{
		ServiceAgentID: 9999,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, apperrors.ErrAgentNotFound)
}

func TestDistributionService_Distribute_InvalidAmount(t *testing.T) {
	f := setupDistributionTest(t)

	_, err := f.svc.Distribute(context.Background(), &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.Zero,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParams)
}

func TestDistributionService_GetByTransaction(t *testing.T) {
	f := setupDistributionTest(t)
	f.createConfig(t, models.ServiceTypeRecharge)
	ctx := context.Background()

	_, err := f.svc.Distribute(ctx, &DistributeRequest{
		ServiceAgentID: f.agent.ID,
		ServiceType:    models.ServiceTypeRecharge,
		TransactionID:  "TXN001",
		Amount:         decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	commissions, err := f.svc.GetByTransaction(ctx, models.ServiceTypeRecharge, "TXN001")
	require.NoError(t, err)
	assert.Len(t, commissions, 4)

	_, err = f.svc.GetByTransaction(ctx, models.ServiceTypeRecharge, "TXN-MISSING")
	assert.ErrorIs(t, err, apperrors.ErrCommissionNotFound)
}
