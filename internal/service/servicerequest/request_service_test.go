// Package servicerequest 工单服务单元测试
package servicerequest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
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

// srFixture 工单测试环境
type srFixture struct {
	db       *gorm.DB
	svc      *RequestService
	bridge   *CommissionBridge
	notifier *NotificationService
	customer *models.User
}

// testDBSeq 给每个用例独立的内存库名
var testDBSeq atomic.Int64

// openTestDB 打开单连接的共享缓存内存库
// 裸 :memory: 下连接池的新连接会拿到空库，固定单连接规避
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:servicerequest%d?mode=memory&cache=shared", testDBSeq.Add(1))
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

// setupSRTest 创建完整的工单测试环境（miniredis 工单号 + 桥接器）
func setupSRTest(t *testing.T) *srFixture {
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.WalletTransaction{},
		&models.ServiceRequest{},
		&models.ServiceRequestStatusUpdate{},
		&models.ServiceRequestCommissionTransaction{},
		&models.CommissionTransaction{},
		&models.Notification{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srRepo := repository.NewServiceRequestRepository(db)
	userRepo := repository.NewUserRepository(db)
	resolver := hierarchy.NewResolver(userRepo, 0)
	notifier := NewNotificationService(repository.NewNotificationRepository(db))
	ledger := wallet.NewLedgerService(db, repository.NewWalletRepository(db))
	bridge := NewCommissionBridge(db, repository.NewSRCommissionRepository(db), userRepo, resolver, ledger, notifier, DefaultBridgeRates())

	svc := NewRequestService(
		db,
		srRepo,
		repository.NewStatusUpdateRepository(db),
		userRepo,
		repository.NewCommissionTransactionRepository(db),
		NewNumberGenerator(rdb, srRepo, "", 0),
		bridge,
		notifier,
	)

	f := &srFixture{db: db, svc: svc, bridge: bridge, notifier: notifier}
	f.customer = f.createUser(t, "客户", models.UserTypeCustomer, nil)
	return f
}

func (f *srFixture) createUser(t *testing.T, name, userType string, parentID *int64) *models.User {
	user := &models.User{
		Name:     name,
		UserType: userType,
		ParentID: parentID,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *srFixture) createSR(t *testing.T) *models.ServiceRequest {
	sr, err := f.svc.Create(context.Background(), &CreateRequest{
		UserID:      f.customer.ID,
		ServiceType: models.ServiceTypeRecharge,
		Amount:      decimal.NewFromInt(100),
		ServiceData: json.RawMessage(`{"mobile_number":"9876543210","provider":"airtel"}`),
	})
	require.NoError(t, err)
	return sr
}

func TestRequestService_Create(t *testing.T) {
	f := setupSRTest(t)

	sr := f.createSR(t)
	assert.Regexp(t, `^SR\d{8}001$`, sr.SRNumber)
	assert.Equal(t, models.SRStatusNew, sr.Status)
	assert.Equal(t, models.PaymentStatusPending, sr.PaymentStatus)
	assert.Equal(t, "9876543210", sr.ServiceData["mobile_number"])

	// 序号递增
	sr2 := f.createSR(t)
	assert.Regexp(t, `^SR\d{8}002$`, sr2.SRNumber)

	// 创建人收到通知
	var count int64
	f.db.Model(&models.Notification{}).Where("user_id = ?", f.customer.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestRequestService_Create_InvalidData(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	// 金额非法
	_, err := f.svc.Create(ctx, &CreateRequest{
		UserID:      f.customer.ID,
		ServiceType: models.ServiceTypeRecharge,
		Amount:      decimal.Zero,
		ServiceData: json.RawMessage(`{"mobile_number":"9876543210","provider":"airtel"}`),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParams)

	// 业务数据缺字段
	_, err = f.svc.Create(ctx, &CreateRequest{
		UserID:      f.customer.ID,
		ServiceType: models.ServiceTypeRecharge,
		Amount:      decimal.NewFromInt(100),
		ServiceData: json.RawMessage(`{"provider":"airtel"}`),
	})
	assert.ErrorIs(t, err, apperrors.ErrServiceDataInvalid)

	// 未知业务类型
	_, err = f.svc.Create(ctx, &CreateRequest{
		UserID:      f.customer.ID,
		ServiceType: "unknown",
		Amount:      decimal.NewFromInt(100),
		ServiceData: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, apperrors.ErrServiceDataInvalid)

	// 创建人不存在
	_, err = f.svc.Create(ctx, &CreateRequest{
		UserID:      9999,
		ServiceType: models.ServiceTypeRecharge,
		Amount:      decimal.NewFromInt(100),
		ServiceData: json.RawMessage(`{"mobile_number":"9876543210","provider":"airtel"}`),
	})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestRequestService_Transition_HappyPath(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()
	actor := int64(99)

	sr := f.createSR(t)

	sr, err := f.svc.Transition(ctx, sr.ID, models.SRStatusAssigned, actor, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SRStatusAssigned, sr.Status)

	sr, err = f.svc.Transition(ctx, sr.ID, models.SRStatusInProgress, actor, nil, nil)
	require.NoError(t, err)

	sr, err = f.svc.Transition(ctx, sr.ID, models.SRStatusCompleted, actor, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SRStatusCompleted, sr.Status)

	// 每次流转一条审计记录
	history, err := f.svc.History(ctx, sr.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.SRStatusNew, history[0].FromStatus)
	assert.Equal(t, models.SRStatusCompleted, history[2].ToStatus)
}

func TestRequestService_Transition_Invalid(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	sr := f.createSR(t)

	// new 不能直接到 in_progress / completed
	_, err := f.svc.Transition(ctx, sr.ID, models.SRStatusInProgress, 1, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = f.svc.Transition(ctx, sr.ID, models.SRStatusCompleted, 1, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	// 终态后不允许任何流转
	_, err = f.svc.Transition(ctx, sr.ID, models.SRStatusCancelled, 1, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, sr.ID, models.SRStatusAssigned, 1, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	// 未知状态
	_, err = f.svc.Transition(ctx, sr.ID, "shipped", 1, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParams)

	// 失败流转不落审计
	history, err := f.svc.History(ctx, sr.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRequestService_Transition_CancelWithReason(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	sr := f.createSR(t)
	reason := "客户主动取消"

	sr, err := f.svc.Transition(ctx, sr.ID, models.SRStatusCancelled, f.customer.ID, &reason, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SRStatusCancelled, sr.Status)

	history, err := f.svc.History(ctx, sr.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "客户主动取消", *history[0].Reason)
}

func TestRequestService_Transition_BridgeFailureRecorded(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	agent := f.createUser(t, "网点专员", models.UserTypeServiceAgent, nil)
	sr := f.createSR(t)
	require.NoError(t, f.db.Model(sr).Update("pincode_agent_id", agent.ID).Error)

	_, err := f.svc.Transition(ctx, sr.ID, models.SRStatusAssigned, 1, nil, nil)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, sr.ID, models.SRStatusInProgress, 1, nil, nil)
	require.NoError(t, err)

	// 佣金登记写库失败
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").
		Register("fail_bridge_insert", func(tx *gorm.DB) {
			if tx.Statement.Table == "service_request_commission_transactions" {
				tx.AddError(assert.AnError)
			}
		}))

	// 流转本身成功，桥接失败落 failed 流水
	got, err := f.svc.Transition(ctx, sr.ID, models.SRStatusCompleted, 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SRStatusCompleted, got.Status)

	var record models.CommissionTransaction
	require.NoError(t, f.db.
		Where("service_type = ? AND transaction_id = ?", got.ServiceType, got.SRNumber).
		First(&record).Error)
	assert.Equal(t, models.CommissionTxStatusFailed, record.Status)
	require.NotNil(t, record.FailureReason)
	assert.NotEmpty(t, *record.FailureReason)

	var count int64
	f.db.Model(&models.ServiceRequestCommissionTransaction{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRequestService_Transition_ConcurrentConflict(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	sr := f.createSR(t)

	// 模拟并发：读取后状态被他人改走
	require.NoError(t, f.db.Model(&models.ServiceRequest{}).
		Where("id = ?", sr.ID).
		Update("status", models.SRStatusCancelled).Error)

	// 本地内存里还是 new，但数据库前置校验会发现已不是
	_, err := f.svc.Transition(ctx, sr.ID, models.SRStatusAssigned, 1, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestRequestService_AssignStakeholder(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	agent := f.createUser(t, "网点专员", models.UserTypeServiceAgent, nil)
	sr := f.createSR(t)

	got, err := f.svc.AssignStakeholder(ctx, sr.ID, models.StakeholderPincodeAgent, agent.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got.PincodeAgentID)
	assert.Equal(t, agent.ID, *got.PincodeAgentID)
	// 仅指派干系人不触发流转
	assert.Equal(t, models.SRStatusNew, got.Status)

	// 指派履约人后进入 assigned，并通知履约人
	got, err = f.svc.AssignStakeholder(ctx, sr.ID, models.StakeholderAssignee, agent.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SRStatusAssigned, got.Status)

	var count int64
	f.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", agent.ID, models.NotificationTypeSRAssigned).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRequestService_AssignStakeholder_Invalid(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	sr := f.createSR(t)

	_, err := f.svc.AssignStakeholder(ctx, sr.ID, "supervisor", 1, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStakeholder)

	_, err = f.svc.AssignStakeholder(ctx, sr.ID, models.StakeholderAssignee, 9999, 1)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	// 终态工单不允许指派
	_, err = f.svc.Transition(ctx, sr.ID, models.SRStatusCancelled, 1, nil, nil)
	require.NoError(t, err)
	agent := f.createUser(t, "网点专员", models.UserTypeServiceAgent, nil)
	_, err = f.svc.AssignStakeholder(ctx, sr.ID, models.StakeholderAssignee, agent.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestRequestService_GetByNumber(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	sr := f.createSR(t)

	got, err := f.svc.GetByNumber(ctx, sr.SRNumber)
	require.NoError(t, err)
	assert.Equal(t, sr.ID, got.ID)

	_, err = f.svc.GetByNumber(ctx, "SR19700101001")
	assert.ErrorIs(t, err, apperrors.ErrServiceRequestNotFound)
}

func TestRequestService_MarkPaid(t *testing.T) {
	f := setupSRTest(t)
	ctx := context.Background()

	sr := f.createSR(t)

	got, err := f.svc.MarkPaid(ctx, sr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)

	// 重复标记幂等
	got, err = f.svc.MarkPaid(ctx, sr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
}
