// Package helpers 提供测试辅助工具
package helpers

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sevamart/service-market-backend/internal/models"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// RandomString 生成随机字符串
func RandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// RandomPhone 生成随机手机号
func RandomPhone() string {
	return fmt.Sprintf("9%09d", rand.Intn(1000000000))
}

// RandomInt 生成随机整数
func RandomInt(min, max int) int {
	return rand.Intn(max-min+1) + min
}

// NewTestUser 创建指定角色的测试用户
func NewTestUser(userType string, parentID *int64) *models.User {
	phone := RandomPhone()
	return &models.User{
		Phone:    &phone,
		Name:     "测试用户" + RandomString(4),
		UserType: userType,
		ParentID: parentID,
		Status:   models.UserStatusActive,
	}
}

// NewTestHierarchy 创建一条完整的层级链：专员 -> 区域经理 -> 分部经理 -> 管理员
// 返回顺序与链序一致，专员在前
func NewTestHierarchy() (agent, taluk, branch, admin *models.User) {
	admin = NewTestUser(models.UserTypeAdmin, nil)
	branch = NewTestUser(models.UserTypeBranchManager, nil)
	taluk = NewTestUser(models.UserTypeTalukManager, nil)
	agent = NewTestUser(models.UserTypeServiceAgent, nil)
	return agent, taluk, branch, admin
}

// NewTestCommissionConfig 创建测试佣金配置
func NewTestCommissionConfig(serviceType string) *models.CommissionConfig {
	return &models.CommissionConfig{
		ServiceType:              serviceType,
		ServiceAgentCommission:   decimal.NewFromInt(5),
		TalukManagerCommission:   decimal.NewFromInt(2),
		BranchManagerCommission:  decimal.NewFromInt(1),
		AdminCommission:          decimal.NewFromInt(1),
		RegisteredUserCommission: decimal.NewFromFloat(0.5),
		IsActive:                 true,
	}
}

// NewTestServiceRequest 创建测试工单
func NewTestServiceRequest(userID int64, serviceType string, amount decimal.Decimal) *models.ServiceRequest {
	return &models.ServiceRequest{
		SRNumber:    fmt.Sprintf("SR%s%04d", time.Now().Format("20060102"), rand.Intn(10000)),
		UserID:      userID,
		ServiceType: serviceType,
		Amount:      amount,
		Status:      models.SRStatusNew,
	}
}

// NewTestNotification 创建测试通知
func NewTestNotification(userID int64, notificationType string) *models.Notification {
	return &models.Notification{
		UserID:  userID,
		Type:    notificationType,
		Title:   "测试通知",
		Content: "测试通知内容" + RandomString(6),
	}
}
