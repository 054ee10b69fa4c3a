package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionConfig 佣金比例配置
// 同一 (service_type, provider) 取第一条生效配置，各角色比例相互独立，
// 未分配的残差即平台留存，不要求合计为 100
type CommissionConfig struct {
	ID                       int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ServiceType              string          `gorm:"type:varchar(30);not null;index:idx_commission_configs_service" json:"service_type"`
	Provider                 *string         `gorm:"type:varchar(50);index:idx_commission_configs_service" json:"provider,omitempty"`
	AdminCommission          decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"admin_commission"`
	BranchManagerCommission  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"branch_manager_commission"`
	TalukManagerCommission   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"taluk_manager_commission"`
	ServiceAgentCommission   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"service_agent_commission"`
	RegisteredUserCommission decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"registered_user_commission"`
	APIProviderCommission    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"api_provider_commission"`
	IsActive                 bool            `gorm:"not null;default:true;index" json:"is_active"`
	ValidFrom                *time.Time      `json:"valid_from,omitempty"`
	ValidTo                  *time.Time      `json:"valid_to,omitempty"`
	CreatedAt                time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionConfig) TableName() string {
	return "commission_configs"
}

// ValidAt 判断配置在指定时刻是否处于有效期内
func (c *CommissionConfig) ValidAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && t.After(*c.ValidTo) {
		return false
	}
	return true
}

// ServiceType 业务类型
const (
	ServiceTypeRecharge  = "recharge"  // 话费充值
	ServiceTypeGrocery   = "grocery"   // 生鲜杂货
	ServiceTypeTaxi      = "taxi"      // 出行打车
	ServiceTypeRental    = "rental"    // 设备租赁
	ServiceTypeDelivery  = "delivery"  // 同城配送
	ServiceTypeRecycling = "recycling" // 回收
	ServiceTypeBooking   = "booking"   // 预订
)

// Commission 佣金记录
// 每笔交易、每个受益人一条，仅状态可变，金额字段创建后不再修改
type Commission struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               int64           `gorm:"index;not null" json:"user_id"`
	UserType             string          `gorm:"type:varchar(20);not null" json:"user_type"`
	ServiceType          string          `gorm:"type:varchar(30);not null" json:"service_type"`
	TransactionID        string          `gorm:"type:varchar(64);not null;index" json:"transaction_id"`
	ServiceID            *int64          `json:"service_id,omitempty"`
	OriginalAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"original_amount"`
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_percentage"`
	CommissionAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"commission_amount"`
	Status               string          `gorm:"type:varchar(20);not null;default:'credited'" json:"status"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 表名
func (Commission) TableName() string {
	return "commissions"
}

// CommissionStatus 佣金状态
const (
	CommissionStatusPending  = "pending"  // 待入账
	CommissionStatusCredited = "credited" // 已入账
	CommissionStatusFailed   = "failed"   // 入账失败
)

// CommissionTransaction 分佣执行流水
// 每次分佣执行一条，先落 pending 再变更钱包，(service_type, transaction_id)
// 唯一约束保证同一笔交易至多分佣一次
type CommissionTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	ServiceType   string          `gorm:"type:varchar(30);not null;uniqueIndex:ux_commission_tx_service_tx" json:"service_type"`
	TransactionID string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_commission_tx_service_tx" json:"transaction_id"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	FailureReason *string         `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionTransaction) TableName() string {
	return "commission_transactions"
}

// CommissionTransactionStatus 分佣流水状态
const (
	CommissionTxStatusPending  = "pending"  // 执行中
	CommissionTxStatusCredited = "credited" // 全部入账
	CommissionTxStatusFailed   = "failed"   // 执行失败
)
