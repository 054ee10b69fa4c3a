// Package models 定义数据模型
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User 用户模型
// ParentID 指向层级上级（服务专员 -> 区域经理 -> 分部经理 -> 管理员），
// 仅为弱引用，不允许形成环，钱包余额只能通过钱包账本变更
type User struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone         *string         `gorm:"type:varchar(20);uniqueIndex" json:"phone,omitempty"`
	Name          string          `gorm:"type:varchar(50);not null;default:''" json:"name"`
	UserType      string          `gorm:"type:varchar(20);not null;index" json:"user_type"`
	ParentID      *int64          `gorm:"index" json:"parent_id,omitempty"`
	WalletBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"wallet_balance"`
	District      *string         `gorm:"type:varchar(50)" json:"district,omitempty"`
	Pincode       *string         `gorm:"type:varchar(10);index" json:"pincode,omitempty"`
	Status        int8            `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Parent *User `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// UserStatus 用户状态
const (
	UserStatusDisabled = 0 // 禁用
	UserStatusActive   = 1 // 正常
)

// UserType 用户类型
const (
	UserTypeCustomer       = "customer"        // 普通客户
	UserTypeServiceAgent   = "service_agent"   // 服务专员
	UserTypeTalukManager   = "taluk_manager"   // 区域经理
	UserTypeBranchManager  = "branch_manager"  // 分部经理
	UserTypeAdmin          = "admin"           // 管理员
	UserTypeRegisteredUser = "registered_user" // 注册推荐用户
	UserTypeFarmer         = "farmer"          // 农户
)

// WalletTransaction 钱包交易记录
// 余额每次变动都追加一条记录，BalanceAfter 为变动后的余额快照
type WalletTransaction struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       int64           `gorm:"index;not null" json:"user_id"`
	Type         string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_after"`
	ReferenceNo  *string         `gorm:"type:varchar(64);index" json:"reference_no,omitempty"`
	Remark       *string         `gorm:"type:varchar(255)" json:"remark,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// WalletTransactionType 钱包交易类型
const (
	WalletTxTypeCommission = "commission" // 佣金入账
	WalletTxTypeRecharge   = "recharge"   // 余额充值
	WalletTxTypeSpend      = "spend"      // 余额消费
	WalletTxTypeRefund     = "refund"     // 退款
)

// JSON 自定义 JSON 类型
type JSON map[string]interface{}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Unmarshal 将 JSON 值反序列化到目标结构（便于业务层使用）
func (j JSON) Unmarshal(target interface{}) error {
	if j == nil {
		return nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}
