package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceRequest 服务工单
// SRNumber 形如 SR20250115003，按自然日递增；工单创建后只允许
// 状态流转与干系人指派，不允许删除（审计要求）
type ServiceRequest struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SRNumber        string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"sr_number"`
	UserID          int64           `gorm:"index;not null" json:"user_id"`
	ServiceType     string          `gorm:"type:varchar(30);not null;index" json:"service_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(20);not null;default:'new';index" json:"status"`
	PaymentStatus   string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	ServiceData     JSON            `gorm:"type:jsonb" json:"service_data,omitempty"`
	PincodeAgentID  *int64          `gorm:"index" json:"pincode_agent_id,omitempty"`
	TalukManagerID  *int64          `gorm:"index" json:"taluk_manager_id,omitempty"`
	BranchManagerID *int64          `gorm:"index" json:"branch_manager_id,omitempty"`
	AssignedTo      *int64          `gorm:"index" json:"assigned_to,omitempty"`
	District        *string         `gorm:"type:varchar(50)" json:"district,omitempty"`
	Pincode         *string         `gorm:"type:varchar(10)" json:"pincode,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 表名
func (ServiceRequest) TableName() string {
	return "service_requests"
}

// ServiceRequestStatus 工单状态
const (
	SRStatusNew        = "new"         // 新建
	SRStatusAssigned   = "assigned"    // 已指派
	SRStatusInProgress = "in_progress" // 处理中
	SRStatusCompleted  = "completed"   // 已完成
	SRStatusCancelled  = "cancelled"   // 已取消
)

// PaymentStatus 支付状态
const (
	PaymentStatusPending = "pending" // 待支付
	PaymentStatusPaid    = "paid"    // 已支付
	PaymentStatusFailed  = "failed"  // 支付失败
)

// srTransitions 工单状态流转表
// completed / cancelled 为终态，cancelled 可从任意非终态进入
var srTransitions = map[string][]string{
	SRStatusNew:        {SRStatusAssigned, SRStatusCancelled},
	SRStatusAssigned:   {SRStatusInProgress, SRStatusCancelled},
	SRStatusInProgress: {SRStatusCompleted, SRStatusCancelled},
	SRStatusCompleted:  {},
	SRStatusCancelled:  {},
}

// CanTransition 判断工单状态是否允许从 from 流转到 to
func CanTransition(from, to string) bool {
	for _, next := range srTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus 判断是否为终态
func IsTerminalStatus(status string) bool {
	return status == SRStatusCompleted || status == SRStatusCancelled
}

// IsValidSRStatus 判断是否为合法的工单状态
func IsValidSRStatus(status string) bool {
	_, ok := srTransitions[status]
	return ok
}

// StakeholderRole 工单干系人角色（指派用）
const (
	StakeholderPincodeAgent  = "pincode_agent"  // 网点专员
	StakeholderTalukManager  = "taluk_manager"  // 区域经理
	StakeholderBranchManager = "branch_manager" // 分部经理
	StakeholderAssignee      = "assignee"       // 履约人
)

// ServiceRequestStatusUpdate 工单状态变更审计记录
// 每次流转追加一条，创建后不可修改
type ServiceRequestStatusUpdate struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ServiceRequestID int64     `gorm:"index;not null" json:"service_request_id"`
	FromStatus       string    `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus         string    `gorm:"type:varchar(20);not null" json:"to_status"`
	UpdatedBy        int64     `gorm:"not null" json:"updated_by"`
	Reason           *string   `gorm:"type:varchar(255)" json:"reason,omitempty"`
	Notes            *string   `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (ServiceRequestStatusUpdate) TableName() string {
	return "service_request_status_updates"
}

// ServiceRequestCommissionTransaction 工单佣金流水
// 与通用佣金表分账本记录，(service_request_id, user_id) 唯一，
// 保证桥接器重复触发时不会产生重复记录
type ServiceRequestCommissionTransaction struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ServiceRequestID int64           `gorm:"not null;uniqueIndex:ux_sr_commission_request_user" json:"service_request_id"`
	UserID           int64           `gorm:"not null;uniqueIndex:ux_sr_commission_request_user;index" json:"user_id"`
	UserType         string          `gorm:"type:varchar(20);not null" json:"user_type"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_rate"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (ServiceRequestCommissionTransaction) TableName() string {
	return "service_request_commission_transactions"
}
