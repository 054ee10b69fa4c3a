package models

import (
	"time"
)

// Notification 通知消息
// 引擎只负责落库，推送投递由外部系统消费本表完成
type Notification struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64      `gorm:"index;not null" json:"user_id"`
	Type      string     `gorm:"type:varchar(30);not null" json:"type"`
	Title     string     `gorm:"type:varchar(100);not null" json:"title"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	RelatedID *int64     `gorm:"index" json:"related_id,omitempty"`
	IsRead    bool       `gorm:"not null;default:false" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (Notification) TableName() string {
	return "notifications"
}

// NotificationType 通知类型
const (
	NotificationTypeSRStatus   = "sr_status"   // 工单状态变更
	NotificationTypeSRAssigned = "sr_assigned" // 工单指派
	NotificationTypeCommission = "commission"  // 佣金入账
)

// OperationLog 管理端操作日志
type OperationLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID    int64     `gorm:"index;not null" json:"admin_id"`
	Module     string    `gorm:"type:varchar(50);not null" json:"module"`
	Action     string    `gorm:"type:varchar(50);not null" json:"action"`
	TargetType *string   `gorm:"type:varchar(50)" json:"target_type,omitempty"`
	TargetID   *int64    `json:"target_id,omitempty"`
	BeforeData JSON      `gorm:"type:jsonb" json:"before_data,omitempty"`
	AfterData  JSON      `gorm:"type:jsonb" json:"after_data,omitempty"`
	IP         string    `gorm:"type:varchar(45);not null" json:"ip"`
	UserAgent  *string   `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// 关联
	Admin *User `gorm:"foreignKey:AdminID" json:"admin,omitempty"`
}

// TableName 表名
func (OperationLog) TableName() string {
	return "operation_logs"
}
