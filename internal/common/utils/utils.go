// Package utils 提供通用工具函数
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FormatSRNumber 按日期与当日序号拼装工单号
// 格式: 前缀 + YYYYMMDD + 序号（不足3位补零）
func FormatSRNumber(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%03d", prefix, day.Format("20060102"), seq)
}

// DayKey 返回日期的 YYYYMMDD 形式，用于按日计数的键
func DayKey(day time.Time) string {
	return day.Format("20060102")
}

// GenerateTransactionNo 生成交易号
// 格式: 前缀 + 年月日时分秒 + 6位随机数
func GenerateTransactionNo(prefix string) string {
	now := time.Now()
	timestamp := now.Format("20060102150405")
	random := GenerateRandomNumber(6)
	return fmt.Sprintf("%s%s%s", prefix, timestamp, random)
}

// GenerateRandomNumber 生成指定长度的随机数字字符串
func GenerateRandomNumber(length int) string {
	var result strings.Builder
	for i := 0; i < length; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		result.WriteString(strconv.Itoa(int(n.Int64())))
	}
	return result.String()
}

// ValidateMobile 验证手机号（10位，首位 6-9）
func ValidateMobile(mobile string) bool {
	pattern := `^[6-9]\d{9}$`
	matched, _ := regexp.MatchString(pattern, mobile)
	return matched
}

// ValidatePincode 验证邮政编码（6位数字，首位非0）
func ValidatePincode(pincode string) bool {
	pattern := `^[1-9]\d{5}$`
	matched, _ := regexp.MatchString(pattern, pincode)
	return matched
}

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr 返回 int64 指针
func Int64Ptr(i int64) *int64 {
	return &i
}

// Pagination 分页参数
type Pagination struct {
	Page     int   `json:"page" form:"page"`
	PageSize int   `json:"page_size" form:"page_size"`
	Total    int64 `json:"total"`
}

// GetOffset 获取偏移量
func (p *Pagination) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit 获取限制数
func (p *Pagination) GetLimit() int {
	return p.PageSize
}

// Normalize 规范化分页参数
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 10
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

// GetTotalPages 获取总页数
func (p *Pagination) GetTotalPages() int {
	if p.Total == 0 {
		return 0
	}
	pages := int(p.Total) / p.PageSize
	if int(p.Total)%p.PageSize > 0 {
		pages++
	}
	return pages
}

// TruncateString 截断字符串到指定长度
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
