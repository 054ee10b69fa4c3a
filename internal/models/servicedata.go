package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 各业务类型的工单数据载荷
// 工单数据按业务类型建模为带校验的具体结构，在边界处校验后再入库，
// 不允许透传任意结构

// RechargeData 话费充值数据
type RechargeData struct {
	MobileNumber string `json:"mobile_number"`
	Provider     string `json:"provider"`
	PlanName     string `json:"plan_name,omitempty"`
}

// Validate 校验充值数据
func (d *RechargeData) Validate() error {
	if strings.TrimSpace(d.MobileNumber) == "" {
		return fmt.Errorf("mobile_number 不能为空")
	}
	if strings.TrimSpace(d.Provider) == "" {
		return fmt.Errorf("provider 不能为空")
	}
	return nil
}

// BookingData 预订数据
type BookingData struct {
	VenueName string `json:"venue_name"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot,omitempty"`
	Guests    int    `json:"guests,omitempty"`
}

// Validate 校验预订数据
func (d *BookingData) Validate() error {
	if strings.TrimSpace(d.VenueName) == "" {
		return fmt.Errorf("venue_name 不能为空")
	}
	if strings.TrimSpace(d.Date) == "" {
		return fmt.Errorf("date 不能为空")
	}
	return nil
}

// TaxiData 出行数据
type TaxiData struct {
	PickupLocation string `json:"pickup_location"`
	DropLocation   string `json:"drop_location"`
	VehicleType    string `json:"vehicle_type,omitempty"`
}

// Validate 校验出行数据
func (d *TaxiData) Validate() error {
	if strings.TrimSpace(d.PickupLocation) == "" || strings.TrimSpace(d.DropLocation) == "" {
		return fmt.Errorf("pickup_location 与 drop_location 不能为空")
	}
	return nil
}

// DeliveryData 配送数据
type DeliveryData struct {
	PickupAddress   string `json:"pickup_address"`
	DeliveryAddress string `json:"delivery_address"`
	PackageType     string `json:"package_type,omitempty"`
	WeightKg        int    `json:"weight_kg,omitempty"`
}

// Validate 校验配送数据
func (d *DeliveryData) Validate() error {
	if strings.TrimSpace(d.PickupAddress) == "" || strings.TrimSpace(d.DeliveryAddress) == "" {
		return fmt.Errorf("pickup_address 与 delivery_address 不能为空")
	}
	return nil
}

// GroceryData 杂货数据
type GroceryData struct {
	Items           []GroceryItem `json:"items"`
	DeliveryAddress string        `json:"delivery_address"`
}

// GroceryItem 杂货条目
type GroceryItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Validate 校验杂货数据
func (d *GroceryData) Validate() error {
	if len(d.Items) == 0 {
		return fmt.Errorf("items 不能为空")
	}
	for _, item := range d.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 {
			return fmt.Errorf("items 存在非法条目")
		}
	}
	return nil
}

// RentalData 租赁数据
type RentalData struct {
	EquipmentName string `json:"equipment_name"`
	RentalDays    int    `json:"rental_days"`
}

// Validate 校验租赁数据
func (d *RentalData) Validate() error {
	if strings.TrimSpace(d.EquipmentName) == "" {
		return fmt.Errorf("equipment_name 不能为空")
	}
	if d.RentalDays <= 0 {
		return fmt.Errorf("rental_days 必须大于 0")
	}
	return nil
}

// RecyclingData 回收数据
type RecyclingData struct {
	MaterialType  string `json:"material_type"`
	PickupAddress string `json:"pickup_address"`
	WeightKg      int    `json:"weight_kg,omitempty"`
}

// Validate 校验回收数据
func (d *RecyclingData) Validate() error {
	if strings.TrimSpace(d.MaterialType) == "" {
		return fmt.Errorf("material_type 不能为空")
	}
	if strings.TrimSpace(d.PickupAddress) == "" {
		return fmt.Errorf("pickup_address 不能为空")
	}
	return nil
}

// serviceDataValidator 工单数据校验接口
type serviceDataValidator interface {
	Validate() error
}

// ParseServiceData 按业务类型解析并校验工单数据
// 未知业务类型或校验失败返回错误，合法时返回可入库的 JSON
func ParseServiceData(serviceType string, raw json.RawMessage) (JSON, error) {
	var target serviceDataValidator
	switch serviceType {
	case ServiceTypeRecharge:
		target = &RechargeData{}
	case ServiceTypeBooking:
		target = &BookingData{}
	case ServiceTypeTaxi:
		target = &TaxiData{}
	case ServiceTypeDelivery:
		target = &DeliveryData{}
	case ServiceTypeGrocery:
		target = &GroceryData{}
	case ServiceTypeRental:
		target = &RentalData{}
	case ServiceTypeRecycling:
		target = &RecyclingData{}
	default:
		return nil, fmt.Errorf("不支持的业务类型: %s", serviceType)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("service_data 不能为空")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("service_data 解析失败: %w", err)
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	var data JSON
	b, err := json.Marshal(target)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return data, nil
}
