package entity

import (
	"time"
)

// 排产订单状态。仅做取值约束，状态流转由调用方把握。
const (
	OrderStatusDraft     = "Draft"
	OrderStatusActive    = "Active"
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"
)

// SchedulingOrder 排产订单头
type SchedulingOrder struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderName   string    `json:"order_name" gorm:"size:128;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:16;not null;default:Draft"`
	Remark      string    `json:"remark" gorm:"type:text"`
	CreatedBy   string    `json:"created_by" gorm:"size:64"`
	CreatedDate time.Time `json:"created_date" gorm:"autoCreateTime"`
	UpdatedDate time.Time `json:"updated_date" gorm:"autoUpdateTime"`

	// 关联
	Products []SchedulingOrderProduct `json:"products,omitempty" gorm:"foreignKey:OrderID"`
	Lines    []SchedulingOrderLine    `json:"lines,omitempty" gorm:"foreignKey:OrderID"`
}

func (SchedulingOrder) TableName() string {
	return "scheduling_orders"
}

// SchedulingOrderProduct 订单产品。展示字段为下单时的物料快照。
type SchedulingOrderProduct struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID     int64     `json:"order_id" gorm:"not null;uniqueIndex:idx_order_item"`
	ItemID      int64     `json:"item_id" gorm:"not null;uniqueIndex:idx_order_item"`
	ItemCode    string    `json:"item_code" gorm:"size:64"`
	CnName      string    `json:"cn_name" gorm:"size:128"`
	ItemSpec    string    `json:"item_spec" gorm:"size:256"`
	Brand       string    `json:"brand" gorm:"size:64"`
	ProjectName string    `json:"project_name" gorm:"size:128"`
	CreatedDate time.Time `json:"created_date" gorm:"autoCreateTime"`
}

func (SchedulingOrderProduct) TableName() string {
	return "scheduling_order_products"
}

// SchedulingOrderLine 排产明细格，(OrderID, ItemID, ProductionDate) 唯一
type SchedulingOrderLine struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID        int64     `json:"order_id" gorm:"not null;uniqueIndex:idx_order_item_date"`
	ItemID         int64     `json:"item_id" gorm:"not null;uniqueIndex:idx_order_item_date"`
	ProductionDate time.Time `json:"production_date" gorm:"not null;uniqueIndex:idx_order_item_date"`
	PlannedQty     float64   `json:"planned_qty" gorm:"type:decimal(15,4);not null;default:0"`
	CreatedDate    time.Time `json:"created_date" gorm:"autoCreateTime"`
	UpdatedDate    time.Time `json:"updated_date" gorm:"autoUpdateTime"`
}

func (SchedulingOrderLine) TableName() string {
	return "scheduling_order_lines"
}

// SchedulingOrderMRP 子件需求计算结果缓存。仅供查阅，重算为准。
type SchedulingOrderMRP struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID        int64     `json:"order_id" gorm:"not null;index"`
	ItemID         int64     `json:"item_id" gorm:"not null;index"`
	ProductionDate time.Time `json:"production_date" gorm:"not null"`
	RequiredQty    float64   `json:"required_qty" gorm:"type:decimal(15,4);not null"`
	OnHandQty      float64   `json:"on_hand_qty" gorm:"type:decimal(15,4);not null"`
	NetQty         float64   `json:"net_qty" gorm:"type:decimal(15,4);not null"`
	CreatedDate    time.Time `json:"created_date" gorm:"autoCreateTime"`
}

func (SchedulingOrderMRP) TableName() string {
	return "scheduling_order_mrp"
}

// All 返回全部实体，供建表迁移使用
func All() []interface{} {
	return []interface{}{
		&Item{},
		&Warehouse{},
		&BOMHeader{},
		&BOMLine{},
		&BOMOperationHistory{},
		&InventoryBalance{},
		&SchedulingOrder{},
		&SchedulingOrderProduct{},
		&SchedulingOrderLine{},
		&SchedulingOrderMRP{},
		&SchemaVersion{},
	}
}
