package entity

import (
	"time"
)

// InventoryBalance 库存结存。同一物料可分布于多个仓位/批次，
// 物料在手量为各行 QtyOnHand 之和。
type InventoryBalance struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ItemID      int64     `json:"item_id" gorm:"not null;index"`
	Warehouse   string    `json:"warehouse" gorm:"size:32;not null"`
	Location    string    `json:"location" gorm:"size:32"`
	BatchNo     string    `json:"batch_no" gorm:"size:64"`
	QtyOnHand   float64   `json:"qty_on_hand" gorm:"type:decimal(15,4);not null;default:0"`
	CreatedDate time.Time `json:"created_date" gorm:"autoCreateTime"`
	UpdatedDate time.Time `json:"updated_date" gorm:"autoUpdateTime"`

	// 关联
	Item *Item `json:"item,omitempty" gorm:"foreignKey:ItemID"`
}

func (InventoryBalance) TableName() string {
	return "inventory_balance"
}
