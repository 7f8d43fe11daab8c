package entity

import (
	"time"
)

// 物料类型
const (
	ItemTypeFG  = "FG"  // 成品
	ItemTypeSFG = "SFG" // 半成品
	ItemTypeRM  = "RM"  // 原材料
	ItemTypePKG = "PKG" // 包装材料
)

// Item 物料主数据
type Item struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ItemCode     string    `json:"item_code" gorm:"size:64;not null;uniqueIndex"`
	CnName       string    `json:"cn_name" gorm:"size:128;not null"`
	ItemSpec     string    `json:"item_spec" gorm:"size:256"`
	Brand        string    `json:"brand" gorm:"size:64"`
	ItemType     string    `json:"item_type" gorm:"size:8;not null;index"`
	Unit         string    `json:"unit" gorm:"size:16;not null;default:pcs"`
	SafetyStock  float64   `json:"safety_stock" gorm:"type:decimal(15,4);not null;default:0"`
	ParentItemID *int64    `json:"parent_item_id" gorm:"index"`
	ProjectName  string    `json:"project_name" gorm:"size:128"`
	IsActive     bool      `json:"is_active" gorm:"not null;index"`
	CreatedDate  time.Time `json:"created_date" gorm:"autoCreateTime"`
	UpdatedDate  time.Time `json:"updated_date" gorm:"autoUpdateTime"`

	// 关联
	ParentItem *Item  `json:"parent_item,omitempty" gorm:"foreignKey:ParentItemID"`
	Children   []Item `json:"children,omitempty" gorm:"foreignKey:ParentItemID"`
}

func (Item) TableName() string {
	return "items"
}

// Warehouse 仓库
type Warehouse struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Code        string    `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	Remark      string    `json:"remark" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null"`
	CreatedDate time.Time `json:"created_date" gorm:"autoCreateTime"`
}

func (Warehouse) TableName() string {
	return "warehouses"
}
