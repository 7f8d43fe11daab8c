package entity

import (
	"time"
)

// BOM状态（派生值，不落库）
const (
	BOMStatusValid   = "有效"
	BOMStatusExpired = "失效"
	BOMStatusUnknown = "未知"
)

// BOMHeader BOM头表，逻辑键为 (BomName, Rev)
type BOMHeader struct {
	ID            int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	BomName       string     `json:"bom_name" gorm:"size:128;not null;uniqueIndex:idx_bom_name_rev"`
	Rev           string     `json:"rev" gorm:"size:16;not null;uniqueIndex:idx_bom_name_rev"`
	ParentItemID  int64      `json:"parent_item_id" gorm:"not null;index"`
	EffectiveDate time.Time  `json:"effective_date" gorm:"not null"`
	ExpireDate    *time.Time `json:"expire_date"`
	Remark        string     `json:"remark" gorm:"type:text"`
	IsActive      bool       `json:"is_active" gorm:"not null"`
	CreatedDate   time.Time  `json:"created_date" gorm:"autoCreateTime"`
	UpdatedDate   time.Time  `json:"updated_date" gorm:"autoUpdateTime"`

	// 关联。ParentItem 由仓库层按 ParentItemID 显式装配：
	// Item 自身也有 parent_item_id 列，交给gorm猜关联会解析到错误的一侧。
	ParentItem *Item     `json:"parent_item,omitempty" gorm:"-"`
	Lines      []BOMLine `json:"lines,omitempty" gorm:"foreignKey:BomID"`
}

func (BOMHeader) TableName() string {
	return "bom_headers"
}

// BOMLine BOM行项，(BomID, ChildItemID) 唯一
type BOMLine struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	BomID       int64     `json:"bom_id" gorm:"not null;uniqueIndex:idx_bom_child"`
	ChildItemID int64     `json:"child_item_id" gorm:"not null;uniqueIndex:idx_bom_child;index"`
	QtyPer      float64   `json:"qty_per" gorm:"type:decimal(15,4);not null"`
	ScrapFactor float64   `json:"scrap_factor" gorm:"type:decimal(15,4);not null;default:0"`
	CreatedDate time.Time `json:"created_date" gorm:"autoCreateTime"`
	UpdatedDate time.Time `json:"updated_date" gorm:"autoUpdateTime"`

	// 关联
	Header    *BOMHeader `json:"header,omitempty" gorm:"foreignKey:BomID"`
	ChildItem *Item      `json:"child_item,omitempty" gorm:"foreignKey:ChildItemID"`
}

func (BOMLine) TableName() string {
	return "bom_lines"
}

// ExpandedLine BOM展开结果行。Level 从1开始，逐层递增。
type ExpandedLine struct {
	ItemID       int64   `json:"item_id"`
	ItemCode     string  `json:"item_code"`
	ItemName     string  `json:"item_name"`
	ItemSpec     string  `json:"item_spec"`
	ItemType     string  `json:"item_type"`
	Brand        string  `json:"brand"`
	ProjectName  string  `json:"project_name"`
	QtyPer       float64 `json:"qty_per"`
	ActualQty    float64 `json:"actual_qty"`
	ScrapFactor  float64 `json:"scrap_factor"`
	Level        int     `json:"level"`
	ParentItemID int64   `json:"parent_item_id"`
}

// DisabledComponent BOM失效明细：被停用的物料及其角色
type DisabledComponent struct {
	ItemID   int64  `json:"item_id"`
	ItemCode string `json:"item_code"`
	CnName   string `json:"cn_name"`
	Role     string `json:"role"` // 父件 / 子件
}
