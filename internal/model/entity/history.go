package entity

import (
	"time"
)

// 操作类型
const (
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpImport = "IMPORT"
)

// 操作对象
const (
	TargetHeader = "HEADER"
	TargetLine   = "LINE"
)

// BOMOperationHistory BOM操作历史，只追加不修改
type BOMOperationHistory struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	BomID         int64     `json:"bom_id" gorm:"not null;index"`
	OperationType string    `json:"operation_type" gorm:"size:16;not null"`
	Target        string    `json:"target" gorm:"size:16;not null"`
	TargetID      *int64    `json:"target_id"`
	OldData       string    `json:"old_data" gorm:"type:text"`
	NewData       string    `json:"new_data" gorm:"type:text"`
	User          string    `json:"user" gorm:"size:64;not null"`
	Source        string    `json:"source" gorm:"size:32;not null"`
	Remark        string    `json:"remark" gorm:"type:text"`
	CreatedDate   time.Time `json:"created_date" gorm:"autoCreateTime"`
}

func (BOMOperationHistory) TableName() string {
	return "bom_operation_history"
}

// SchemaVersion 已应用的库表版本记录
type SchemaVersion struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Version   string    `json:"version" gorm:"size:32;not null"`
	AppliedAt time.Time `json:"applied_at" gorm:"autoCreateTime"`
}

func (SchemaVersion) TableName() string {
	return "schema_versions"
}
