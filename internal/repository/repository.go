package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"gorm.io/gorm"
)

// SchemaVer 当前库表结构版本，启动迁移后写入 schema_versions
const SchemaVer = "1.0.0"

// ErrNotFound 按ID/键查询无记录
var ErrNotFound = errors.New("record not found")

// Repositories 仓库集合
type Repositories struct {
	Item       *ItemRepository
	BOM        *BOMRepository
	History    *HistoryRepository
	Inventory  *InventoryRepository
	Scheduling *SchedulingRepository

	db *gorm.DB
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Item:       NewItemRepository(db),
		BOM:        NewBOMRepository(db),
		History:    NewHistoryRepository(db),
		Inventory:  NewInventoryRepository(db),
		Scheduling: NewSchedulingRepository(db),
		db:         db,
	}
}

// Transaction 在一个事务作用域内执行fn。fn返回错误时整体回滚。
// 多步写操作（级联删除+历史、导入对账）统一走这里拿原子性。
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB 暴露底层句柄，仅供装配和测试使用
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// Migrate 建表并记录版本。重复执行幂等，版本变化时追加一行。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entity.All()...); err != nil {
		return err
	}
	var last entity.SchemaVersion
	err := db.Order("id DESC").First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if last.Version != SchemaVer {
		return db.Create(&entity.SchemaVersion{Version: SchemaVer}).Error
	}
	return nil
}
