package service

import (
	"github.com/bitfantasy/nimo-mps/internal/config"
	"github.com/bitfantasy/nimo-mps/internal/repository"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
)

// Services 服务集合
type Services struct {
	Item       *ItemService
	BOM        *BOMService
	Checker    *BOMChecker
	History    *HistoryService
	Import     *ImportService
	Export     *ExportService
	Planner    *PlannerService
	Scheduling *SchedulingService
}

// NewServices 装配服务。rdb、minioClient 允许为nil（缓存与归档降级为直通）。
func NewServices(repos *repository.Repositories, rdb *redis.Client, minioClient *minio.Client, cfg *config.Config) *Services {
	statusCache := NewStatusCache(rdb)
	checker := NewBOMChecker(repos.BOM, repos.Item)
	bomService := NewBOMService(repos, checker, statusCache)

	bucket := ""
	if cfg != nil {
		bucket = cfg.MinIO.Bucket
	}
	archive := NewArchiveService(minioClient, bucket)

	return &Services{
		Item:       NewItemService(repos.Item, repos.BOM, statusCache),
		BOM:        bomService,
		Checker:    checker,
		History:    NewHistoryService(repos.History),
		Import:     NewImportService(repos, bomService, archive, statusCache),
		Export:     NewExportService(repos),
		Planner:    NewPlannerService(repos, bomService),
		Scheduling: NewSchedulingService(repos),
	}
}
