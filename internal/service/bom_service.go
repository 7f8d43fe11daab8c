package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
)

// 历史来源
const (
	SourceManual = "MANUAL"
	SourceImport = "IMPORT"
)

var revPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// BOMService BOM存储与校验服务。所有写操作落一条历史记录，
// 无实际变化的更新跳过写入也不记历史。
type BOMService struct {
	repos       *repository.Repositories
	checker     *BOMChecker
	statusCache *StatusCache
}

func NewBOMService(repos *repository.Repositories, checker *BOMChecker, statusCache *StatusCache) *BOMService {
	return &BOMService{repos: repos, checker: checker, statusCache: statusCache}
}

// headerSnapshot 历史快照里的BOM头字段
type headerSnapshot struct {
	BomName       string  `json:"bom_name"`
	Rev           string  `json:"rev"`
	ParentItemID  int64   `json:"parent_item_id"`
	EffectiveDate string  `json:"effective_date"`
	ExpireDate    *string `json:"expire_date,omitempty"`
	Remark        string  `json:"remark"`
	IsActive      bool    `json:"is_active"`
}

type lineSnapshot struct {
	BomID       int64   `json:"bom_id"`
	ChildItemID int64   `json:"child_item_id"`
	QtyPer      float64 `json:"qty_per"`
	ScrapFactor float64 `json:"scrap_factor"`
}

func snapshotHeader(h *entity.BOMHeader) string {
	snap := headerSnapshot{
		BomName:       h.BomName,
		Rev:           h.Rev,
		ParentItemID:  h.ParentItemID,
		EffectiveDate: h.EffectiveDate.Format("2006-01-02"),
		Remark:        h.Remark,
		IsActive:      h.IsActive,
	}
	if h.ExpireDate != nil {
		s := h.ExpireDate.Format("2006-01-02")
		snap.ExpireDate = &s
	}
	data, _ := json.Marshal(snap)
	return string(data)
}

func snapshotLine(l *entity.BOMLine) string {
	data, _ := json.Marshal(lineSnapshot{
		BomID:       l.BomID,
		ChildItemID: l.ChildItemID,
		QtyPer:      l.QtyPer,
		ScrapFactor: l.ScrapFactor,
	})
	return string(data)
}

func (s *BOMService) logOp(ctx context.Context, repos *repository.Repositories, bomID int64, op, target string, targetID *int64, oldData, newData, user, source, remark string) error {
	return repos.History.Create(ctx, &entity.BOMOperationHistory{
		BomID:         bomID,
		OperationType: op,
		Target:        target,
		TargetID:      targetID,
		OldData:       oldData,
		NewData:       newData,
		User:          user,
		Source:        source,
		Remark:        remark,
	})
}

// GetHeader 获取BOM头及行项
func (s *BOMService) GetHeader(ctx context.Context, id int64) (*entity.BOMHeader, error) {
	bom, err := s.repos.BOM.GetHeaderByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: BOM %d", ErrNotFound, id)
		}
		return nil, err
	}
	return bom, nil
}

// ListHeaders BOM头列表
func (s *BOMService) ListHeaders(ctx context.Context, search string) ([]entity.BOMHeader, error) {
	return s.repos.BOM.ListHeaders(ctx, search)
}

// SearchByComponent "用到物料X的BOM"
func (s *BOMService) SearchByComponent(ctx context.Context, filter string) ([]entity.BOMHeader, error) {
	return s.repos.BOM.SearchByComponent(ctx, filter)
}

func (s *BOMService) validateHeader(h *entity.BOMHeader) error {
	if h.BomName == "" {
		return fmt.Errorf("%w: BOM名称不能为空", ErrValidationFailed)
	}
	if h.Rev == "" {
		return fmt.Errorf("%w: 版本号不能为空", ErrValidationFailed)
	}
	if !revPattern.MatchString(h.Rev) {
		return fmt.Errorf("%w: 版本号 %q 格式不合法", ErrValidationFailed, h.Rev)
	}
	if h.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: 生效日期不能为空", ErrValidationFailed)
	}
	if h.ParentItemID == 0 {
		return fmt.Errorf("%w: 父件不能为空", ErrValidationFailed)
	}
	if h.ExpireDate != nil && !h.ExpireDate.After(h.EffectiveDate) {
		return fmt.Errorf("%w: 失效日期必须晚于生效日期", ErrValidationFailed)
	}
	return nil
}

// CreateHeader 创建BOM头并记历史
func (s *BOMService) CreateHeader(ctx context.Context, h *entity.BOMHeader, user string) error {
	if err := s.validateHeader(h); err != nil {
		return err
	}

	if _, err := s.repos.Item.GetByID(ctx, h.ParentItemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 父件 %d", ErrNotFound, h.ParentItemID)
		}
		return err
	}

	if _, err := s.repos.BOM.GetHeaderByNameRev(ctx, h.BomName, h.Rev); err == nil {
		return fmt.Errorf("%w: BOM (%s, %s) 已存在", ErrDuplicateKey, h.BomName, h.Rev)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.BOM.CreateHeader(ctx, h); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		return s.logOp(ctx, tx, h.ID, entity.OpCreate, entity.TargetHeader, &h.ID,
			"", snapshotHeader(h), user, SourceManual, "")
	})
}

// UpdateHeader 有效更新：逐字段对比，无差异时跳过写入且不记历史
func (s *BOMService) UpdateHeader(ctx context.Context, h *entity.BOMHeader, user string) error {
	old, err := s.repos.BOM.GetHeaderByID(ctx, h.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: BOM %d", ErrNotFound, h.ID)
		}
		return err
	}

	if err := s.validateHeader(h); err != nil {
		return err
	}

	if h.BomName != old.BomName || h.Rev != old.Rev {
		if _, err := s.repos.BOM.GetHeaderByNameRev(ctx, h.BomName, h.Rev); err == nil {
			return fmt.Errorf("%w: BOM (%s, %s) 已存在", ErrDuplicateKey, h.BomName, h.Rev)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	if headerEqual(old, h) {
		return nil
	}

	oldSnap := snapshotHeader(old)
	h.CreatedDate = old.CreatedDate
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// Save走全字段更新，先清掉预加载的关联避免级联写
		updated := *h
		updated.ParentItem = nil
		updated.Lines = nil
		if err := tx.BOM.UpdateHeader(ctx, &updated); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		if err := s.logOp(ctx, tx, h.ID, entity.OpUpdate, entity.TargetHeader, &h.ID,
			oldSnap, snapshotHeader(h), user, SourceManual, ""); err != nil {
			return err
		}
		s.statusCache.InvalidateBOMs(ctx, []int64{h.ID})
		return nil
	})
}

func headerEqual(a, b *entity.BOMHeader) bool {
	sameExpire := (a.ExpireDate == nil && b.ExpireDate == nil) ||
		(a.ExpireDate != nil && b.ExpireDate != nil && sameDay(*a.ExpireDate, *b.ExpireDate))
	return a.BomName == b.BomName &&
		a.Rev == b.Rev &&
		a.ParentItemID == b.ParentItemID &&
		sameDay(a.EffectiveDate, b.EffectiveDate) &&
		sameExpire &&
		a.Remark == b.Remark &&
		a.IsActive == b.IsActive
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

// DeleteHeader 删除BOM头。行项级联删除并逐条记历史，
// 之后再记头删除——审计重放依赖这个顺序。
func (s *BOMService) DeleteHeader(ctx context.Context, id int64, user string) error {
	bom, err := s.repos.BOM.GetHeaderByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: BOM %d", ErrNotFound, id)
		}
		return err
	}

	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		for i := range bom.Lines {
			line := bom.Lines[i]
			if err := tx.BOM.DeleteLine(ctx, line.ID); err != nil {
				return fmt.Errorf("%w: %v", ErrIOFailed, err)
			}
			if err := s.logOp(ctx, tx, id, entity.OpDelete, entity.TargetLine, &line.ID,
				snapshotLine(&line), "", user, SourceManual, "随BOM头级联删除"); err != nil {
				return err
			}
		}
		if err := tx.BOM.DeleteHeader(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		if err := s.logOp(ctx, tx, id, entity.OpDelete, entity.TargetHeader, &id,
			snapshotHeader(bom), "", user, SourceManual, ""); err != nil {
			return err
		}
		s.statusCache.InvalidateBOMs(ctx, []int64{id})
		return nil
	})
}

func (s *BOMService) validateLine(l *entity.BOMLine) error {
	if l.QtyPer <= 0 {
		return fmt.Errorf("%w: 单位用量必须大于0", ErrValidationFailed)
	}
	if l.ScrapFactor < 0 {
		return fmt.Errorf("%w: 损耗率不能为负", ErrValidationFailed)
	}
	return nil
}

// AddLine 新增行项。(BomID, ChildItemID) 唯一；加入后成环拒绝。
func (s *BOMService) AddLine(ctx context.Context, l *entity.BOMLine, user string) error {
	if err := s.validateLine(l); err != nil {
		return err
	}

	bom, err := s.repos.BOM.GetHeaderByID(ctx, l.BomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: BOM %d", ErrNotFound, l.BomID)
		}
		return err
	}

	if _, err := s.repos.Item.GetByID(ctx, l.ChildItemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 子件 %d", ErrNotFound, l.ChildItemID)
		}
		return err
	}

	if _, err := s.repos.BOM.GetLineByChild(ctx, l.BomID, l.ChildItemID); err == nil {
		return fmt.Errorf("%w: BOM %d 中已存在子件 %d", ErrDuplicateKey, l.BomID, l.ChildItemID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	cyclic, err := s.checker.WouldCreateCycle(ctx, bom.ParentItemID, l.ChildItemID)
	if err != nil {
		return err
	}
	if cyclic {
		return fmt.Errorf("%w: 加入子件 %d 会形成循环", ErrCycleDetected, l.ChildItemID)
	}

	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.BOM.CreateLine(ctx, l); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		if err := s.logOp(ctx, tx, l.BomID, entity.OpCreate, entity.TargetLine, &l.ID,
			"", snapshotLine(l), user, SourceManual, ""); err != nil {
			return err
		}
		s.statusCache.InvalidateBOMs(ctx, []int64{l.BomID})
		return nil
	})
}

// UpdateLine 更新行项，无变化时静默跳过
func (s *BOMService) UpdateLine(ctx context.Context, l *entity.BOMLine, user string) error {
	old, err := s.repos.BOM.GetLine(ctx, l.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: BOM行 %d", ErrNotFound, l.ID)
		}
		return err
	}

	if err := s.validateLine(l); err != nil {
		return err
	}

	if old.QtyPer == l.QtyPer && old.ScrapFactor == l.ScrapFactor && old.ChildItemID == l.ChildItemID {
		return nil
	}

	if old.ChildItemID != l.ChildItemID {
		if _, err := s.repos.BOM.GetLineByChild(ctx, l.BomID, l.ChildItemID); err == nil {
			return fmt.Errorf("%w: BOM %d 中已存在子件 %d", ErrDuplicateKey, l.BomID, l.ChildItemID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	oldSnap := snapshotLine(old)
	l.BomID = old.BomID
	l.CreatedDate = old.CreatedDate
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		updated := *l
		updated.Header = nil
		updated.ChildItem = nil
		if err := tx.BOM.UpdateLine(ctx, &updated); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		return s.logOp(ctx, tx, l.BomID, entity.OpUpdate, entity.TargetLine, &l.ID,
			oldSnap, snapshotLine(l), user, SourceManual, "")
	})
}

// DeleteLine 删除行项。目标不存在是错误，不做静默。
func (s *BOMService) DeleteLine(ctx context.Context, id int64, user string) error {
	old, err := s.repos.BOM.GetLine(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: BOM行 %d", ErrNotFound, id)
		}
		return err
	}

	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.BOM.DeleteLine(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		return s.logOp(ctx, tx, old.BomID, entity.OpDelete, entity.TargetLine, &id,
			snapshotLine(old), "", user, SourceManual, "")
	})
}

// BOMStatusDetail 状态与失效明细
type BOMStatusDetail struct {
	Status   string                     `json:"status"`
	Disabled []entity.DisabledComponent `json:"disabled"`
}

// GetBOMStatus 派生BOM状态：父件与全部子件均启用为有效，否则失效；
// 头不存在为未知。结果经展示缓存。
func (s *BOMService) GetBOMStatus(ctx context.Context, bomID int64) (string, error) {
	if status, ok := s.statusCache.Get(ctx, bomID); ok {
		return status, nil
	}
	detail, err := s.GetBOMStatusDetail(ctx, bomID)
	if err != nil {
		return "", err
	}
	s.statusCache.Set(ctx, bomID, detail.Status)
	return detail.Status, nil
}

// GetBOMStatusDetail 状态明细：被停用的物料及其角色
func (s *BOMService) GetBOMStatusDetail(ctx context.Context, bomID int64) (*BOMStatusDetail, error) {
	bom, err := s.repos.BOM.GetHeaderByID(ctx, bomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &BOMStatusDetail{Status: entity.BOMStatusUnknown}, nil
		}
		return nil, err
	}

	detail := &BOMStatusDetail{Status: entity.BOMStatusValid}
	switch {
	case bom.ParentItem == nil:
		detail.Status = entity.BOMStatusExpired
		detail.Disabled = append(detail.Disabled, entity.DisabledComponent{
			ItemID: bom.ParentItemID,
			Role:   "父件",
		})
	case !bom.ParentItem.IsActive:
		detail.Status = entity.BOMStatusExpired
		detail.Disabled = append(detail.Disabled, entity.DisabledComponent{
			ItemID:   bom.ParentItem.ID,
			ItemCode: bom.ParentItem.ItemCode,
			CnName:   bom.ParentItem.CnName,
			Role:     "父件",
		})
	}
	for _, line := range bom.Lines {
		if line.ChildItem != nil && !line.ChildItem.IsActive {
			detail.Status = entity.BOMStatusExpired
			detail.Disabled = append(detail.Disabled, entity.DisabledComponent{
				ItemID:   line.ChildItem.ID,
				ItemCode: line.ChildItem.ItemCode,
				CnName:   line.ChildItem.CnName,
				Role:     "子件",
			})
		}
	}
	return detail, nil
}

// ValidateStructure 结构校验的可读错误列表
func (s *BOMService) ValidateStructure(ctx context.Context, bomID int64) ([]string, error) {
	return s.checker.ValidateBOMStructure(ctx, bomID)
}
