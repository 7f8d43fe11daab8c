package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// SchedulingService 排产存储服务
type SchedulingService struct {
	repos *repository.Repositories
}

func NewSchedulingService(repos *repository.Repositories) *SchedulingService {
	return &SchedulingService{repos: repos}
}

func (s *SchedulingService) GetOrder(ctx context.Context, id int64) (*entity.SchedulingOrder, error) {
	order, err := s.repos.Scheduling.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: 排产订单 %d", ErrNotFound, id)
		}
		return nil, err
	}
	return order, nil
}

func (s *SchedulingService) ListOrders(ctx context.Context) ([]entity.SchedulingOrder, error) {
	return s.repos.Scheduling.ListOrders(ctx)
}

func (s *SchedulingService) validateOrder(order *entity.SchedulingOrder) error {
	if order.OrderName == "" {
		return fmt.Errorf("%w: 订单名称不能为空", ErrValidationFailed)
	}
	if order.StartDate.IsZero() || order.EndDate.IsZero() {
		return fmt.Errorf("%w: 计划区间不能为空", ErrValidationFailed)
	}
	if order.EndDate.Before(order.StartDate) {
		return fmt.Errorf("%w: 结束日期早于开始日期", ErrValidationFailed)
	}
	switch order.Status {
	case "", entity.OrderStatusDraft, entity.OrderStatusActive,
		entity.OrderStatusCompleted, entity.OrderStatusCancelled:
	default:
		return fmt.Errorf("%w: 订单状态 %q 无效", ErrValidationFailed, order.Status)
	}
	return nil
}

func (s *SchedulingService) CreateOrder(ctx context.Context, order *entity.SchedulingOrder) error {
	if err := s.validateOrder(order); err != nil {
		return err
	}
	if order.Status == "" {
		order.Status = entity.OrderStatusDraft
	}
	return s.repos.Scheduling.CreateOrder(ctx, order)
}

func (s *SchedulingService) UpdateOrder(ctx context.Context, order *entity.SchedulingOrder) error {
	existing, err := s.repos.Scheduling.GetOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 排产订单 %d", ErrNotFound, order.ID)
		}
		return err
	}
	if err := s.validateOrder(order); err != nil {
		return err
	}
	order.CreatedDate = existing.CreatedDate
	updated := *order
	updated.Products = nil
	updated.Lines = nil
	return s.repos.Scheduling.UpdateOrder(ctx, &updated)
}

// DeleteOrder 级联删除：明细 → 产品 → MRP缓存 → 订单头，单事务
func (s *SchedulingService) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := s.repos.Scheduling.GetOrder(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 排产订单 %d", ErrNotFound, id)
		}
		return err
	}
	return s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Scheduling.DeleteLinesByOrder(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		if err := tx.Scheduling.DeleteProductsByOrder(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		if err := tx.Scheduling.DeleteMRPByOrder(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		if err := tx.Scheduling.DeleteOrder(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		return nil
	})
}

// AddProduct 订单加产品，展示字段取物料当前快照
func (s *SchedulingService) AddProduct(ctx context.Context, orderID, itemID int64) error {
	if _, err := s.repos.Scheduling.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 排产订单 %d", ErrNotFound, orderID)
		}
		return err
	}
	item, err := s.repos.Item.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 物料 %d", ErrNotFound, itemID)
		}
		return err
	}
	return s.repos.Scheduling.AddProduct(ctx, &entity.SchedulingOrderProduct{
		OrderID:     orderID,
		ItemID:      item.ID,
		ItemCode:    item.ItemCode,
		CnName:      item.CnName,
		ItemSpec:    item.ItemSpec,
		Brand:       item.Brand,
		ProjectName: item.ProjectName,
	})
}

func (s *SchedulingService) RemoveProduct(ctx context.Context, orderID, itemID int64) error {
	if err := s.repos.Scheduling.RemoveProduct(ctx, orderID, itemID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: 订单 %d 产品 %d", ErrNotFound, orderID, itemID)
		}
		return err
	}
	return nil
}

// LineUpsert 批量明细写入的一格
type LineUpsert struct {
	ItemID         int64     `json:"item_id"`
	ProductionDate time.Time `json:"production_date"`
	PlannedQty     float64   `json:"planned_qty"`
}

// BatchUpsertLines 按 (订单, 物料, 日期) 逐格UPSERT。
// 日期出窗、数量为负逐格收集为错误，不中断整批。
func (s *SchedulingService) BatchUpsertLines(ctx context.Context, orderID int64, cells []LineUpsert) (*BatchResult, error) {
	order, err := s.repos.Scheduling.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: 排产订单 %d", ErrNotFound, orderID)
		}
		return nil, err
	}

	result := &BatchResult{}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		for _, cell := range cells {
			if cell.PlannedQty < 0 {
				result.Errors = append(result.Errors,
					fmt.Sprintf("物料 %d %s: 计划量不能为负", cell.ItemID, dayKey(cell.ProductionDate)))
				continue
			}
			if cell.ProductionDate.Before(order.StartDate) || cell.ProductionDate.After(order.EndDate) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("物料 %d %s: 日期不在计划区间内", cell.ItemID, dayKey(cell.ProductionDate)))
				continue
			}
			if err := tx.Scheduling.UpsertLine(ctx, &entity.SchedulingOrderLine{
				OrderID:        orderID,
				ItemID:         cell.ItemID,
				ProductionDate: cell.ProductionDate,
				PlannedQty:     cell.PlannedQty,
			}); err != nil {
				return fmt.Errorf("%w: %v", ErrIOFailed, err)
			}
			result.SuccessCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// KanbanView 排产看板
type KanbanView struct {
	Order    *entity.SchedulingOrder         `json:"order"`
	Dates    []string                        `json:"dates"`
	Products []entity.SchedulingOrderProduct `json:"products"`
	Cells    map[int64]map[string]float64    `json:"cells"` // itemID → 日期 → 计划量
}

// Kanban 读取看板视图
func (s *SchedulingService) Kanban(ctx context.Context, orderID int64) (*KanbanView, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repos.Scheduling.ListLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailed, err)
	}

	view := &KanbanView{
		Order:    order,
		Dates:    buckets(order.StartDate, order.EndDate, BucketDay),
		Products: order.Products,
		Cells:    make(map[int64]map[string]float64),
	}
	for _, line := range lines {
		if view.Cells[line.ItemID] == nil {
			view.Cells[line.ItemID] = make(map[string]float64)
		}
		view.Cells[line.ItemID][dayKey(line.ProductionDate)] = line.PlannedQty
	}
	return view, nil
}

// parseBucketLabel 表头格解析为日期。支持日期与ISO周标签，
// 周标签落到该周周一。
func parseBucketLabel(label string) (time.Time, bool) {
	label = strings.TrimSpace(label)
	for _, layout := range []string{"2006-01-02", "2006/1/2", "2006/01/02", "2006.01.02"} {
		if t, err := time.ParseInLocation(layout, label, time.Local); err == nil {
			return t, true
		}
	}
	// ISO周标签：2025-W02 / 2025W02
	normalized := strings.ReplaceAll(strings.ToUpper(label), "-W", "W")
	if idx := strings.Index(normalized, "W"); idx > 0 {
		year, errY := strconv.Atoi(normalized[:idx])
		week, errW := strconv.Atoi(normalized[idx+1:])
		if errY == nil && errW == nil && week >= 1 && week <= 53 {
			return isoWeekMonday(year, week), true
		}
	}
	return time.Time{}, false
}

// isoWeekMonday ISO年+周号对应的周一
func isoWeekMonday(year, week int) time.Time {
	// 1月4日必在第1周
	t := time.Date(year, 1, 4, 0, 0, 0, 0, time.Local)
	offset := int(t.Weekday())
	if offset == 0 {
		offset = 7
	}
	monday := t.AddDate(0, 0, 1-offset)
	return monday.AddDate(0, 0, (week-1)*7)
}

// IngestSchedule 排产表导入：表头行是日期或ISO周标签，
// 每行一个产品（首列物料编码），数据格写入计划量。
func (s *SchedulingService) IngestSchedule(ctx context.Context, orderID int64, f *excelize.File) (*BatchResult, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取工作表失败: %v", ErrParseFailed, err)
	}
	return s.ingestRows(ctx, orderID, rows)
}

// IngestScheduleCSV 旧系统导出的CSV多为GBK编码，转码后按逗号/制表符切分
func (s *SchedulingService) IngestScheduleCSV(ctx context.Context, orderID int64, r io.Reader) (*BatchResult, error) {
	utf8Reader := transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	scanner := bufio.NewScanner(utf8Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows [][]string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		sep := ","
		if strings.Contains(line, "\t") {
			sep = "\t"
		}
		fields := strings.Split(line, sep)
		for i := range fields {
			fields[i] = strings.Trim(fields[i], "\"")
		}
		rows = append(rows, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: 读取CSV失败: %v", ErrParseFailed, err)
	}
	return s.ingestRows(ctx, orderID, rows)
}

func (s *SchedulingService) ingestRows(ctx context.Context, orderID int64, rows [][]string) (*BatchResult, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: 表格行数不足", ErrParseFailed)
	}

	// 表头 → 桶日期；首列留给产品标识
	header := rows[0]
	dates := make(map[int]time.Time)
	for col := 1; col < len(header); col++ {
		if t, ok := parseBucketLabel(header[col]); ok {
			dates[col] = t
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: 表头没有可识别的日期列", ErrParseFailed)
	}

	result := &BatchResult{}
	var cells []LineUpsert
	for _, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		code := strings.TrimSpace(row[0])
		item, err := s.repos.Item.GetByCode(ctx, code)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("物料编码 %q 不存在", code))
			continue
		}
		if err := s.AddProduct(ctx, orderID, item.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("物料 %q: %v", code, err))
			continue
		}
		for col, date := range dates {
			if col >= len(row) {
				continue
			}
			raw := strings.TrimSpace(row[col])
			if raw == "" {
				continue
			}
			qty, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("物料 %q %s: 数值 %q 无法解析，按0处理", code, dayKey(date), raw))
				continue
			}
			cells = append(cells, LineUpsert{ItemID: item.ID, ProductionDate: date, PlannedQty: qty})
		}
	}

	upserted, err := s.BatchUpsertLines(ctx, orderID, cells)
	if err != nil {
		return nil, err
	}
	result.SuccessCount = upserted.SuccessCount
	result.Errors = append(result.Errors, upserted.Errors...)
	return result, nil
}
