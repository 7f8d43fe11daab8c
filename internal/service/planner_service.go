package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
)

// 计划行类型
const (
	RowTypePlan  = "生产计划"
	RowTypeStock = "即时库存"
)

// 计算口径
const (
	ModeParent        = "parent"
	ModeChild         = "child"
	ModeComprehensive = "comprehensive"
)

// 分桶粒度
const (
	BucketDay  = "day"
	BucketWeek = "week"
)

// PlanRequest 计划计算请求
type PlanRequest struct {
	OrderID      int64     `json:"order_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	IncludeTypes []string  `json:"include_types"` // 缺省 {RM, PKG}
	Mode         string    `json:"mode"`          // 缺省 child
	Bucket       string    `json:"bucket"`        // 缺省 day
	Persist      bool      `json:"persist"`       // child口径下落库
}

// PlanRow 输出行。每个物料一对：生产计划行带需求，
// 即时库存行带滚动结余，负数保留（即缺口信号）。
type PlanRow struct {
	ItemID      int64   `json:"item_id"`
	ItemCode    string  `json:"item_code"`
	ItemName    string  `json:"item_name"`
	ItemSpec    string  `json:"item_spec"`
	ItemType    string  `json:"item_type"`
	Brand       string  `json:"brand"`
	ProjectName string  `json:"project_name"`
	RowType     string  `json:"row_type"`
	StartOnHand float64 `json:"start_on_hand"`

	// comprehensive口径的增广起始位置。展示串保留旧格式 "<onhand>+<plan>"，
	// 数据仍是结构化数值。
	StartOnHandDisplay string  `json:"start_on_hand_display,omitempty"`
	FirstBucketPlan    float64 `json:"first_bucket_plan,omitempty"`
	TotalStock         float64 `json:"total_stock,omitempty"`

	Cells map[string]float64 `json:"cells"`
}

// PlanResult 计划输出：升序桶键列表 + 行
type PlanResult struct {
	Weeks []string  `json:"weeks"`
	Rows  []PlanRow `json:"rows"`
}

// PlannerService 物料需求计划
type PlannerService struct {
	repos      *repository.Repositories
	bomService *BOMService
}

func NewPlannerService(repos *repository.Repositories, bomService *BOMService) *PlannerService {
	return &PlannerService{repos: repos, bomService: bomService}
}

// dayKey 日桶键
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// weekKey ISO周桶键
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// bucketYear 桶键归属的ISO日历年，年度小计分组用
func bucketYear(key string) int {
	if idx := strings.Index(key, "-W"); idx > 0 {
		year, err := strconv.Atoi(key[:idx])
		if err == nil {
			return year
		}
		return 0
	}
	t, err := time.ParseInLocation("2006-01-02", key, time.Local)
	if err != nil {
		return 0
	}
	year, _ := t.ISOWeek()
	return year
}

// buckets 时间窗内的桶键，升序
func buckets(start, end time.Time, granularity string) []string {
	var keys []string
	seen := make(map[string]bool)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := dayKey(d)
		if granularity == BucketWeek {
			key = weekKey(d)
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

type itemMeta struct {
	ItemID      int64
	ItemCode    string
	ItemName    string
	ItemSpec    string
	ItemType    string
	Brand       string
	ProjectName string
}

// Calculate 计算计划。需求按桶累计，在手量按读取时的库存合计，
// 即时库存逐桶递减，无补货逻辑。
func (s *PlannerService) Calculate(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if req.Mode == "" {
		req.Mode = ModeChild
	}
	if req.Bucket == "" {
		req.Bucket = BucketDay
	}
	if len(req.IncludeTypes) == 0 {
		req.IncludeTypes = []string{entity.ItemTypeRM, entity.ItemTypePKG}
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("%w: 结束日期早于开始日期", ErrValidationFailed)
	}

	if _, err := s.repos.Scheduling.GetOrder(ctx, req.OrderID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: 排产订单 %d", ErrNotFound, req.OrderID)
		}
		return nil, err
	}

	lines, err := s.repos.Scheduling.ListLinesInRange(ctx, req.OrderID, req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailed, err)
	}

	keys := buckets(req.Start, req.End, req.Bucket)
	bucketOf := func(t time.Time) string {
		if req.Bucket == BucketWeek {
			return weekKey(t)
		}
		return dayKey(t)
	}

	// 父件需求
	parentDemand := make(map[int64]map[string]float64)
	for _, line := range lines {
		if parentDemand[line.ItemID] == nil {
			parentDemand[line.ItemID] = make(map[string]float64)
		}
		parentDemand[line.ItemID][bucketOf(line.ProductionDate)] += line.PlannedQty
	}

	include := make(map[string]bool, len(req.IncludeTypes))
	for _, t := range req.IncludeTypes {
		include[t] = true
	}

	// 子件需求：逐个有量的父件格做BOM展开累计
	childDemand := make(map[int64]map[string]float64)
	childMeta := make(map[int64]itemMeta)
	for _, line := range lines {
		if line.PlannedQty <= 0 {
			continue
		}
		expanded, err := s.bomService.Expand(ctx, line.ItemID, line.PlannedQty, "")
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // 父件无BOM
			}
			return nil, err
		}
		bucket := bucketOf(line.ProductionDate)
		for _, exp := range expanded {
			if !include[exp.ItemType] {
				continue
			}
			if childDemand[exp.ItemID] == nil {
				childDemand[exp.ItemID] = make(map[string]float64)
			}
			childDemand[exp.ItemID][bucket] += exp.ActualQty
			childMeta[exp.ItemID] = itemMeta{
				ItemID:      exp.ItemID,
				ItemCode:    exp.ItemCode,
				ItemName:    exp.ItemName,
				ItemSpec:    exp.ItemSpec,
				ItemType:    exp.ItemType,
				Brand:       exp.Brand,
				ProjectName: exp.ProjectName,
			}
		}
	}

	var result *PlanResult
	switch req.Mode {
	case ModeParent:
		result, err = s.buildRows(ctx, keys, parentDemand, s.parentMeta(ctx, req.OrderID, parentDemand), true, false)
	case ModeChild:
		result, err = s.buildRows(ctx, keys, childDemand, childMeta, false, false)
	case ModeComprehensive:
		result, err = s.buildRows(ctx, keys, childDemand, childMeta, false, true)
	default:
		return nil, fmt.Errorf("%w: 计算口径 %q 无效", ErrValidationFailed, req.Mode)
	}
	if err != nil {
		return nil, err
	}

	if req.Persist && req.Mode == ModeChild && req.Bucket == BucketDay {
		if err := s.persistChildResults(ctx, req.OrderID, keys, childDemand); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// parentMeta 父件展示字段，优先取订单产品快照
func (s *PlannerService) parentMeta(ctx context.Context, orderID int64, demand map[int64]map[string]float64) map[int64]itemMeta {
	meta := make(map[int64]itemMeta, len(demand))
	products, err := s.repos.Scheduling.ListProducts(ctx, orderID)
	if err == nil {
		for _, p := range products {
			meta[p.ItemID] = itemMeta{
				ItemID:      p.ItemID,
				ItemCode:    p.ItemCode,
				ItemName:    p.CnName,
				ItemSpec:    p.ItemSpec,
				Brand:       p.Brand,
				ProjectName: p.ProjectName,
			}
		}
	}
	for itemID := range demand {
		if _, ok := meta[itemID]; ok {
			continue
		}
		item, err := s.repos.Item.GetByID(ctx, itemID)
		if err != nil {
			continue
		}
		meta[itemID] = itemMeta{
			ItemID:      item.ID,
			ItemCode:    item.ItemCode,
			ItemName:    item.CnName,
			ItemSpec:    item.ItemSpec,
			ItemType:    item.ItemType,
			Brand:       item.Brand,
			ProjectName: item.ProjectName,
		}
	}
	return meta
}

// buildRows 组装行对。withTotal 追加跨物料合计行对，
// augmented 填充comprehensive口径的增广起始位置。
func (s *PlannerService) buildRows(ctx context.Context, keys []string, demand map[int64]map[string]float64, meta map[int64]itemMeta, withTotal, augmented bool) (*PlanResult, error) {
	itemIDs := make([]int64, 0, len(demand))
	for id := range demand {
		itemIDs = append(itemIDs, id)
	}
	onhand, err := s.repos.Inventory.GetTotalStockBulk(ctx, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailed, err)
	}

	sort.Slice(itemIDs, func(i, j int) bool {
		return meta[itemIDs[i]].ItemCode < meta[itemIDs[j]].ItemCode
	})

	result := &PlanResult{Weeks: keys}
	totalPlan := make(map[string]float64)
	var totalOnHand float64

	for _, itemID := range itemIDs {
		m := meta[itemID]
		stock := onhand[itemID]
		cells := demand[itemID]

		planRow := PlanRow{
			ItemID: m.ItemID, ItemCode: m.ItemCode, ItemName: m.ItemName,
			ItemSpec: m.ItemSpec, ItemType: m.ItemType, Brand: m.Brand,
			ProjectName: m.ProjectName, RowType: RowTypePlan,
			StartOnHand: stock, Cells: make(map[string]float64, len(keys)),
		}
		stockRow := planRow
		stockRow.RowType = RowTypeStock
		stockRow.Cells = make(map[string]float64, len(keys))

		running := stock
		for _, key := range keys {
			qty := cells[key]
			planRow.Cells[key] = qty
			running -= qty
			stockRow.Cells[key] = running
			totalPlan[key] += qty
		}
		totalOnHand += stock

		if augmented {
			firstPlan := 0.0
			if len(keys) > 0 {
				firstPlan = cells[keys[0]]
			}
			display := fmt.Sprintf("%s+%s", formatQty(stock), formatQty(firstPlan))
			for _, row := range []*PlanRow{&planRow, &stockRow} {
				row.FirstBucketPlan = firstPlan
				row.TotalStock = stock + firstPlan
				row.StartOnHandDisplay = display
			}
		}

		result.Rows = append(result.Rows, planRow, stockRow)
	}

	if withTotal {
		totalPlanRow := PlanRow{
			ItemCode: "TOTAL", ItemName: "合计", RowType: RowTypePlan,
			StartOnHand: totalOnHand, Cells: make(map[string]float64, len(keys)),
		}
		totalStockRow := totalPlanRow
		totalStockRow.RowType = RowTypeStock
		totalStockRow.Cells = make(map[string]float64, len(keys))

		running := totalOnHand
		for _, key := range keys {
			qty := totalPlan[key]
			totalPlanRow.Cells[key] = qty
			running -= qty
			totalStockRow.Cells[key] = running
		}
		result.Rows = append(result.Rows, totalPlanRow, totalStockRow)
	}

	return result, nil
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// persistChildResults 子件口径结果落库。OnHandQty 为消耗到该桶前的滚动结余，
// NetQty = max(0, 需求 − 彼时在手)。落库仅供查阅，重算为准。
func (s *PlannerService) persistChildResults(ctx context.Context, orderID int64, keys []string, demand map[int64]map[string]float64) error {
	itemIDs := make([]int64, 0, len(demand))
	for id := range demand {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

	onhand, err := s.repos.Inventory.GetTotalStockBulk(ctx, itemIDs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailed, err)
	}

	var rows []entity.SchedulingOrderMRP
	for _, itemID := range itemIDs {
		running := onhand[itemID]
		for _, key := range keys {
			date, err := time.ParseInLocation("2006-01-02", key, time.Local)
			if err != nil {
				continue
			}
			required := demand[itemID][key]
			net := required - running
			if net < 0 {
				net = 0
			}
			rows = append(rows, entity.SchedulingOrderMRP{
				OrderID:        orderID,
				ItemID:         itemID,
				ProductionDate: date,
				RequiredQty:    required,
				OnHandQty:      running,
				NetQty:         net,
			})
			running -= required
		}
	}
	if err := s.repos.Scheduling.ReplaceMRPResults(ctx, orderID, rows); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailed, err)
	}
	return nil
}

// RowGrandTotal 行合计列
func RowGrandTotal(row PlanRow, weeks []string) float64 {
	var total float64
	for _, key := range weeks {
		total += row.Cells[key]
	}
	return total
}

// RowYearSubtotals 按ISO日历年分组的年度小计列，
// 各消费方据此得到一致的表。
func RowYearSubtotals(row PlanRow, weeks []string) map[int]float64 {
	subtotals := make(map[int]float64)
	for _, key := range weeks {
		subtotals[bucketYear(key)] += row.Cells[key]
	}
	return subtotals
}
