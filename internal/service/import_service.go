package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mps/internal/model/entity"
	"github.com/bitfantasy/nimo-mps/internal/repository"
	"github.com/xuri/excelize/v2"
)

// 矩阵表布局：前4行从D列起是产品标识（编码/名称/规格/品牌），
// 第5行起A–C列是组件标识（编码/名称/规格），交叉格为单位用量。
const (
	matrixProductStartCol   = 3 // D列
	matrixComponentStartRow = 4 // 第5行
)

// 导入建头的缺省值
var importDefaultExpire = time.Date(2035, 12, 31, 0, 0, 0, 0, time.Local)

// ImportService 矩阵BOM导入：模糊匹配物料，对既有结构做差异对账
type ImportService struct {
	repos       *repository.Repositories
	bomService  *BOMService
	archive     *ArchiveService
	statusCache *StatusCache
}

func NewImportService(repos *repository.Repositories, bomService *BOMService, archive *ArchiveService, statusCache *StatusCache) *ImportService {
	return &ImportService{repos: repos, bomService: bomService, archive: archive, statusCache: statusCache}
}

// norm 匹配归一化：去空白、连字符、下划线、点后转小写
func norm(s string) string {
	replacer := strings.NewReplacer(" ", "", "\t", "", "-", "", "_", "", ".", "", "　", "")
	return strings.ToLower(replacer.Replace(s))
}

// matrixProduct 矩阵中的产品列
type matrixProduct struct {
	Col   int
	Code  string
	Name  string
	Spec  string
	Brand string
}

// matrixComponent 矩阵中的组件行
type matrixComponent struct {
	Row  int
	Code string
	Name string
	Spec string
}

// matrixSheet 解析后的矩阵
type matrixSheet struct {
	Products   []matrixProduct
	Components []matrixComponent
	rows       [][]string
}

func (m *matrixSheet) cell(row, col int) string {
	if row >= len(m.rows) {
		return ""
	}
	line := m.rows[row]
	if col >= len(line) {
		return ""
	}
	return strings.TrimSpace(line[col])
}

// parseMatrix 解析矩阵表。表太小、无产品、无组件各自报结构错误。
func parseMatrix(f *excelize.File) (*matrixSheet, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取工作表失败: %v", ErrParseFailed, err)
	}
	if len(rows) <= matrixComponentStartRow {
		return nil, fmt.Errorf("%w: 表格行数不足", ErrParseFailed)
	}

	m := &matrixSheet{rows: rows}

	maxCol := 0
	for r := 0; r < 4; r++ {
		if len(rows[r]) > maxCol {
			maxCol = len(rows[r])
		}
	}
	for c := matrixProductStartCol; c < maxCol; c++ {
		p := matrixProduct{
			Col:   c,
			Code:  m.cell(0, c),
			Name:  m.cell(1, c),
			Spec:  m.cell(2, c),
			Brand: m.cell(3, c),
		}
		if p.Code == "" && p.Name == "" && p.Brand == "" {
			continue
		}
		m.Products = append(m.Products, p)
	}
	if len(m.Products) == 0 {
		return nil, fmt.Errorf("%w: 表格中没有产品列", ErrParseFailed)
	}

	for r := matrixComponentStartRow; r < len(rows); r++ {
		comp := matrixComponent{
			Row:  r,
			Code: m.cell(r, 0),
			Name: m.cell(r, 1),
			Spec: m.cell(r, 2),
		}
		if comp.Code == "" && comp.Name == "" && comp.Spec == "" {
			continue
		}
		m.Components = append(m.Components, comp)
	}
	if len(m.Components) == 0 {
		return nil, fmt.Errorf("%w: 表格中没有组件行", ErrParseFailed)
	}

	return m, nil
}

// parseQty 单元格数值。空白和非数字按0处理。
func parseQty(raw string) float64 {
	if raw == "" {
		return 0
	}
	qty, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return qty
}

// resolveProduct 产品解析：先按品牌在FG内圈定候选，
// 多候选时按加权得分取最优（编码3、名称2、规格1），无候选报匹配失败。
func (s *ImportService) resolveProduct(ctx context.Context, tx *repository.Repositories, p matrixProduct) (*entity.Item, error) {
	fgs, err := tx.Item.ByType(ctx, entity.ItemTypeFG, true)
	if err != nil {
		return nil, err
	}
	var candidates []entity.Item
	for _, item := range fgs {
		if item.Brand == p.Brand {
			candidates = append(candidates, item)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: 品牌 %q 没有对应的成品物料", ErrMatchFailed, p.Brand)
	case 1:
		return &candidates[0], nil
	}

	best := -1
	bestScore := 0
	for i, item := range candidates {
		score := 0
		if norm(p.Code) != "" && norm(p.Code) == norm(item.ItemCode) {
			score += 3
		}
		if norm(p.Name) != "" && norm(p.Name) == norm(item.CnName) {
			score += 2
		}
		if norm(p.Spec) != "" && norm(p.Spec) == norm(item.ItemSpec) {
			score += 1
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		best = 0 // 同品牌多候选且无进一步区分时取第一个
	}
	return &candidates[best], nil
}

// resolveComponent 组件解析：在RM/SFG/FG中按归一化编码（权3）
// 和规格（权2）打分，得分≥2才认定命中。
func (s *ImportService) resolveComponent(ctx context.Context, tx *repository.Repositories, c matrixComponent) (*entity.Item, error) {
	candidates, err := tx.Item.ByTypes(ctx,
		[]string{entity.ItemTypeRM, entity.ItemTypeSFG, entity.ItemTypeFG}, true)
	if err != nil {
		return nil, err
	}

	best := -1
	bestScore := 0
	for i, item := range candidates {
		score := 0
		if norm(c.Code) != "" && norm(c.Code) == norm(item.ItemCode) {
			score += 3
		}
		if norm(c.Spec) != "" && norm(c.Spec) == norm(item.ItemSpec) {
			score += 2
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if bestScore < 2 {
		return nil, fmt.Errorf("%w: 组件 %q / %q 无法匹配物料", ErrMatchFailed, c.Code, c.Spec)
	}
	return &candidates[best], nil
}

// ImportMatrix 导入矩阵BOM。整个导入在一个事务内完成；
// 结构性错误中止导入，逐格的匹配失败收集进结果不中断。
// raw 非空时原件归档入对象存储。
func (s *ImportService) ImportMatrix(ctx context.Context, f *excelize.File, raw []byte, user string) (*BatchResult, error) {
	matrix, err := parseMatrix(f)
	if err != nil {
		return nil, err
	}

	archiveKey := ""
	if key, err := s.archive.Store(ctx, "bom-imports", raw); err == nil {
		archiveKey = key
	} else {
		return nil, err
	}

	result := &BatchResult{}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// 同一品牌共用一个BOM头，按品牌分组对账
		byBrand := make(map[string][]matrixProduct)
		var brandOrder []string
		for _, p := range matrix.Products {
			if _, ok := byBrand[p.Brand]; !ok {
				brandOrder = append(brandOrder, p.Brand)
			}
			byBrand[p.Brand] = append(byBrand[p.Brand], p)
		}

		for _, brand := range brandOrder {
			if err := s.importBrand(ctx, tx, matrix, brand, byBrand[brand], user, archiveKey, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// importBrand 对账单个品牌：矩阵即目标结构，
// 既有行先读一次，处理后剩余的行全部删除。
func (s *ImportService) importBrand(ctx context.Context, tx *repository.Repositories, matrix *matrixSheet, brand string, products []matrixProduct, user, archiveKey string, result *BatchResult) error {
	product, err := s.resolveProduct(ctx, tx, products[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("品牌 %q: %v", brand, err))
		return nil
	}

	header, err := tx.BOM.GetHeaderByNameRev(ctx, brand, "A")
	if errors.Is(err, repository.ErrNotFound) {
		header = &entity.BOMHeader{
			BomName:       brand,
			Rev:           "A",
			ParentItemID:  product.ID,
			EffectiveDate: time.Now(),
			ExpireDate:    &importDefaultExpire,
			IsActive:      true,
		}
		if err := tx.BOM.CreateHeader(ctx, header); err != nil {
			return fmt.Errorf("%w: 创建BOM头失败: %v", ErrIOFailed, err)
		}
		if err := s.bomService.logOp(ctx, tx, header.ID, entity.OpCreate, entity.TargetHeader, &header.ID,
			"", snapshotHeader(header), user, SourceImport, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	existing, err := tx.BOM.GetLines(ctx, header.ID)
	if err != nil {
		return err
	}
	existingByChild := make(map[int64]entity.BOMLine, len(existing))
	for _, line := range existing {
		existingByChild[line.ChildItemID] = line
	}
	processed := make(map[int64]bool)

	for _, p := range products {
		for _, comp := range matrix.Components {
			qty := parseQty(matrix.cell(comp.Row, p.Col))

			child, err := s.resolveComponent(ctx, tx, comp)
			if err != nil {
				if qty > 0 {
					result.Errors = append(result.Errors,
						fmt.Sprintf("第%d行 组件 %q: %v", comp.Row+1, comp.Code, err))
				}
				continue
			}

			line, exists := existingByChild[child.ID]
			switch {
			case qty > 0 && !exists:
				newLine := entity.BOMLine{BomID: header.ID, ChildItemID: child.ID, QtyPer: qty}
				if err := tx.BOM.CreateLine(ctx, &newLine); err != nil {
					return fmt.Errorf("%w: %v", ErrIOFailed, err)
				}
				if err := s.bomService.logOp(ctx, tx, header.ID, entity.OpCreate, entity.TargetLine, &newLine.ID,
					"", snapshotLine(&newLine), user, SourceImport, ""); err != nil {
					return err
				}
			case qty > 0 && exists:
				if line.QtyPer != qty {
					oldSnap := snapshotLine(&line)
					line.QtyPer = qty
					if err := tx.BOM.UpdateLine(ctx, &line); err != nil {
						return fmt.Errorf("%w: %v", ErrIOFailed, err)
					}
					if err := s.bomService.logOp(ctx, tx, header.ID, entity.OpUpdate, entity.TargetLine, &line.ID,
						oldSnap, snapshotLine(&line), user, SourceImport, ""); err != nil {
						return err
					}
				}
			case qty <= 0 && exists:
				if err := tx.BOM.DeleteLine(ctx, line.ID); err != nil {
					return fmt.Errorf("%w: %v", ErrIOFailed, err)
				}
				if err := s.bomService.logOp(ctx, tx, header.ID, entity.OpDelete, entity.TargetLine, &line.ID,
					snapshotLine(&line), "", user, SourceImport, ""); err != nil {
					return err
				}
			}
			processed[child.ID] = true
			result.SuccessCount++
		}
	}

	// 对账闭合：矩阵里没出现的既有子件全部删除
	for childID, line := range existingByChild {
		if processed[childID] {
			continue
		}
		if err := tx.BOM.DeleteLine(ctx, line.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailed, err)
		}
		if err := s.bomService.logOp(ctx, tx, header.ID, entity.OpDelete, entity.TargetLine, &line.ID,
			snapshotLine(&line), "", user, SourceImport, "矩阵对账删除"); err != nil {
			return err
		}
	}

	remark := fmt.Sprintf("矩阵导入，品牌 %s", brand)
	if archiveKey != "" {
		remark += "，原件: " + archiveKey
	}
	if err := s.bomService.logOp(ctx, tx, header.ID, entity.OpImport, entity.TargetHeader, &header.ID,
		"", "", user, SourceImport, remark); err != nil {
		return err
	}

	s.statusCache.InvalidateBOMs(ctx, []int64{header.ID})
	return nil
}
