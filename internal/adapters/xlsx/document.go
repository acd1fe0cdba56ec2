// Package xlsx implements workbook.Document on top of excelize.
package xlsx

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/xuri/excelize/v2"
)

// Document wraps an excelize file.
type Document struct {
	mu       sync.Mutex
	f        *excelize.File
	styles   map[styleKey]int
	cfStyles map[string]int
}

var _ workbook.Document = (*Document)(nil)

// Open parses workbook bytes.
func Open(data []byte) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return Wrap(f), nil
}

// New returns an empty workbook with the default sheet.
func New() *Document {
	return Wrap(excelize.NewFile())
}

// Wrap adopts an already open excelize file.
func Wrap(f *excelize.File) *Document {
	return &Document{
		f:        f,
		styles:   make(map[styleKey]int),
		cfStyles: make(map[string]int),
	}
}

// File exposes the underlying excelize file.
func (d *Document) File() *excelize.File { return d.f }

// Sheets lists sheet names in workbook order.
func (d *Document) Sheets() []string { return d.f.GetSheetList() }

// HasSheet reports whether the sheet exists.
func (d *Document) HasSheet(sheet string) bool {
	idx, err := d.f.GetSheetIndex(sheet)
	return err == nil && idx >= 0
}

// Table finds a named table on a sheet. Names compare case-insensitively.
func (d *Document) Table(sheet, name string) (workbook.Table, error) {
	t, err := d.table(sheet, name)
	if err != nil {
		return workbook.Table{}, err
	}
	r, err := ParseRange(t.Range)
	if err != nil {
		return workbook.Table{}, err
	}
	return workbook.Table{Name: t.Name, Sheet: sheet, Range: r}, nil
}

func (d *Document) table(sheet, name string) (excelize.Table, error) {
	if !d.HasSheet(sheet) {
		return excelize.Table{}, fmt.Errorf("%w: %s", workbook.ErrSheetNotFound, sheet)
	}
	tables, err := d.f.GetTables(sheet)
	if err != nil {
		return excelize.Table{}, fmt.Errorf("list tables on %s: %w", sheet, err)
	}
	for _, t := range tables {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return excelize.Table{}, fmt.Errorf("%w: %s on %s", workbook.ErrTableNotFound, name, sheet)
}

// Rows returns raw cell values for every populated row.
func (d *Document) Rows(sheet string) ([][]workbook.Value, error) {
	if !d.HasSheet(sheet) {
		return nil, fmt.Errorf("%w: %s", workbook.ErrSheetNotFound, sheet)
	}
	rows, err := d.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows of %s: %w", sheet, err)
	}
	out := make([][]workbook.Value, len(rows))
	for i, row := range rows {
		vals := make([]workbook.Value, len(row))
		for j, c := range row {
			vals[j] = parseRaw(c)
		}
		out[i] = vals
	}
	return out, nil
}

// Cell returns the raw value at (row, col).
func (d *Document) Cell(sheet string, row, col int) (workbook.Value, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", workbook.ErrInvalidRange, err)
	}
	v, err := d.f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read %s!%s: %w", sheet, ref, err)
	}
	return parseRaw(v), nil
}

// Formula returns the formula at (row, col) without its leading "=".
func (d *Document) Formula(sheet string, row, col int) (string, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", fmt.Errorf("%w: %v", workbook.ErrInvalidRange, err)
	}
	f, err := d.f.GetCellFormula(sheet, ref)
	if err != nil {
		return "", fmt.Errorf("read formula %s!%s: %w", sheet, ref, err)
	}
	return strings.TrimPrefix(f, "="), nil
}

// SetCell writes a value. nil clears the cell's value but keeps its style.
// A formula in the cell is dropped.
func (d *Document) SetCell(sheet string, row, col int, v workbook.Value) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("%w: %v", workbook.ErrInvalidRange, err)
	}
	f, err := d.f.GetCellFormula(sheet, ref)
	if err != nil {
		return fmt.Errorf("read formula %s!%s: %w", sheet, ref, err)
	}
	if f != "" {
		if err := d.f.SetCellFormula(sheet, ref, ""); err != nil {
			return fmt.Errorf("drop formula %s!%s: %w", sheet, ref, err)
		}
	}
	if err := d.f.SetCellValue(sheet, ref, v); err != nil {
		return fmt.Errorf("write %s!%s: %w", sheet, ref, err)
	}
	return nil
}

// SetFormula writes a formula; a leading "=" is optional.
func (d *Document) SetFormula(sheet string, row, col int, formula string) error {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("%w: %v", workbook.ErrInvalidRange, err)
	}
	if err := d.f.SetCellFormula(sheet, ref, strings.TrimPrefix(formula, "=")); err != nil {
		return fmt.Errorf("write formula %s!%s: %w", sheet, ref, err)
	}
	return nil
}

// styleKey identifies a style derived from an existing cell style.
type styleKey struct {
	base  int
	style workbook.Style
	paint bool
}

// SetStyle overlays s on the current style of every cell in r.
func (d *Document) SetStyle(sheet string, r workbook.Range, s workbook.Style) error {
	if s.IsZero() {
		return nil
	}
	return d.restyle(sheet, r, func(base int) (int, error) {
		return d.derived(styleKey{base: base, style: s}, func(st *excelize.Style) {
			if s.Fill != "" {
				st.Fill = solid(s.Fill)
			}
			if s.FontColor != "" {
				if st.Font == nil {
					st.Font = &excelize.Font{}
				}
				st.Font.Color = RGB(s.FontColor)
			}
			if s.Center {
				if st.Alignment == nil {
					st.Alignment = &excelize.Alignment{}
				}
				st.Alignment.Horizontal, st.Alignment.Vertical = "center", "center"
			}
			if s.NumFmt != "" {
				numFmt := s.NumFmt
				st.CustomNumFmt = &numFmt
			}
		})
	})
}

// Paint replaces the fill and font of every cell in r and keeps the rest of
// each cell's style.
func (d *Document) Paint(sheet string, r workbook.Range, fill, font string) error {
	s := workbook.Style{Fill: fill, FontColor: font}
	return d.restyle(sheet, r, func(base int) (int, error) {
		return d.derived(styleKey{base: base, style: s, paint: true}, func(st *excelize.Style) {
			st.Fill = excelize.Fill{}
			if fill != "" {
				st.Fill = solid(fill)
			}
			st.Font = nil
			if font != "" {
				st.Font = &excelize.Font{Color: RGB(font)}
			}
		})
	})
}

// restyle moves each cell in r from its current style id to next(id).
func (d *Document) restyle(sheet string, r workbook.Range, next func(base int) (int, error)) error {
	for row := r.FromRow; row <= r.ToRow; row++ {
		for col := r.FromCol; col <= r.ToCol; col++ {
			ref, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return fmt.Errorf("%w: %v", workbook.ErrInvalidRange, err)
			}
			base, err := d.f.GetCellStyle(sheet, ref)
			if err != nil {
				return fmt.Errorf("read style %s!%s: %w", sheet, ref, err)
			}
			id, err := next(base)
			if err != nil {
				return err
			}
			if id == base {
				continue
			}
			if err := d.f.SetCellStyle(sheet, ref, ref, id); err != nil {
				return fmt.Errorf("style %s!%s: %w", sheet, ref, err)
			}
		}
	}
	return nil
}

// derived returns the id of the base style changed by apply, creating it
// once per document.
func (d *Document) derived(key styleKey, apply func(*excelize.Style)) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.styles[key]; ok {
		return id, nil
	}
	st, err := d.f.GetStyle(key.base)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStyle, err)
	}
	apply(st)
	id, err := d.f.NewStyle(st)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStyle, err)
	}
	d.styles[key] = id
	return id, nil
}

func solid(colour string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Color: []string{RGB(colour)}, Pattern: 1}
}

// ResizeTable re-declares a table over a new range keeping its name and
// style flags. Cell values and cell formulas are untouched, but the table is
// rebuilt from its header row, so table-level column definitions such as a
// calculated-column formula are not carried over and rows added later are
// not auto-filled by Excel.
func (d *Document) ResizeTable(t workbook.Table, to workbook.Range) error {
	if to.ToRow <= to.FromRow || to.ToCol < to.FromCol {
		return fmt.Errorf("%w: table %s needs a header and one data row", workbook.ErrInvalidRange, t.Name)
	}
	old, err := d.table(t.Sheet, t.Name)
	if err != nil {
		return err
	}
	ref, err := FormatRange(to)
	if err != nil {
		return err
	}
	if err := d.f.DeleteTable(old.Name); err != nil {
		return fmt.Errorf("drop table %s: %w", old.Name, err)
	}
	if err := d.f.AddTable(t.Sheet, &excelize.Table{
		Range:             ref,
		Name:              old.Name,
		StyleName:         old.StyleName,
		ShowColumnStripes: old.ShowColumnStripes,
		ShowFirstColumn:   old.ShowFirstColumn,
		ShowHeaderRow:     old.ShowHeaderRow,
		ShowLastColumn:    old.ShowLastColumn,
		ShowRowStripes:    old.ShowRowStripes,
	}); err != nil {
		return fmt.Errorf("redeclare table %s as %s: %w", old.Name, ref, err)
	}
	return nil
}

// ClearFillRules removes every conditional format on a sheet.
func (d *Document) ClearFillRules(sheet string) error {
	formats, err := d.f.GetConditionalFormats(sheet)
	if err != nil {
		return fmt.Errorf("list conditional formats on %s: %w", sheet, err)
	}
	for ref := range formats {
		if err := d.f.UnsetConditionalFormat(sheet, ref); err != nil {
			return fmt.Errorf("unset conditional format %s!%s: %w", sheet, ref, err)
		}
	}
	return nil
}

// AddFillRules appends rules to r in priority order.
func (d *Document) AddFillRules(sheet string, r workbook.Range, rules []workbook.FillRule) error {
	if len(rules) == 0 {
		return nil
	}
	from, _, err := cellNames(r)
	if err != nil {
		return err
	}
	ref, err := FormatRange(r)
	if err != nil {
		return err
	}
	opts := make([]excelize.ConditionalFormatOptions, 0, len(rules))
	for _, rule := range rules {
		format, err := d.fillFormat(rule.Colour)
		if err != nil {
			return err
		}
		opt := excelize.ConditionalFormatOptions{Format: format}
		switch rule.Predicate {
		case workbook.Blank:
			opt.Type = "formula"
			opt.Criteria = "LEN(TRIM(" + from + "))=0"
		case workbook.Greater:
			opt.Type, opt.Criteria, opt.Value = "cell", ">", rule.Value.String()
		case workbook.GreaterOrEqual:
			opt.Type, opt.Criteria, opt.Value = "cell", ">=", rule.Value.String()
		case workbook.Less:
			opt.Type, opt.Criteria, opt.Value = "cell", "<", rule.Value.String()
		default:
			return fmt.Errorf("unknown rule predicate %d", rule.Predicate)
		}
		opts = append(opts, opt)
	}
	if err := d.f.SetConditionalFormat(sheet, ref, opts); err != nil {
		return fmt.Errorf("conditional format %s!%s: %w", sheet, ref, err)
	}
	return nil
}

func (d *Document) fillFormat(colour string) (int, error) {
	rgb := RGB(colour)
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.cfStyles[rgb]; ok {
		return id, nil
	}
	id, err := d.f.NewConditionalStyle(&excelize.Style{
		Fill: solid(rgb),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStyle, err)
	}
	d.cfStyles[rgb] = id
	return id, nil
}

// Bytes serialises the workbook.
func (d *Document) Bytes() ([]byte, error) {
	buf, err := d.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSave, err)
	}
	return buf.Bytes(), nil
}

// Close releases the file's temporary resources.
func (d *Document) Close() error { return d.f.Close() }

// RGB normalises "#RRGGBB" and "AARRGGBB" colours to "RRGGBB".
func RGB(colour string) string {
	c := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(colour), "#"))
	if len(c) == 8 {
		return c[2:]
	}
	return c
}

func parseRaw(s string) workbook.Value {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}
