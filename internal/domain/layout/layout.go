// Package layout describes where KPI data lives in the Team Leader and
// individual workbooks. The default layout is embedded and may be replaced
// by a YAML file of the same shape.
package layout

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/okian/kpisync/internal/domain/banding"
	"github.com/okian/kpisync/internal/domain/model"
	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayout []byte

// TableKind is the banding family of a Team Leader table.
type TableKind string

// Table kinds. Average tables band each row by its own kind.
const (
	TableBilling TableKind = "billing"
	TableCeased  TableKind = "ceased"
	TableRating  TableKind = "rating"
	TableAverage TableKind = "average"
)

// Layout is the full workbook schema.
type Layout struct {
	TeamLeader TeamLeader `yaml:"team_leader"`
	FTE        FTE        `yaml:"fte"`
	Individual Individual `yaml:"individual"`
}

// TeamLeader lists the dashboard sheets of the Team Leader workbook.
type TeamLeader struct {
	Sheets []Sheet `yaml:"sheets"`
}

// Sheet is one dashboard sheet. Team is empty for sheets that mix teams.
type Sheet struct {
	Name   string       `yaml:"name"`
	Team   model.TeamID `yaml:"team"`
	Tables []Table      `yaml:"tables"`
}

// Table is a named KPI table.
type Table struct {
	Name string `yaml:"name"`
	// KPI is the record key values from this table are stored under.
	KPI  string       `yaml:"kpi"`
	Kind TableKind    `yaml:"kind"`
	Team model.TeamID `yaml:"team"`
	// Rows tags average table rows by label.
	Rows           map[string]banding.Kind `yaml:"rows"`
	DefaultRowKind banding.Kind            `yaml:"default_row_kind"`
}

// FTE locates the roster FTE table.
type FTE struct {
	Sheet string `yaml:"sheet"`
	Table string `yaml:"table"`
}

// Cell is a 1-based sheet position.
type Cell struct {
	Row int `yaml:"row"`
	Col int `yaml:"col"`
}

// KPIRow places one KPI on an individual dashboard.
type KPIRow struct {
	KPI  string       `yaml:"kpi"`
	Row  int          `yaml:"row"`
	Kind banding.Kind `yaml:"kind"`
}

// Individual is the per-therapist workbook layout: months across columns,
// KPIs down rows.
type Individual struct {
	DashboardContains   string                      `yaml:"dashboard_contains"`
	DashboardExcludes   string                      `yaml:"dashboard_excludes"`
	FirstMonthCol       int                         `yaml:"first_month_col"`
	AverageCol          int                         `yaml:"average_col"`
	NameCell            Cell                        `yaml:"name_cell"`
	CompetencyCell      Cell                        `yaml:"competency_cell"`
	KPIs                map[model.TeamType][]KPIRow `yaml:"kpis"`
	BillingThresholdRow map[model.Competency]int    `yaml:"billing_threshold_rows"`
	BillingThresholdCol int                         `yaml:"billing_threshold_col"`
	CeasedThresholdRows []int                       `yaml:"ceased_threshold_rows"`
	CeasedThresholdCol  int                         `yaml:"ceased_threshold_col"`
}

// Default parses the embedded layout.
func Default() (*Layout, error) {
	return Parse(defaultLayout)
}

// Load reads a layout override from path, or the embedded default when path
// is empty.
func Load(path string) (*Layout, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a layout document.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks table kinds, team bindings and individual positions.
func (l *Layout) Validate() error {
	if len(l.TeamLeader.Sheets) == 0 {
		return fmt.Errorf("%w: no team leader sheets", ErrInvalidLayout)
	}
	for _, s := range l.TeamLeader.Sheets {
		for _, t := range s.Tables {
			switch t.Kind {
			case TableBilling, TableCeased, TableRating, TableAverage:
			default:
				return fmt.Errorf("%w: table %s has kind %q", ErrInvalidLayout, t.Name, t.Kind)
			}
			if s.TeamFor(t) == "" {
				return fmt.Errorf("%w: table %s has no team", ErrInvalidLayout, t.Name)
			}
		}
	}
	ind := l.Individual
	if ind.FirstMonthCol <= 0 || ind.AverageCol < ind.FirstMonthCol+len(model.Months)-1 {
		return fmt.Errorf("%w: individual month columns %d..%d", ErrInvalidLayout, ind.FirstMonthCol, ind.AverageCol)
	}
	return nil
}

// TeamFor returns the team a table's rows belong to.
func (s Sheet) TeamFor(t Table) model.TeamID {
	if t.Team != "" {
		return t.Team
	}
	return s.Team
}

// KPITables returns the per-therapist tables of a sheet in layout order.
func (s Sheet) KPITables() []Table {
	var out []Table
	for _, t := range s.Tables {
		if t.Kind != TableAverage {
			out = append(out, t)
		}
	}
	return out
}

// TeamSheet returns the dashboard sheet owned by team.
func (l *Layout) TeamSheet(team model.TeamID) (Sheet, bool) {
	for _, s := range l.TeamLeader.Sheets {
		if s.Team != "" && s.Team.Equal(team) {
			return s, true
		}
	}
	return Sheet{}, false
}

// Teams lists the teams that own a dashboard sheet, in layout order.
func (l *Layout) Teams() []model.TeamID {
	var out []model.TeamID
	for _, s := range l.TeamLeader.Sheets {
		if s.Team != "" {
			out = append(out, s.Team)
		}
	}
	return out
}

// IsAverage reports whether the table bands rows individually.
func (t Table) IsAverage() bool { return t.Kind == TableAverage }

// BandKind returns the banding kind of a regular table.
func (t Table) BandKind() banding.Kind { return banding.ParseKind(string(t.Kind)) }

// RowKind returns the banding kind of an average table row. Labels match
// exactly after trimming, ignoring case.
func (t Table) RowKind(label string) banding.Kind {
	label = strings.TrimSpace(label)
	for k, kind := range t.Rows {
		if strings.EqualFold(strings.TrimSpace(k), label) {
			return banding.ParseKind(string(kind))
		}
	}
	if t.DefaultRowKind != "" {
		return banding.ParseKind(string(t.DefaultRowKind))
	}
	return banding.KindRating
}

// KPIRows returns the individual dashboard rows for a team type.
func (ind Individual) KPIRows(tt model.TeamType) []KPIRow {
	return ind.KPIs[tt]
}

// IsDashboard reports whether a sheet name is the individual dashboard.
func (ind Individual) IsDashboard(sheet string) bool {
	if !strings.Contains(sheet, ind.DashboardContains) {
		return false
	}
	return ind.DashboardExcludes == "" || !strings.Contains(sheet, ind.DashboardExcludes)
}
