// Package configbook reads the KPI config workbook into a model.Config.
//
// Only Config_Therapists is required. Every other sheet is optional and falls
// back to built-in defaults with a warning.
package configbook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/okian/kpisync/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the config workbook.
const (
	SheetTherapists         = "Config_Therapists"
	SheetTeams              = "Config_Teams"
	SheetThresholdsPhysio   = "Config_Thresholds_Physio"
	SheetThresholdsOT       = "Config_Thresholds_OT"
	SheetColours            = "Config_Colours"
	SheetCompetencyHistory  = "Config_Competency_History"
	SheetTeamAverageHistory = "Config_TeamAve_Thresholds"
)

// Fixed row blocks on the threshold sheets (1-based, inclusive).
const (
	billingFirstRow = 2
	billingLastRow  = 5
	ceasedFirstRow  = 8
	ceasedLastRow   = 9
	ratingFirstRow  = 13
	ratingLastRow   = 17
	ceasedLabel     = "Ceased %"
)

// Loader parses config workbooks.
type Loader struct {
	log logger.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Loader) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{log: logger.Get().Named("configbook")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses every config sheet.
func Load(ctx context.Context, doc workbook.Document, opts ...Option) (*model.Config, error) {
	return New(opts...).Load(ctx, doc)
}

// Load parses every config sheet of doc.
func (l *Loader) Load(ctx context.Context, doc workbook.Document) (*model.Config, error) {
	if !doc.HasSheet(SheetTherapists) {
		return nil, fmt.Errorf("%w: %s", ErrMissingTherapists, SheetTherapists)
	}
	cfg := model.NewConfig()

	therapists, err := l.therapists(ctx, doc)
	if err != nil {
		return nil, err
	}
	cfg.Therapists = therapists
	cfg.Teams = l.teams(ctx, doc)

	physio := l.thresholds(ctx, doc, SheetThresholdsPhysio, nil)
	cfg.Thresholds[model.TeamTypePhysio] = physio
	cfg.Thresholds[model.TeamTypeOT] = l.thresholds(ctx, doc, SheetThresholdsOT, &physio)

	cfg.Palette = l.colours(ctx, doc)
	cfg.CompetencyHistory = l.competencyHistory(ctx, doc)
	cfg.TeamAverageHistory = l.teamAverageHistory(ctx, doc)

	l.log.Info(ctx, "config loaded",
		logger.Int("therapists", len(cfg.Therapists)),
		logger.Int("teams", len(cfg.Teams)),
		logger.Int("competency_history", len(cfg.CompetencyHistory)),
		logger.Int("team_average_history", len(cfg.TeamAverageHistory)),
	)
	return cfg, nil
}

// table is a header-labelled sheet.
type table struct {
	header map[string]int
	rows   [][]workbook.Value
}

func (t table) get(row []workbook.Value, label string) workbook.Value {
	i, ok := t.header[strings.ToLower(label)]
	if !ok || i >= len(row) {
		return nil
	}
	return row[i]
}

func (t table) has(label string) bool {
	_, ok := t.header[strings.ToLower(label)]
	return ok
}

func (l *Loader) readTable(doc workbook.Document, sheet string) (table, error) {
	rows, err := doc.Rows(sheet)
	if err != nil {
		return table{}, err
	}
	t := table{header: make(map[string]int)}
	if len(rows) == 0 {
		return t, nil
	}
	for i, v := range rows[0] {
		if label := strings.ToLower(workbook.Text(v)); label != "" {
			if _, dup := t.header[label]; !dup {
				t.header[label] = i
			}
		}
	}
	t.rows = rows[1:]
	return t, nil
}

func first(row []workbook.Value) workbook.Value {
	if len(row) == 0 {
		return nil
	}
	return row[0]
}

func at(row []workbook.Value, i int) workbook.Value {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func (l *Loader) therapists(ctx context.Context, doc workbook.Document) ([]model.Therapist, error) {
	t, err := l.readTable(doc, SheetTherapists)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SheetTherapists, err)
	}
	var out []model.Therapist
	for i, row := range t.rows {
		name := workbook.Text(first(row))
		if name == "" {
			continue
		}
		team := workbook.Text(t.get(row, "Team"))
		if team == "" {
			l.log.Warn(ctx, "therapist without team ignored",
				logger.String("name", name), logger.Int("row", i+2))
			continue
		}
		th := model.Therapist{
			Name:         name,
			Team:         model.TeamID(team),
			Competency:   model.ParseCompetency(workbook.Text(t.get(row, "Competency"))),
			IsActive:     parseBool(t.get(row, "IsActive"), true),
			IsTeamLeader: parseBool(t.get(row, "IsTeamLeader"), false),
			FilePath:     workbook.Text(t.get(row, "FilePath")),
			FTE:          decimal.NewFromInt(1),
		}
		if th.Competency == "" {
			th.Competency = model.CompetencyCA
		}
		if f := workbook.Number(t.get(row, "FTE")); f != nil {
			th.FTE = decimal.NewFromFloat(*f)
		}
		out = append(out, th)
	}
	return out, nil
}

func (l *Loader) teams(ctx context.Context, doc workbook.Document) []model.Team {
	if !doc.HasSheet(SheetTeams) {
		l.log.Warn(ctx, "optional sheet missing", logger.String("sheet", SheetTeams))
		return nil
	}
	t, err := l.readTable(doc, SheetTeams)
	if err != nil {
		l.log.Warn(ctx, "read teams failed", logger.Error(err))
		return nil
	}
	labels := make(map[int]string, len(t.header))
	for label, i := range t.header {
		labels[i] = label
	}
	var out []model.Team
	for _, row := range t.rows {
		id := workbook.Text(first(row))
		if id == "" {
			continue
		}
		team := model.Team{ID: model.TeamID(id), Extras: make(map[string]string)}
		team.Name = workbook.Text(t.get(row, "TeamName"))
		if team.Name == "" {
			team.Name = workbook.Text(t.get(row, "Name"))
		}
		for i := 1; i < len(row); i++ {
			if label, ok := labels[i]; ok {
				team.Extras[label] = workbook.Text(row[i])
			}
		}
		out = append(out, team)
	}
	return out
}

// thresholds parses one Config_Thresholds_* sheet. Ceased and rating blocks
// missing from the sheet are inherited from fallback, then the defaults.
func (l *Loader) thresholds(ctx context.Context, doc workbook.Document, sheet string, fallback *model.ThresholdSet) model.ThresholdSet {
	set := model.NewThresholdSet()
	if fallback != nil {
		set.Ceased = fallback.Ceased
		set.Rating = fallback.Rating
	}
	if !doc.HasSheet(sheet) {
		l.log.Warn(ctx, "threshold sheet missing, using defaults", logger.String("sheet", sheet))
		return set
	}
	rows, err := doc.Rows(sheet)
	if err != nil {
		l.log.Warn(ctx, "read thresholds failed", logger.String("sheet", sheet), logger.Error(err))
		return set
	}

	for r := billingFirstRow; r <= billingLastRow && r <= len(rows); r++ {
		row := rows[r-1]
		label := model.ParseCompetency(workbook.Text(first(row)))
		switch label {
		case model.CompetencyGrad, model.CompetencyCA, model.CompetencySenior, model.CompetencyTeamAverage:
		default:
			continue
		}
		b, ok := billing(at(row, 1), at(row, 2), at(row, 3), at(row, 4))
		if !ok {
			l.log.Warn(ctx, "incomplete billing thresholds ignored",
				logger.String("sheet", sheet), logger.String("competency", string(label)))
			continue
		}
		set.Billing[label] = b
	}

	ceasedFound := false
	for r := ceasedFirstRow; r <= ceasedLastRow && r <= len(rows); r++ {
		row := rows[r-1]
		if !strings.Contains(workbook.Text(first(row)), ceasedLabel) {
			continue
		}
		vals, ok := numbers(at(row, 1), at(row, 2), at(row, 3), at(row, 4))
		if !ok {
			break
		}
		set.Ceased = model.CeasedThresholds{BlueBelow: vals[0], GreenMin: vals[1], GreenMax: vals[2], RedAbove: vals[3]}
		ceasedFound = true
		break
	}
	if !ceasedFound && fallback == nil {
		l.log.Warn(ctx, "no ceased thresholds, using defaults", logger.String("sheet", sheet))
	}

	scale := make(model.RatingScale)
	for r := ratingFirstRow; r <= ratingLastRow && r <= len(rows); r++ {
		row := rows[r-1]
		n := workbook.Number(first(row))
		if n == nil || *n < 1 || *n > 5 || *n != float64(int(*n)) {
			continue
		}
		vals, ok := numbers(at(row, 1), at(row, 2))
		if !ok {
			continue
		}
		rating := int(*n)
		scale[rating] = model.RatingBand{Rating: rating, Min: vals[0], Max: vals[1], Label: workbook.Text(at(row, 3))}
	}
	if len(scale) > 0 {
		set.Rating = scale
	} else if fallback == nil {
		l.log.Warn(ctx, "no rating thresholds, using defaults", logger.String("sheet", sheet))
	}
	return set
}

func (l *Loader) colours(ctx context.Context, doc workbook.Document) model.Palette {
	palette := model.DefaultPalette()
	if !doc.HasSheet(SheetColours) {
		l.log.Warn(ctx, "optional sheet missing", logger.String("sheet", SheetColours))
		return palette
	}
	rows, err := doc.Rows(SheetColours)
	if err != nil {
		l.log.Warn(ctx, "read colours failed", logger.Error(err))
		return palette
	}
	overrides := make(map[string]string)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		name, hex := workbook.Text(first(row)), workbook.Text(at(row, 1))
		if name == "" || hex == "" {
			continue
		}
		overrides[name] = hex
	}
	return palette.Merge(overrides)
}

func (l *Loader) competencyHistory(ctx context.Context, doc workbook.Document) []model.CompetencyChange {
	if !doc.HasSheet(SheetCompetencyHistory) {
		return nil
	}
	t, err := l.readTable(doc, SheetCompetencyHistory)
	if err != nil {
		l.log.Warn(ctx, "read competency history failed", logger.Error(err))
		return nil
	}
	var out []model.CompetencyChange
	for _, row := range t.rows {
		name := workbook.Text(first(row))
		if name == "" {
			continue
		}
		eff, ok := parseDate(t.get(row, "EffectiveDate"))
		if !ok {
			l.log.Warn(ctx, "competency change without a usable date ignored", logger.String("name", name))
			continue
		}
		out = append(out, model.CompetencyChange{
			Name:       name,
			Effective:  eff,
			Competency: model.ParseCompetency(workbook.Text(t.get(row, "Competency"))),
		})
	}
	return out
}

func (l *Loader) teamAverageHistory(ctx context.Context, doc workbook.Document) []model.TeamAverageChange {
	if !doc.HasSheet(SheetTeamAverageHistory) {
		return nil
	}
	t, err := l.readTable(doc, SheetTeamAverageHistory)
	if err != nil {
		l.log.Warn(ctx, "read team average history failed", logger.Error(err))
		return nil
	}
	if !t.has("Billings_Green_Min") || !t.has("Billings_Blue_Above") {
		l.log.Warn(ctx, "team average history has no billing columns", logger.String("sheet", SheetTeamAverageHistory))
		return nil
	}
	var out []model.TeamAverageChange
	for _, row := range t.rows {
		team := workbook.Text(first(row))
		if team == "" {
			continue
		}
		eff, ok := parseDate(t.get(row, "EffectiveDate"))
		if !ok {
			l.log.Warn(ctx, "team average change without a usable date ignored", logger.String("team", team))
			continue
		}
		b, ok := billing(t.get(row, "Billings_Red_Below"), t.get(row, "Billings_Green_Min"),
			t.get(row, "Billings_Green_Max"), t.get(row, "Billings_Blue_Above"))
		if !ok {
			l.log.Warn(ctx, "team average change with missing thresholds ignored", logger.String("team", team))
			continue
		}
		out = append(out, model.TeamAverageChange{Team: model.TeamID(team), Effective: eff, Thresholds: b})
	}
	return out
}

// billing builds a bundle. green_min and blue_above are required; the other
// two default to their neighbours.
func billing(redBelow, greenMin, greenMax, blueAbove workbook.Value) (model.BillingThresholds, bool) {
	gm, ba := workbook.Number(greenMin), workbook.Number(blueAbove)
	if gm == nil || ba == nil {
		return model.BillingThresholds{}, false
	}
	b := model.BillingThresholds{
		RedBelow:  decimal.NewFromFloat(*gm),
		GreenMin:  decimal.NewFromFloat(*gm),
		GreenMax:  decimal.NewFromFloat(*ba),
		BlueAbove: decimal.NewFromFloat(*ba),
	}
	if v := workbook.Number(redBelow); v != nil {
		b.RedBelow = decimal.NewFromFloat(*v)
	}
	if v := workbook.Number(greenMax); v != nil {
		b.GreenMax = decimal.NewFromFloat(*v)
	}
	return b, true
}

func numbers(vals ...workbook.Value) ([]decimal.Decimal, bool) {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		f := workbook.Number(v)
		if f == nil {
			return nil, false
		}
		out[i] = decimal.NewFromFloat(*f)
	}
	return out, true
}

func parseBool(v workbook.Value, def bool) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	}
	switch strings.ToLower(workbook.Text(v)) {
	case "true", "yes", "y", "1":
		return true
	case "false", "no", "n", "0":
		return false
	}
	return def
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00", "02/01/2006"}

// parseDate accepts Excel serial dates and ISO text.
func parseDate(v workbook.Value) (time.Time, bool) {
	if f, ok := v.(float64); ok {
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	s := workbook.Text(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
