package reconcile_test

import (
	"context"
	"testing"

	"github.com/okian/kpisync/internal/adapters/xlsx"
	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/reconcile"
	"github.com/okian/kpisync/internal/domain/workbook"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

const north = "KPI Dashboard North"

func therapist(name string, c model.Competency, leader, active bool) model.Therapist {
	return model.Therapist{
		Name:         name,
		Team:         model.TeamPhysioNorth,
		Competency:   c,
		IsActive:     active,
		IsTeamLeader: leader,
		FTE:          decimal.NewFromInt(1),
	}
}

func config(ts ...model.Therapist) *model.Config {
	cfg := model.NewConfig()
	cfg.Therapists = ts
	return cfg
}

// seed writes two parallel north tables with the given rows. Each row is
// name, Jan, Feb and an average marker.
func seed(rows ...[]workbook.Value) *xlsx.Document {
	doc := xlsx.New()
	header := []string{"Name", "Jan", "Feb", "Average"}
	_, err := doc.PutTable(north, "Billings_North", 2, 2, header, rows)
	So(err, ShouldBeNil)
	_, err = doc.PutTable(north, "Ceased_North", 2, 8, header, rows)
	So(err, ShouldBeNil)
	return doc
}

func column(doc *xlsx.Document, col int, from, to int) []workbook.Value {
	out := make([]workbook.Value, 0, to-from+1)
	for row := from; row <= to; row++ {
		v, err := doc.Cell(north, row, col)
		So(err, ShouldBeNil)
		out = append(out, v)
	}
	return out
}

func style(doc *xlsx.Document, ref string) *excelize.Style {
	id, err := doc.File().GetCellStyle(north, ref)
	So(err, ShouldBeNil)
	st, err := doc.File().GetStyle(id)
	So(err, ShouldBeNil)
	return st
}

// percent gives a cell a 0.0% format and a border.
func percent(doc *xlsx.Document, ref string) {
	pct := "0.0%"
	id, err := doc.File().NewStyle(&excelize.Style{
		CustomNumFmt: &pct,
		Border:       []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	So(err, ShouldBeNil)
	So(doc.File().SetCellStyle(north, ref, ref, id), ShouldBeNil)
}

func snapshot(doc *xlsx.Document) [][]workbook.Value {
	rows, err := doc.Rows(north)
	So(err, ShouldBeNil)
	return rows
}

func defaults() *layout.Layout {
	l, err := layout.Default()
	So(err, ShouldBeNil)
	return l
}

func sheet() layout.Sheet {
	s, ok := defaults().TeamSheet(model.TeamPhysioNorth)
	So(ok, ShouldBeTrue)
	return s
}

func TestSyncTeam(t *testing.T) {
	ctx := context.Background()

	Convey("Given a table with the same number of rows as the roster", t, func() {
		doc := seed(
			[]workbook.Value{"Chris", 1.0, 2.0, "avg1"},
			[]workbook.Value{"Amy", 3.0, 4.0, "avg2"},
			[]workbook.Value{"PLACEHOLDER 1", nil, nil, "avg3"},
		)
		defer doc.Close()
		cfg := config(
			therapist("Chris", model.CompetencyGrad, false, true),
			therapist("Bob", model.CompetencyCA, false, false),
			therapist("Amy", model.CompetencySenior, true, true),
		)
		r := reconcile.New(defaults())
		stats, err := r.SyncTeam(ctx, doc, sheet(), cfg)
		So(err, ShouldBeNil)

		Convey("Then rows follow roster order and keep their values", func() {
			So(column(doc, 2, 3, 5), ShouldResemble, []workbook.Value{"Amy", "Bob", "Chris"})
			So(column(doc, 3, 3, 5), ShouldResemble, []workbook.Value{3.0, nil, 1.0})
			So(column(doc, 4, 3, 5), ShouldResemble, []workbook.Value{4.0, nil, 2.0})
			So(column(doc, 8, 3, 5), ShouldResemble, []workbook.Value{"Amy", "Bob", "Chris"})
		})

		Convey("Then the average column is never written", func() {
			So(column(doc, 5, 3, 5), ShouldResemble, []workbook.Value{"avg1", "avg2", "avg3"})
		})

		Convey("Then stats count new names and removed placeholders", func() {
			So(stats.Tables, ShouldEqual, 2)
			So(stats.Added, ShouldEqual, 2)
			So(stats.Removed, ShouldEqual, 2)
			So(stats.Pending, ShouldBeNil)
			So(stats.Skipped, ShouldBeFalse)
		})

		Convey("Then inactive therapists are greyed out", func() {
			active := style(doc, "C3")
			So(active.Fill.Pattern, ShouldEqual, 0)
			inactive := style(doc, "C4")
			So(inactive.Fill.Pattern, ShouldEqual, 1)
			So(inactive.Fill.Color, ShouldHaveLength, 1)
			So(inactive.Fill.Color[0], ShouldEndWith, "C0C0C0")
			So(inactive.Font, ShouldNotBeNil)
			So(inactive.Font.Color, ShouldEndWith, "808080")
		})

		Convey("When the sync runs again", func() {
			before := snapshot(doc)
			again, err := r.SyncTeam(ctx, doc, sheet(), cfg)
			So(err, ShouldBeNil)

			Convey("Then nothing changes and nothing is pending", func() {
				So(snapshot(doc), ShouldResemble, before)
				So(again.Pending, ShouldBeNil)
				So(again.Added, ShouldEqual, 0)
				So(again.Removed, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a roster larger than the table", t, func() {
		doc := seed(
			[]workbook.Value{"A", 1.0, 1.0, "x"},
			[]workbook.Value{"B", 2.0, 2.0, "x"},
			[]workbook.Value{"C", 3.0, 3.0, "x"},
			[]workbook.Value{"D", 4.0, 4.0, "x"},
			[]workbook.Value{"E", 5.0, 5.0, "x"},
		)
		defer doc.Close()
		before := snapshot(doc)
		cfg := config(
			therapist("A", model.CompetencyCA, false, true),
			therapist("B", model.CompetencyCA, false, true),
			therapist("C", model.CompetencyCA, false, true),
			therapist("D", model.CompetencyCA, false, true),
			therapist("E", model.CompetencyCA, false, true),
			therapist("F", model.CompetencyCA, false, true),
		)
		stats, err := reconcile.New(defaults()).SyncTeam(ctx, doc, sheet(), cfg)
		So(err, ShouldBeNil)

		Convey("Then an add is requested and no cell changes", func() {
			So(stats.Skipped, ShouldBeTrue)
			So(stats.Pending, ShouldResemble, &model.PendingChange{
				Sheet: north, Team: model.TeamPhysioNorth, Action: model.ActionAdd, RowCount: 1,
			})
			So(snapshot(doc), ShouldResemble, before)
		})
	})

	Convey("Given a roster smaller than the table", t, func() {
		doc := seed(
			[]workbook.Value{"A", 1.0, 1.0, "x1"},
			[]workbook.Value{"B", 2.0, 2.0, "x2"},
			[]workbook.Value{"C", 3.0, 3.0, "x3"},
			[]workbook.Value{"D", 4.0, 4.0, "x4"},
			[]workbook.Value{"E", 5.0, 5.0, "x5"},
			[]workbook.Value{"F", 6.0, 6.0, "x6"},
		)
		defer doc.Close()
		cfg := config(
			therapist("A", model.CompetencyCA, false, true),
			therapist("C", model.CompetencyCA, false, true),
			therapist("D", model.CompetencyCA, false, true),
			therapist("F", model.CompetencyCA, false, true),
		)
		stats, err := reconcile.New(defaults()).SyncTeam(ctx, doc, sheet(), cfg)
		So(err, ShouldBeNil)

		Convey("Then excess rows are blanked except the average column", func() {
			So(column(doc, 2, 3, 8), ShouldResemble, []workbook.Value{"A", "C", "D", "F", nil, nil})
			So(column(doc, 3, 3, 8), ShouldResemble, []workbook.Value{1.0, 3.0, 4.0, 6.0, nil, nil})
			So(column(doc, 5, 7, 8), ShouldResemble, []workbook.Value{"x5", "x6"})
		})

		Convey("Then the declared range is unchanged", func() {
			tbl, err := doc.Table(north, "Billings_North")
			So(err, ShouldBeNil)
			So(tbl.Range, ShouldResemble, workbook.Range{FromRow: 2, FromCol: 2, ToRow: 8, ToCol: 5})
		})

		Convey("Then a delete of the excess rows is requested", func() {
			So(stats.Removed, ShouldEqual, 4)
			So(stats.Pending, ShouldResemble, &model.PendingChange{
				Sheet: north, Team: model.TeamPhysioNorth, Action: model.ActionDelete, RowCount: 2,
			})
		})
	})

	Convey("Given table cells holding formulas and number formats", t, func() {
		doc := seed(
			[]workbook.Value{"Amy", 0.02, 3.0, "avg1"},
			[]workbook.Value{"Chris", nil, 4.0, "avg2"},
		)
		defer doc.Close()
		So(doc.SetFormula(north, 4, 3, "=1+1"), ShouldBeNil)
		percent(doc, "C3")
		r := reconcile.New(defaults())

		Convey("When the roster is unchanged", func() {
			cfg := config(
				therapist("Amy", model.CompetencyCA, false, true),
				therapist("Chris", model.CompetencyCA, false, true),
			)
			_, err := r.SyncTeam(ctx, doc, sheet(), cfg)
			So(err, ShouldBeNil)

			Convey("Then the formula is still in place", func() {
				f, err := doc.Formula(north, 4, 3)
				So(err, ShouldBeNil)
				So(f, ShouldEqual, "1+1")
			})

			Convey("Then the number format and border survive", func() {
				st := style(doc, "C3")
				So(st.CustomNumFmt, ShouldNotBeNil)
				So(*st.CustomNumFmt, ShouldEqual, "0.0%")
				So(st.Border, ShouldNotBeEmpty)
			})
		})

		Convey("When the roster order moves Chris first", func() {
			cfg := config(
				therapist("Chris", model.CompetencyCA, true, true),
				therapist("Amy", model.CompetencyCA, false, true),
			)
			_, err := r.SyncTeam(ctx, doc, sheet(), cfg)
			So(err, ShouldBeNil)

			Convey("Then the formula moves with its row", func() {
				So(column(doc, 2, 3, 4), ShouldResemble, []workbook.Value{"Chris", "Amy"})
				moved, err := doc.Formula(north, 3, 3)
				So(err, ShouldBeNil)
				So(moved, ShouldEqual, "1+1")
				left, err := doc.Formula(north, 4, 3)
				So(err, ShouldBeNil)
				So(left, ShouldBeEmpty)
				v, err := doc.Cell(north, 4, 3)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 0.02)
			})

			Convey("Then the cell keeps its number format", func() {
				st := style(doc, "C3")
				So(st.CustomNumFmt, ShouldNotBeNil)
				So(*st.CustomNumFmt, ShouldEqual, "0.0%")
			})
		})

		Convey("When Amy is inactive and grey is overridden", func() {
			cfg := config(
				therapist("Amy", model.CompetencyCA, false, false),
				therapist("Chris", model.CompetencyCA, false, true),
			)
			cfg.Palette = cfg.Palette.Merge(map[string]string{"grey": "#112233"})
			_, err := r.SyncTeam(ctx, doc, sheet(), cfg)
			So(err, ShouldBeNil)

			Convey("Then the row is painted with the configured grey and keeps its format", func() {
				st := style(doc, "C3")
				So(st.Fill.Color, ShouldHaveLength, 1)
				So(st.Fill.Color[0], ShouldEndWith, "112233")
				So(st.CustomNumFmt, ShouldNotBeNil)
				So(*st.CustomNumFmt, ShouldEqual, "0.0%")
			})
		})
	})

	Convey("Given a sheet without its first table", t, func() {
		doc := xlsx.New()
		defer doc.Close()
		So(doc.EnsureSheet(north), ShouldBeNil)
		stats, err := reconcile.New(defaults()).SyncTeam(ctx, doc, sheet(),
			config(therapist("A", model.CompetencyCA, false, true)))

		Convey("Then the team is skipped without error", func() {
			So(err, ShouldBeNil)
			So(stats.Skipped, ShouldBeTrue)
			So(stats.Tables, ShouldEqual, 0)
		})
	})

	Convey("Given a team with no therapists", t, func() {
		doc := seed([]workbook.Value{"A", 1.0, 1.0, "x"})
		defer doc.Close()
		stats, err := reconcile.New(defaults()).SyncTeam(ctx, doc, sheet(), config())

		Convey("Then nothing happens", func() {
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, reconcile.TeamStats{Team: model.TeamPhysioNorth})
		})
	})
}

func TestSyncFTE(t *testing.T) {
	ctx := context.Background()

	Convey("Given an FTE table with two rows and formula columns", t, func() {
		doc := xlsx.New()
		defer doc.Close()
		_, err := doc.PutTable("FTE", "FTETable", 1, 1,
			[]string{"Therapist", "FTE", "Team", "Hours"},
			[][]workbook.Value{
				{"Old", 0.5, "OT", "h1"},
				{"Older", 0.5, "OT", "h2"},
			})
		So(err, ShouldBeNil)
		So(doc.SetFormula("FTE", 2, 4, "=B2*38"), ShouldBeNil)

		ot := therapist("Olive", model.CompetencyCA, false, true)
		ot.Team = model.TeamOT
		south := therapist("Sam", model.CompetencyGrad, false, true)
		south.Team = model.TeamPhysioSouth
		south.FTE = decimal.RequireFromString("0.6")
		lead := therapist("Zed", model.CompetencySenior, true, true)
		gone := therapist("Gone", model.CompetencyCA, false, false)
		r := reconcile.New(defaults())

		Convey("When the roster grows", func() {
			stats, err := r.SyncFTE(ctx, doc, config(ot, south, gone, lead))
			So(err, ShouldBeNil)

			Convey("Then active therapists are written in team order", func() {
				So(stats.Rows, ShouldEqual, 3)
				So(stats.Added, ShouldEqual, 1)
				names := make([]workbook.Value, 0, 3)
				for row := 2; row <= 4; row++ {
					v, _ := doc.Cell("FTE", row, 1)
					names = append(names, v)
				}
				So(names, ShouldResemble, []workbook.Value{"Zed", "Sam", "Olive"})
				fte, _ := doc.Cell("FTE", 3, 2)
				So(fte, ShouldEqual, 0.6)
				team, _ := doc.Cell("FTE", 4, 3)
				So(team, ShouldEqual, "OT")
			})

			Convey("Then formula columns are untouched and the table grows", func() {
				f, err := doc.Formula("FTE", 2, 4)
				So(err, ShouldBeNil)
				So(f, ShouldEqual, "B2*38")
				h, _ := doc.Cell("FTE", 3, 4)
				So(h, ShouldEqual, "h2")
				tbl, err := doc.Table("FTE", "FTETable")
				So(err, ShouldBeNil)
				So(tbl.Range, ShouldResemble, workbook.Range{FromRow: 1, FromCol: 1, ToRow: 4, ToCol: 4})
			})
		})

		Convey("When the roster shrinks", func() {
			stats, err := r.SyncFTE(ctx, doc, config(lead))
			So(err, ShouldBeNil)

			Convey("Then excess program columns are cleared and the table shrinks", func() {
				So(stats.Removed, ShouldEqual, 1)
				name, _ := doc.Cell("FTE", 3, 1)
				So(name, ShouldBeNil)
				h, _ := doc.Cell("FTE", 3, 4)
				So(h, ShouldEqual, "h2")
				tbl, err := doc.Table("FTE", "FTETable")
				So(err, ShouldBeNil)
				So(tbl.Range.ToRow, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a workbook without an FTE sheet", t, func() {
		doc := xlsx.New()
		defer doc.Close()
		stats, err := reconcile.New(defaults()).SyncFTE(ctx, doc, config())

		Convey("Then the sync is skipped", func() {
			So(err, ShouldBeNil)
			So(stats.Skipped, ShouldBeTrue)
		})
	})
}

func TestSyncAll(t *testing.T) {
	Convey("Given a workbook with one shrinking team", t, func() {
		doc := seed(
			[]workbook.Value{"A", 1.0, 1.0, "x"},
			[]workbook.Value{"B", 2.0, 2.0, "x"},
		)
		defer doc.Close()
		sum := reconcile.New(defaults()).SyncAll(context.Background(), doc,
			config(therapist("A", model.CompetencyCA, false, true)))

		Convey("Then only present sheets are counted and pending changes collected", func() {
			So(sum.Teams, ShouldEqual, 1)
			So(sum.Tables, ShouldEqual, 2)
			So(sum.Pending, ShouldHaveLength, 1)
			So(sum.Pending[0].Action, ShouldEqual, model.ActionDelete)
			So(sum.FTE.Skipped, ShouldBeTrue)
		})
	})

	Convey("Placeholders are recognised in any case", t, func() {
		So(reconcile.IsPlaceholder("placeholder 3"), ShouldBeTrue)
		So(reconcile.IsPlaceholder("Chris"), ShouldBeFalse)
	})
}
