package layout_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/kpisync/internal/domain/banding"
	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultLayout(t *testing.T) {
	Convey("Given the embedded layout", t, func() {
		l, err := layout.Default()
		So(err, ShouldBeNil)

		Convey("Then each team owns one dashboard sheet", func() {
			So(l.Teams(), ShouldResemble, []model.TeamID{model.TeamPhysioNorth, model.TeamPhysioSouth, model.TeamOT})
			s, ok := l.TeamSheet("ot")
			So(ok, ShouldBeTrue)
			So(s.Name, ShouldEqual, "KPI Dashboard OT")
		})

		Convey("Then reconciled tables exclude the average table", func() {
			s, _ := l.TeamSheet(model.TeamPhysioNorth)
			tables := s.KPITables()
			So(tables, ShouldHaveLength, 5)
			So(tables[0].Name, ShouldEqual, "Billings_North")
			So(tables[0].BandKind(), ShouldEqual, banding.KindBilling)
			So(tables[1].BandKind(), ShouldEqual, banding.KindCeased)
		})

		Convey("Then mixed sheets bind each table to a team", func() {
			mmp := l.TeamLeader.Sheets[3]
			So(mmp.Team, ShouldEqual, model.TeamID(""))
			So(mmp.TeamFor(mmp.Tables[2]), ShouldEqual, model.TeamOT)
		})

		Convey("Then average rows carry explicit kinds", func() {
			avg := l.TeamLeader.Sheets[0].Tables[5]
			So(avg.IsAverage(), ShouldBeTrue)
			So(avg.RowKind(" billingskpi "), ShouldEqual, banding.KindBilling)
			So(avg.RowKind("Ceased Services"), ShouldEqual, banding.KindCeased)
			So(avg.RowKind("Billing notes"), ShouldEqual, banding.KindRating)
		})

		Convey("Then the individual layout matches the v2 template", func() {
			ind := l.Individual
			So(ind.FirstMonthCol, ShouldEqual, 3)
			So(ind.AverageCol, ShouldEqual, 15)
			So(ind.KPIRows(model.TeamTypeOT)[1].KPI, ShouldEqual, "Compliance")
			So(ind.BillingThresholdRow[model.CompetencySenior], ShouldEqual, 14)
			So(ind.IsDashboard("Chris Dashboard"), ShouldBeTrue)
			So(ind.IsDashboard("KPI Dashboard"), ShouldBeFalse)
			So(l.FTE.Table, ShouldEqual, "FTETable")
		})
	})
}

func TestLoadOverride(t *testing.T) {
	Convey("Given a layout file", t, func() {
		dir := t.TempDir()

		Convey("When it is empty of sheets", func() {
			path := filepath.Join(dir, "bad.yaml")
			So(os.WriteFile(path, []byte("team_leader: {sheets: []}\n"), 0o600), ShouldBeNil)
			_, err := layout.Load(path)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, layout.ErrInvalidLayout), ShouldBeTrue)
			})
		})

		Convey("When a table has an unknown kind", func() {
			_, err := layout.Parse([]byte(`
team_leader:
  sheets:
    - name: S
      team: OT
      tables: [{name: T, kind: sparkle}]
individual: {first_month_col: 3, average_col: 15}
`))

			Convey("Then it is rejected", func() {
				So(errors.Is(err, layout.ErrInvalidLayout), ShouldBeTrue)
			})
		})

		Convey("When the path is empty", func() {
			l, err := layout.Load("")

			Convey("Then the default is used", func() {
				So(err, ShouldBeNil)
				So(l.TeamLeader.Sheets, ShouldHaveLength, 4)
			})
		})

		Convey("When the file is missing", func() {
			_, err := layout.Load(filepath.Join(dir, "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
