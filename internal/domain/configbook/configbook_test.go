package configbook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/kpisync/internal/adapters/xlsx"
	"github.com/okian/kpisync/internal/domain/configbook"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/workbook"
	. "github.com/smartystreets/goconvey/convey"
)

func put(doc *xlsx.Document, sheet string, rows ...[]workbook.Value) {
	So(doc.EnsureSheet(sheet), ShouldBeNil)
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			So(doc.SetCell(sheet, r+1, c+1, v), ShouldBeNil)
		}
	}
}

func configWorkbook() *xlsx.Document {
	doc := xlsx.New()
	put(doc, configbook.SheetTherapists,
		[]workbook.Value{"Name", "Team", "Competency", "IsActive", "IsTeamLeader", "FilePath", "FTE"},
		[]workbook.Value{" Chris ", "Physio_North", "grad", "TRUE", false, "/KPI/Chris.xlsx", 0.8},
		[]workbook.Value{"Amy", "OT", "Senior", "no", 1.0, nil, nil},
		[]workbook.Value{"Ghost", nil, "CA"},
		[]workbook.Value{nil, "OT"},
	)
	put(doc, configbook.SheetTeams,
		[]workbook.Value{"TeamId", "TeamName", "Manager"},
		[]workbook.Value{"OT", "Occupational Therapy", "Sam"},
	)
	threshold := make([][]workbook.Value, 17)
	threshold[0] = []workbook.Value{"Competency", "Red_Below", "Green_Min", "Green_Max", "Blue_Above"}
	threshold[1] = []workbook.Value{"Grad", 3.0, 3.5, 5.0, 5.0}
	threshold[2] = []workbook.Value{"CA", 3.5, 4.0, 6.0, 6.0}
	threshold[3] = []workbook.Value{"Senior", nil, 4.5, nil, 6.5}
	threshold[4] = []workbook.Value{"Team Average", 3.5, 4.2, 6.0, 6.0}
	threshold[7] = []workbook.Value{"Ceased %", 0.02, 0.02, 0.05, 0.05}
	threshold[12] = []workbook.Value{1.0, 0.0, 1.4, "Poor"}
	threshold[13] = []workbook.Value{2.0, 1.4, 2.4, "Fair"}
	threshold[14] = []workbook.Value{"x", 1.0, 2.0}
	for i := range threshold {
		if threshold[i] == nil {
			threshold[i] = []workbook.Value{}
		}
	}
	put(doc, configbook.SheetThresholdsPhysio, threshold...)
	put(doc, configbook.SheetColours,
		[]workbook.Value{"Name", "Hex"},
		[]workbook.Value{"Red", "#ff0000"},
	)
	put(doc, configbook.SheetCompetencyHistory,
		[]workbook.Value{"Name", "EffectiveDate", "Competency"},
		[]workbook.Value{"Chris", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), "Grad"},
		[]workbook.Value{"Chris", "2026-07-01", "ca"},
		[]workbook.Value{"Chris", "someday", "Senior"},
	)
	put(doc, configbook.SheetTeamAverageHistory,
		[]workbook.Value{"Team", "EffectiveDate", "Billings_Red_Below", "Billings_Green_Min", "Billings_Green_Max", "Billings_Blue_Above"},
		[]workbook.Value{"OT", "2026-03-01", 3.0, 4.0, 6.0, 6.0},
		[]workbook.Value{"OT", "2026-06-01", 3.0, nil, 6.0, 6.0},
	)
	return doc
}

func TestLoad(t *testing.T) {
	Convey("Given a complete config workbook", t, func() {
		doc := configWorkbook()
		defer doc.Close()
		cfg, err := configbook.Load(context.Background(), doc)
		So(err, ShouldBeNil)

		Convey("Then therapists are normalised and invalid rows dropped", func() {
			So(cfg.Therapists, ShouldHaveLength, 2)
			chris := cfg.Therapists[0]
			So(chris.Name, ShouldEqual, "Chris")
			So(chris.Competency, ShouldEqual, model.CompetencyGrad)
			So(chris.IsActive, ShouldBeTrue)
			So(chris.IsTeamLeader, ShouldBeFalse)
			So(chris.FTE.String(), ShouldEqual, "0.8")

			amy := cfg.Therapists[1]
			So(amy.IsActive, ShouldBeFalse)
			So(amy.IsTeamLeader, ShouldBeTrue)
			So(amy.FTE.String(), ShouldEqual, "1")
		})

		Convey("Then teams keep their extra columns", func() {
			So(cfg.Teams, ShouldHaveLength, 1)
			So(cfg.Teams[0].Name, ShouldEqual, "Occupational Therapy")
			So(cfg.Teams[0].Extras["manager"], ShouldEqual, "Sam")
		})

		Convey("Then physio thresholds come from the fixed row blocks", func() {
			set := cfg.Thresholds[model.TeamTypePhysio]
			So(set.Billing, ShouldHaveLength, 4)
			So(set.Billing[model.CompetencyCA].GreenMin.String(), ShouldEqual, "4")
			So(set.Billing[model.CompetencySenior].GreenMax.String(), ShouldEqual, "6.5")
			So(set.Ceased.RedAbove.String(), ShouldEqual, "0.05")
			So(set.Rating, ShouldHaveLength, 2)
			So(set.Rating.Min(2).String(), ShouldEqual, "1.4")
			So(set.Rating.Min(5).String(), ShouldEqual, "4.5")
		})

		Convey("Then the OT set inherits ceased and rating blocks", func() {
			set := cfg.Thresholds[model.TeamTypeOT]
			So(set.Billing, ShouldBeEmpty)
			So(set.Ceased.RedAbove.String(), ShouldEqual, "0.05")
			So(set.Rating.Min(2).String(), ShouldEqual, "1.4")
		})

		Convey("Then colours merge over the defaults", func() {
			So(cfg.Palette.Get("red"), ShouldEqual, "FF0000")
			So(cfg.Palette.Get("green"), ShouldEqual, "FF81C784")
		})

		Convey("Then history dates parse from serials and text", func() {
			So(cfg.CompetencyHistory, ShouldHaveLength, 2)
			So(cfg.CompetencyHistory[0].Effective.Format("2006-01-02"), ShouldEqual, "2025-02-01")
			So(cfg.CompetencyHistory[1].Competency, ShouldEqual, model.CompetencyCA)

			So(cfg.TeamAverageHistory, ShouldHaveLength, 1)
			So(cfg.TeamAverageHistory[0].Thresholds.BlueAbove.String(), ShouldEqual, "6")
		})
	})

	Convey("Given a workbook with only a roster", t, func() {
		doc := xlsx.New()
		defer doc.Close()
		put(doc, configbook.SheetTherapists,
			[]workbook.Value{"Name", "Team"},
			[]workbook.Value{"Solo", "OT"},
		)
		cfg, err := configbook.Load(context.Background(), doc)

		Convey("Then every optional part falls back to defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Therapists[0].Competency, ShouldEqual, model.CompetencyCA)
			So(cfg.Therapists[0].IsActive, ShouldBeTrue)
			So(cfg.Thresholds[model.TeamTypePhysio].Ceased, ShouldResemble, model.DefaultCeasedThresholds())
			So(cfg.Palette, ShouldResemble, model.DefaultPalette())
			So(cfg.CompetencyHistory, ShouldBeEmpty)
		})
	})

	Convey("Given a workbook without a roster", t, func() {
		doc := xlsx.New()
		defer doc.Close()
		_, err := configbook.Load(context.Background(), doc)

		Convey("Then loading fails", func() {
			So(errors.Is(err, configbook.ErrMissingTherapists), ShouldBeTrue)
		})
	})
}
