package kpiload_test

import (
	"context"
	"testing"

	"github.com/okian/kpisync/internal/adapters/xlsx"
	"github.com/okian/kpisync/internal/domain/kpiload"
	"github.com/okian/kpisync/internal/domain/layout"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/internal/domain/workbook"
	. "github.com/smartystreets/goconvey/convey"
)

func find(records []model.Record, name string, m model.Month) (model.Record, bool) {
	for _, r := range records {
		if r.Name == name && r.Month == m {
			return r, true
		}
	}
	return model.Record{}, false
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given a north dashboard with billing and admin tables", t, func() {
		l, err := layout.Default()
		So(err, ShouldBeNil)
		doc := xlsx.New()
		defer doc.Close()
		_, err = doc.PutTable("KPI Dashboard North", "Billings_North", 2, 2,
			[]string{"Name", "Jan", "Feb", "Average"},
			[][]workbook.Value{
				{" Chris ", 5.2, nil, 5.2},
				{nil, 1.0, 1.0, 1.0},
				{"Dana", 4.0, 4.5, 4.25},
			})
		So(err, ShouldBeNil)
		_, err = doc.PutTable("KPI Dashboard North", "Admin_North", 2, 8,
			[]string{"Name", "Feb", "Jan"},
			[][]workbook.Value{
				{"Chris", 3.0, 4.0},
			})
		So(err, ShouldBeNil)

		data := kpiload.New(l).Load(ctx, doc)

		Convey("Then names are trimmed and blank rows skipped", func() {
			records := data[model.TeamPhysioNorth]
			So(records, ShouldHaveLength, 24)
			So(records[0].Name, ShouldEqual, "Chris")
			So(records[12].Name, ShouldEqual, "Dana")
		})

		Convey("Then values follow the header positions", func() {
			records := data[model.TeamPhysioNorth]
			jan, ok := find(records, "Chris", model.Jan)
			So(ok, ShouldBeTrue)
			So(*jan.Values["BillingsKPI"], ShouldEqual, 5.2)
			So(*jan.Values["Admin"], ShouldEqual, 4.0)

			feb, _ := find(records, "Chris", model.Feb)
			So(feb.Values["BillingsKPI"], ShouldBeNil)
			So(*feb.Values["Admin"], ShouldEqual, 3.0)
		})

		Convey("Then every sheet KPI is present and the average is excluded", func() {
			dec, _ := find(data[model.TeamPhysioNorth], "Dana", model.Dec)
			So(dec.Values, ShouldHaveLength, 5)
			So(dec.Values, ShouldContainKey, "Attitude")
			So(dec.Values["Attitude"], ShouldBeNil)
			So(dec.Values, ShouldNotContainKey, "Team Average")
		})

		Convey("Then teams without a sheet load empty", func() {
			So(data[model.TeamOT], ShouldNotBeNil)
			So(data[model.TeamOT], ShouldBeEmpty)
			So(data.Count(), ShouldEqual, 24)
		})

		Convey("Then lookups match names loosely", func() {
			So(data.For("physio_north", "chris"), ShouldHaveLength, 12)
			So(data.For(model.TeamOT, "Chris"), ShouldBeEmpty)
		})
	})
}
