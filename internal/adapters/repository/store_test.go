package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/kpisync/internal/adapters/repository"
	"github.com/okian/kpisync/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func run(id string, at time.Time, status string) model.RunRecord {
	return model.RunRecord{
		ID:         id,
		Trigger:    model.TriggerTimer,
		Year:       2026,
		StartedAt:  at,
		FinishedAt: at.Add(3 * time.Second),
		Result: model.Result{
			Status:     status,
			Individual: model.Tally{Success: 2, Skipped: 1},
			TeamLeader: model.TeamLeaderStats{Synced: 10, Formatted: 14},
			PendingChanges: []model.PendingChange{
				{Sheet: "KPI Dashboard OT", Team: model.TeamOT, Action: model.ActionAdd, RowCount: 1},
			},
		},
	}
}

func stores(t *testing.T) map[string]func() repository.Store {
	return map[string]func() repository.Store{
		"memory": func() repository.Store { return repository.NewMemoryStore() },
		"sqlite": func() repository.Store {
			s, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
			So(err, ShouldBeNil)
			return s
		},
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for name, open := range stores(t) {
		Convey("Given an empty "+name+" store", t, func() {
			s := open()
			Reset(func() { _ = s.Close() })

			Convey("LastRun reports not found", func() {
				_, err := s.LastRun(ctx)
				So(err, ShouldEqual, repository.ErrNotFound)
			})

			Convey("Runs rejects a non-positive limit", func() {
				_, err := s.Runs(ctx, 0)
				So(err, ShouldEqual, repository.ErrInvalidLimit)
			})

			Convey("SaveRun requires an id", func() {
				So(s.SaveRun(ctx, model.RunRecord{}), ShouldEqual, repository.ErrInvalidRun)
			})

			Convey("When runs are saved out of order", func() {
				So(s.SaveRun(ctx, run("b", base.Add(time.Hour), model.StatusSuccess)), ShouldBeNil)
				So(s.SaveRun(ctx, run("a", base, model.StatusSuccess)), ShouldBeNil)
				So(s.SaveRun(ctx, run("c", base.Add(90*time.Minute+500*time.Millisecond), model.StatusError)), ShouldBeNil)

				Convey("Runs lists newest first up to the limit", func() {
					runs, err := s.Runs(ctx, 2)
					So(err, ShouldBeNil)
					So(len(runs), ShouldEqual, 2)
					So(runs[0].ID, ShouldEqual, "c")
					So(runs[1].ID, ShouldEqual, "b")
				})

				Convey("LastRun returns the newest with its result", func() {
					last, err := s.LastRun(ctx)
					So(err, ShouldBeNil)
					So(last.ID, ShouldEqual, "c")
					So(last.Trigger, ShouldEqual, model.TriggerTimer)
					So(last.Year, ShouldEqual, 2026)
					So(last.Result.Status, ShouldEqual, model.StatusError)
					So(last.Result.TeamLeader.Formatted, ShouldEqual, 14)
					So(last.Result.PendingChanges, ShouldResemble, run("x", base, "").Result.PendingChanges)
					So(last.Duration(), ShouldEqual, 3*time.Second)
					So(last.StartedAt.Format(time.RFC3339Nano), ShouldEqual, base.Add(90*time.Minute+500*time.Millisecond).Format(time.RFC3339Nano))
				})

				Convey("Saving an existing id replaces it", func() {
					r := run("a", base, model.StatusError)
					r.Result.Error = "boom"
					So(s.SaveRun(ctx, r), ShouldBeNil)
					runs, err := s.Runs(ctx, 10)
					So(err, ShouldBeNil)
					So(len(runs), ShouldEqual, 3)
					So(runs[2].Result.Error, ShouldEqual, "boom")
				})
			})

			Convey("Notifications are keyed by channel, change set and day", func() {
				n := repository.Notification{Channel: "email", Fingerprint: "f1", Day: "2026-03-02", Changes: 2, SentAt: base}
				So(s.SaveNotification(ctx, n), ShouldBeNil)

				sent, err := s.NotificationSent(ctx, "email", "f1", "2026-03-02")
				So(err, ShouldBeNil)
				So(sent, ShouldBeTrue)

				for _, probe := range [][3]string{
					{"slack", "f1", "2026-03-02"},
					{"email", "f2", "2026-03-02"},
					{"email", "f1", "2026-03-05"},
				} {
					sent, err := s.NotificationSent(ctx, probe[0], probe[1], probe[2])
					So(err, ShouldBeNil)
					So(sent, ShouldBeFalse)
				}
			})
		})
	}
}

func TestMemoryStoreBound(t *testing.T) {
	Convey("Given a memory store holding two runs", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(repository.WithMaxRuns(2))
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, id := range []string{"r1", "r2", "r3"} {
			So(s.SaveRun(ctx, run(id, base.Add(time.Duration(i)*time.Minute), model.StatusSuccess)), ShouldBeNil)
		}

		Convey("The oldest run is dropped", func() {
			runs, err := s.Runs(ctx, 10)
			So(err, ShouldBeNil)
			So(len(runs), ShouldEqual, 2)
			So(runs[0].ID, ShouldEqual, "r3")
			So(runs[1].ID, ShouldEqual, "r2")
		})
	})
}
