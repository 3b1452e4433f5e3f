package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"rollcall/internal/attendance"
	"rollcall/internal/metrics"
	"rollcall/internal/schedule"
)

type recordedSweep struct {
	day, ref time.Time
}

type recordingSweeper struct {
	calls []recordedSweep
}

func (r *recordingSweeper) SweepDay(_ context.Context, day, ref time.Time) (attendance.SweepResult, error) {
	r.calls = append(r.calls, recordedSweep{day: day, ref: ref})
	return attendance.SweepResult{Reason: attendance.ReasonAllMarked}, nil
}

type mutableRules struct {
	rules schedule.Static
}

func (m *mutableRules) AllActive(ctx context.Context) ([]schedule.Rule, error) {
	return m.rules.AllActive(ctx)
}

func newTestScheduler(rules *mutableRules, sw DaySweeper) *Scheduler {
	f := newFixture()
	syncer := NewSyncer(staticSource{}, f.pipeline, nil)
	return NewScheduler(SchedulerConfig{
		Location:     ict,
		PollInterval: time.Minute,
		SweepDelay:   5 * time.Minute,
		SweepRefresh: time.Hour,
	}, syncer, sw, rules, nil)
}

func TestRefreshSweepsSchedulesCloseTimes(t *testing.T) {
	rules := &mutableRules{rules: testRules}
	s := newTestScheduler(rules, &recordingSweeper{})
	if err := s.RefreshSweeps(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := s.CloseTimes()
	want := []schedule.CloseTime{
		{Weekday: time.Monday, Hour: 0, Minute: 5, DaysAfter: 1},
		{Weekday: time.Monday, Hour: 19, Minute: 5},
		{Weekday: time.Wednesday, Hour: 19, Minute: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("close times = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("close[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if n := len(s.cron.Entries()); n != len(want) {
		t.Errorf("cron entries = %d, want %d", n, len(want))
	}

	rules.rules = testRules[:1]
	if err := s.RefreshSweeps(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("cron entries after refresh = %d, want 1", n)
	}
}

func TestRunSweepTargetsWindowDay(t *testing.T) {
	sw := &recordingSweeper{}
	s := newTestScheduler(&mutableRules{rules: testRules}, sw)

	s.now = func() time.Time { return at(1, 0, 5) }
	s.runSweep(context.Background(), schedule.CloseTime{Weekday: time.Monday, Minute: 5, DaysAfter: 1})
	s.now = func() time.Time { return at(1, 19, 5) }
	s.runSweep(context.Background(), schedule.CloseTime{Weekday: time.Monday, Hour: 19, Minute: 5})

	if len(sw.calls) != 2 {
		t.Fatalf("calls = %d", len(sw.calls))
	}
	if got := schedule.DayKey(sw.calls[0].day, ict); got != time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC) {
		t.Errorf("midnight sweep day = %s, want Sunday", got.Format(schedule.DayLayout))
	}
	if got := schedule.DayKey(sw.calls[1].day, ict); got != time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("evening sweep day = %s, want Monday", got.Format(schedule.DayLayout))
	}
	if !sw.calls[1].ref.Equal(at(1, 19, 5)) {
		t.Errorf("ref = %s", sw.calls[1].ref)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestScheduler(&mutableRules{rules: testRules}, &recordingSweeper{})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// poll + refresh + three sweeps
	if n := len(s.cron.Entries()); n != 5 {
		t.Errorf("entries = %d, want 5", n)
	}
	<-s.Stop().Done()
}

type creatingSweeper struct{}

func (creatingSweeper) SweepDay(context.Context, time.Time, time.Time) (attendance.SweepResult, error) {
	return attendance.SweepResult{Created: 2}, nil
}

func TestRunSweepMetrics(t *testing.T) {
	created := metrics.Sweeps.WithLabelValues(metrics.SweepCreated)
	empty := metrics.Sweeps.WithLabelValues("")
	absences := testutil.ToFloat64(metrics.AbsencesCreated)
	before, beforeEmpty := testutil.ToFloat64(created), testutil.ToFloat64(empty)

	s := newTestScheduler(&mutableRules{rules: testRules}, creatingSweeper{})
	s.now = func() time.Time { return at(1, 19, 5) }
	s.runSweep(context.Background(), schedule.CloseTime{Weekday: time.Monday, Hour: 19, Minute: 5})

	if got := testutil.ToFloat64(created) - before; got != 1 {
		t.Errorf("created sweeps += %v, want 1", got)
	}
	if got := testutil.ToFloat64(empty) - beforeEmpty; got != 0 {
		t.Errorf("empty-label sweeps += %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.AbsencesCreated) - absences; got != 2 {
		t.Errorf("absences += %v, want 2", got)
	}
}
