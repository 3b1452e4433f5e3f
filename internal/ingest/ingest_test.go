package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/device"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/schedule"
)

var ict = time.FixedZone("ICT", 7*60*60)

// 2024-01-01 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, ict)
}

func strptr(s string) *string { return &s }

var testRules = schedule.Static{
	{ID: 1, DayOfWeek: 1, StartMinutes: 18 * 60, EndMinutes: 19 * 60, Active: true},
	{ID: 2, DayOfWeek: 3, StartMinutes: 18 * 60, EndMinutes: 19 * 60, Active: true},
	{ID: 3, DayOfWeek: 0, StartMinutes: 23 * 60, EndMinutes: schedule.MinutesPerDay, Active: true},
}

var testRoster = roster.Static{
	{ID: "p1", BiometricID: strptr("101"), Name: "Ada"},
	{ID: "p2", BiometricID: strptr("102"), Name: "Bo"},
	{ID: "p3", Name: "Cy"},
}

type fixture struct {
	repo     *attendance.MemoryRepository
	pipeline *Pipeline
	sweeper  *attendance.Sweeper
}

func newFixture() fixture {
	repo := attendance.NewMemoryRepository()
	resolver := schedule.NewResolver(testRules, ict, nil)
	svc := attendance.NewService(repo, ict)
	classifier := attendance.Classifier{Grace: 5 * time.Minute}
	return fixture{
		repo:     repo,
		pipeline: NewPipeline(testRoster, resolver, classifier, svc, nil),
		sweeper:  attendance.NewSweeper(repo, testRoster, resolver, 5*time.Minute),
	}
}

func (f fixture) status(t *testing.T, personID string, day time.Time) attendance.Status {
	t.Helper()
	rec, err := f.repo.Get(context.Background(), personID, schedule.DayKey(day, ict))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		return ""
	}
	return rec.Status
}

type staticSource struct {
	scans []device.RawScan
	err   error
}

func (s staticSource) FetchRawScans(context.Context) ([]device.RawScan, error) {
	return s.scans, s.err
}

func TestRunOnceScenario(t *testing.T) {
	f := newFixture()
	src := staticSource{scans: []device.RawScan{
		{BiometricID: "101", RecordTime: at(1, 18, 4)},
		{BiometricID: "101", RecordTime: at(1, 18, 7)},
		{BiometricID: "102", RecordTime: at(1, 17, 55)},
		{BiometricID: "999", RecordTime: at(1, 18, 0)},
		{BiometricID: "", RecordTime: at(1, 18, 0)},
		{BiometricID: "102", RecordTime: at(6, 18, 0)},
	}}
	s := NewSyncer(src, f.pipeline, nil)

	stats, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	want := PassStats{Fetched: 6, Merged: 3, NoWindow: 1, Unknown: 1, Malformed: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
	if got := f.status(t, "p1", at(1, 0, 0)); got != attendance.StatusLate {
		t.Errorf("p1 = %s, want LATE", got)
	}
	if got := f.status(t, "p2", at(1, 0, 0)); got != attendance.StatusPresent {
		t.Errorf("p2 = %s, want PRESENT", got)
	}
	if got := f.status(t, "p2", at(6, 0, 0)); got != "" {
		t.Errorf("Saturday scan created %s", got)
	}

	res, err := f.sweeper.SweepAbsences(context.Background(), at(1, 19, 6))
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 {
		t.Fatalf("sweep = %+v, want 1 created", res)
	}
	if got := f.status(t, "p3", at(1, 0, 0)); got != attendance.StatusAbsent {
		t.Errorf("p3 = %s, want ABSENT", got)
	}
}

func TestRunOnceReplayIsIdempotent(t *testing.T) {
	f := newFixture()
	src := staticSource{scans: []device.RawScan{
		{BiometricID: "101", RecordTime: at(1, 18, 3)},
		{BiometricID: "102", RecordTime: at(1, 18, 20)},
	}}
	s := NewSyncer(src, f.pipeline, nil)
	for i := 0; i < 3; i++ {
		if _, err := s.RunOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if f.repo.Len() != 2 {
		t.Fatalf("records = %d, want 2", f.repo.Len())
	}
	if got := f.status(t, "p1", at(1, 0, 0)); got != attendance.StatusPresent {
		t.Errorf("p1 = %s", got)
	}
	if got := f.status(t, "p2", at(1, 0, 0)); got != attendance.StatusLate {
		t.Errorf("p2 = %s", got)
	}
}

func TestRunOnceDeviceError(t *testing.T) {
	f := newFixture()
	s := NewSyncer(staticSource{err: errors.New("device unreachable")}, f.pipeline, nil)
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected device error")
	}
	if s.Running() {
		t.Error("guard still held after failed pass")
	}
	if f.repo.Len() != 0 {
		t.Errorf("failed pass wrote %d records", f.repo.Len())
	}

	// The next pass starts fresh.
	s.source = staticSource{scans: []device.RawScan{{BiometricID: "101", RecordTime: at(1, 18, 0)}}}
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if f.repo.Len() != 1 {
		t.Errorf("records = %d, want 1", f.repo.Len())
	}
}

// blockingSource parks the fetch until release is closed.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (s blockingSource) FetchRawScans(ctx context.Context) ([]device.RawScan, error) {
	close(s.entered)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []device.RawScan{{BiometricID: "101", RecordTime: at(1, 18, 0)}}, nil
}

func TestRunOnceSkipsOverlappingTick(t *testing.T) {
	f := newFixture()
	src := blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSyncer(src, f.pipeline, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.RunOnce(context.Background())
	}()
	<-src.entered

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, ErrPassRunning) {
		t.Fatalf("overlapping RunOnce err = %v, want ErrPassRunning", err)
	}
	s.Tick(context.Background())

	close(src.release)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first pass: %v", firstErr)
	}
	if s.Running() {
		t.Error("guard not released")
	}
	if f.repo.Len() != 1 {
		t.Errorf("records = %d, want 1", f.repo.Len())
	}
}

func TestConsumerHandlesPushedScans(t *testing.T) {
	f := newFixture()
	q := queue.NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	body, _ := json.Marshal(device.RawScan{BiometricID: "102", RecordTime: at(1, 18, 30)})
	for _, msg := range []queue.Message{
		{ID: "m1", Type: "other", Body: body},
		{ID: "m2", Type: queue.TypeScan, Body: json.RawMessage(`{"biometric_id":`)},
		{ID: "m3", Type: queue.TypeScan, Body: body},
	} {
		if err := q.Publish(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	c := NewConsumer(q, f.pipeline, nil)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for f.repo.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("pushed scan not merged")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := f.status(t, "p2", at(1, 0, 0)); got != attendance.StatusLate {
		t.Errorf("p2 = %s, want LATE", got)
	}
}
