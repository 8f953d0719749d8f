package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeStore mimics the Postgres repository in memory, including the
// constraint behavior the SQL relies on: one active session and one
// record per (session, student) pair.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*Session
	records  map[int64]map[int64]Record // session -> student -> record
	students map[int64]string
}

func newFakeStore(students map[int64]string) *fakeStore {
	return &fakeStore{
		sessions: make(map[int64]*Session),
		records:  make(map[int64]map[int64]Record),
		students: students,
	}
}

func (f *fakeStore) InsertActiveSession(_ context.Context, professorID int64, start time.Time) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.IsActive {
			return Session{}, fmt.Errorf("%w: a session is already active", ErrConflict)
		}
	}
	f.nextID++
	s := &Session{ID: f.nextID, ProfessorID: professorID, StartTime: start, IsActive: true}
	f.sessions[s.ID] = s
	f.records[s.ID] = make(map[int64]Record)
	return *s, nil
}

func (f *fakeStore) CloseSession(_ context.Context, sessionID int64, end time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || !s.IsActive {
		return 0, fmt.Errorf("%w: session %d is not active", ErrInvalidState, sessionID)
	}
	s.IsActive = false
	s.EndTime = &end
	var backfilled int64
	for studentID := range f.students {
		if _, marked := f.records[sessionID][studentID]; marked {
			continue
		}
		f.nextID++
		f.records[sessionID][studentID] = Record{
			ID: f.nextID, SessionID: sessionID, StudentID: studentID,
			Status: StatusAbsent, MarkedAt: end,
		}
		backfilled++
	}
	return backfilled, nil
}

func (f *fakeStore) ActiveSession(context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.IsActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) StudentExists(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.students[id]
	return ok, nil
}

func (f *fakeStore) InsertPresent(_ context.Context, sessionID, studentID int64, at time.Time) (MarkResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.records[sessionID][studentID]; ok {
		return MarkResult{Created: false, Record: existing}, nil
	}
	f.nextID++
	rec := Record{ID: f.nextID, SessionID: sessionID, StudentID: studentID, Status: StatusPresent, MarkedAt: at}
	f.records[sessionID][studentID] = rec
	return MarkResult{Created: true, Record: rec}, nil
}

func (f *fakeStore) RecordsBySession(_ context.Context, sessionID int64) ([]RecordView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var views []RecordView
	for studentID, rec := range f.records[sessionID] {
		views = append(views, RecordView{Student: f.students[studentID], Status: rec.Status, MarkedAt: rec.MarkedAt})
	}
	return views, nil
}

func (f *fakeStore) LatestForStudent(_ context.Context, studentID int64) (*StudentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *StudentRecord
	var latestID int64
	for sessionID, byStudent := range f.records {
		rec, ok := byStudent[studentID]
		if !ok || rec.ID < latestID {
			continue
		}
		s := f.sessions[sessionID]
		latestID = rec.ID
		latest = &StudentRecord{Status: rec.Status, MarkedAt: rec.MarkedAt, StartTime: s.StartTime, EndTime: s.EndTime}
	}
	return latest, nil
}

func (f *fakeStore) SessionCounts(_ context.Context, sessionID int64) (Counts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c Counts
	for _, rec := range f.records[sessionID] {
		if rec.Status == StatusPresent {
			c.Present++
		} else {
			c.Absent++
		}
	}
	return c, nil
}

func TestStartSessionConflictsWhileActive(t *testing.T) {
	svc := NewService(newFakeStore(map[int64]string{}))
	ctx := context.Background()

	first, err := svc.StartSession(ctx, 1)
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !first.IsActive {
		t.Error("expected started session to be active")
	}

	if _, err := svc.StartSession(ctx, 2); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestStartSessionConcurrentAttemptsYieldOneWinner(t *testing.T) {
	svc := NewService(newFakeStore(map[int64]string{}))
	ctx := context.Background()

	const attempts = 16
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(prof int64) {
			defer wg.Done()
			_, err := svc.StartSession(ctx, prof)
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly 1 successful start, got %d", wins)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestMarkPresentIsIdempotent(t *testing.T) {
	svc := NewService(newFakeStore(map[int64]string{7: "Ada Lovelace"}))
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first, err := svc.MarkPresent(ctx, sess.ID, 7)
	if err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	if !first.Created {
		t.Error("expected first mark to create a record")
	}
	if first.Record.Status != StatusPresent {
		t.Errorf("expected present, got %s", first.Record.Status)
	}

	second, err := svc.MarkPresent(ctx, sess.ID, 7)
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if second.Created {
		t.Error("expected second mark to reuse the existing record")
	}
	if second.Record.ID != first.Record.ID {
		t.Errorf("expected identical record, got ids %d and %d", first.Record.ID, second.Record.ID)
	}
}

func TestMarkPresentRequiresActiveSession(t *testing.T) {
	svc := NewService(newFakeStore(map[int64]string{7: "Ada Lovelace"}))
	ctx := context.Background()

	if _, err := svc.MarkPresent(ctx, 1, 7); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState with no active session, got %v", err)
	}

	sess, err := svc.StartSession(ctx, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.MarkPresent(ctx, sess.ID+100, 7); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for non-active session id, got %v", err)
	}
}

func TestMarkPresentRejectsUnknownStudent(t *testing.T) {
	svc := NewService(newFakeStore(map[int64]string{7: "Ada Lovelace"}))
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.MarkPresent(ctx, sess.ID, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStopSessionBackfillsAbsences(t *testing.T) {
	students := map[int64]string{1: "Ada Lovelace", 2: "Alan Turing", 3: "Grace Hopper"}
	svc := NewService(newFakeStore(students))
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, 10)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.MarkPresent(ctx, sess.ID, 1); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	backfilled, err := svc.StopSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if backfilled != 2 {
		t.Errorf("expected 2 backfilled absences, got %d", backfilled)
	}

	active, err := svc.ActiveSession(ctx)
	if err != nil {
		t.Fatalf("active lookup failed: %v", err)
	}
	if active != nil {
		t.Error("expected no active session after stop")
	}

	counts, err := svc.CountsFor(ctx, sess.ID)
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	if counts.Present != 1 || counts.Absent != 2 {
		t.Errorf("expected 1 present / 2 absent, got %d / %d", counts.Present, counts.Absent)
	}
}

func TestStopSessionTwiceFails(t *testing.T) {
	svc := NewService(newFakeStore(map[int64]string{}))
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, 1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.StopSession(ctx, sess.ID); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if _, err := svc.StopSession(ctx, sess.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on second stop, got %v", err)
	}
	if _, err := svc.StopSession(ctx, 999); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for unknown session, got %v", err)
	}
}

func TestLedgerScenario(t *testing.T) {
	students := map[int64]string{1: "Ada Lovelace", 2: "Alan Turing"}
	svc := NewService(newFakeStore(students))
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, 10)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Student A recognized twice: still exactly one present record.
	if _, err := svc.MarkPresent(ctx, sess.ID, 1); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	again, err := svc.MarkPresent(ctx, sess.ID, 1)
	if err != nil {
		t.Fatalf("repeat mark failed: %v", err)
	}
	if again.Created {
		t.Error("expected repeat recognition to dedupe")
	}

	if _, err := svc.StopSession(ctx, sess.ID); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	records, err := svc.Records(ctx, sess.ID)
	if err != nil {
		t.Fatalf("records failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	byStudent := map[string]Status{}
	for _, rec := range records {
		byStudent[rec.Student] = rec.Status
	}
	if byStudent["Ada Lovelace"] != StatusPresent {
		t.Errorf("expected Ada present, got %s", byStudent["Ada Lovelace"])
	}
	if byStudent["Alan Turing"] != StatusAbsent {
		t.Errorf("expected Alan absent, got %s", byStudent["Alan Turing"])
	}

	latest, err := svc.LatestForStudent(ctx, 2)
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest == nil || latest.Status != StatusAbsent {
		t.Errorf("expected latest absent record for student 2, got %+v", latest)
	}
	if latest != nil && latest.EndTime == nil {
		t.Error("expected session end time on latest record")
	}
}
