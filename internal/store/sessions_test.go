package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestUpsertSession_RoundTrip(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	s := &Session{
		ID:           "ride-1",
		StartTime:    time.Date(2025, 1, 7, 18, 30, 0, 0, time.UTC),
		DurationSecs: 3600,
		FTP:          intPtr(250),
		AvgPower:     intPtr(200),
		TSS:          floatPtr(72.5),
		AvgHR:        intPtr(140),
		Title:        "Tempo",
	}
	if err := db.UpsertSession(ctx, s); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}

	got, err := db.GetSession(ctx, "ride-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if !got.StartTime.Equal(s.StartTime) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, s.StartTime)
	}
	if got.FTP == nil || *got.FTP != 250 {
		t.Errorf("FTP = %v, want 250", got.FTP)
	}
	if got.TSS == nil || *got.TSS != 72.5 {
		t.Errorf("TSS = %v, want 72.5", got.TSS)
	}
	if got.MaxPower != nil {
		t.Errorf("MaxPower = %v, want nil", *got.MaxPower)
	}
	if got.Title != "Tempo" {
		t.Errorf("Title = %q, want %q", got.Title, "Tempo")
	}
}

func TestUpsertSession_UpdatesExisting(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	s := &Session{ID: "ride-1", StartTime: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), DurationSecs: 1800}
	if err := db.UpsertSession(ctx, s); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}
	s.TSS = floatPtr(40)
	if err := db.UpsertSession(ctx, s); err != nil {
		t.Fatalf("UpsertSession() second call error = %v", err)
	}

	count, err := db.CountSessions(ctx)
	if err != nil {
		t.Fatalf("CountSessions() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountSessions() = %d, want 1", count)
	}
	got, _ := db.GetSession(ctx, "ride-1")
	if got.TSS == nil || *got.TSS != 40 {
		t.Errorf("TSS = %v, want 40", got.TSS)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.GetSession(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestListSessions_OrderedByStart(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		s := &Session{ID: id, StartTime: base.AddDate(0, 0, 2-i), DurationSecs: 600}
		if err := db.UpsertSession(ctx, s); err != nil {
			t.Fatalf("UpsertSession(%s) error = %v", id, err)
		}
	}

	sessions, err := db.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("ListSessions() returned %d sessions, want 3", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i].StartTime.Before(sessions[i-1].StartTime) {
			t.Errorf("sessions not ascending at %d: %v before %v", i, sessions[i].StartTime, sessions[i-1].StartTime)
		}
	}
	if sessions[0].ID != "b" {
		t.Errorf("first session = %q, want %q", sessions[0].ID, "b")
	}
}

func TestListSessions_Empty(t *testing.T) {
	db := NewTestDB(t)

	sessions, err := db.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("ListSessions() = %v, want empty", sessions)
	}
}

func TestDeleteSession(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	s := &Session{ID: "ride-1", StartTime: time.Now().UTC().Truncate(time.Second), DurationSecs: 60}
	if err := db.UpsertSession(ctx, s); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}
	if err := db.DeleteSession(ctx, "ride-1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if err := db.DeleteSession(ctx, "ride-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second DeleteSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSyncState(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	value, err := db.GetSyncState(ctx, StateLastImport)
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if value != "" {
		t.Errorf("GetSyncState() = %q, want empty", value)
	}

	if err := db.SetSyncState(ctx, StateLastImport, "2025-01-07T00:00:00Z"); err != nil {
		t.Fatalf("SetSyncState() error = %v", err)
	}
	if err := db.SetSyncState(ctx, StateLastImport, "2025-01-08T00:00:00Z"); err != nil {
		t.Fatalf("SetSyncState() overwrite error = %v", err)
	}
	value, _ = db.GetSyncState(ctx, StateLastImport)
	if value != "2025-01-08T00:00:00Z" {
		t.Errorf("GetSyncState() = %q, want overwritten value", value)
	}
}
