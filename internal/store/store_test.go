package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/punch"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createSession(t *testing.T, s *Store, id string, started time.Time) *Session {
	t.Helper()

	sess := &Session{ID: id, Mode: "scoring-mode", StartedAt: started, Lives: 0}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	tables := []string{"sessions", "punches", "bindings", "settings"}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	createSession(t, s, "keep", time.Now())
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	if _, err := s.Sessions().GetByID("keep"); err != nil {
		t.Errorf("session should survive reopening: %v", err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}
}

func TestStore_IndexesCreated(t *testing.T) {
	s := newTestStore(t)

	indexes := []string{
		"idx_punches_session_id",
		"idx_sessions_started_at",
		"idx_bindings_side",
	}
	for _, idx := range indexes {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
			idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := &Session{
		ID:        "s1",
		Mode:      "survival",
		StartedAt: started,
		Lives:     3,
		Config:    json.RawMessage(`{"queue_size":5}`),
	}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Mode != "survival" || got.Lives != 3 {
		t.Errorf("got mode %q lives %d, want survival 3", got.Mode, got.Lives)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", got.EndedAt)
	}
	if string(got.Config) != `{"queue_size":5}` {
		t.Errorf("Config = %s", got.Config)
	}
}

func TestSessionRepository_DefaultsConfig(t *testing.T) {
	s := newTestStore(t)

	createSession(t, s, "s1", time.Now())
	got, err := s.Sessions().GetByID("s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(got.Config) != "{}" {
		t.Errorf("Config = %s, want {}", got.Config)
	}
}

func TestSessionRepository_Update(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := createSession(t, s, "s1", time.Now())
	ended := sess.StartedAt.Add(time.Minute)
	sess.EndedAt = &ended
	sess.LeftPunches = 4
	sess.RightPunches = 2
	sess.Score = 57
	sess.MaxSpeed = 210.5

	if err := repo.Update(sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LeftPunches != 4 || got.RightPunches != 2 || got.Score != 57 {
		t.Errorf("got %d/%d score %d, want 4/2 score 57", got.LeftPunches, got.RightPunches, got.Score)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("EndedAt = %v, want %v", got.EndedAt, ended)
	}
	if got.MaxSpeed != 210.5 {
		t.Errorf("MaxSpeed = %v, want 210.5", got.MaxSpeed)
	}

	missing := &Session{ID: "nope"}
	if err := repo.Update(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update of missing session: got %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	createSession(t, s, "old", base)
	createSession(t, s, "mid", base.Add(time.Hour))
	createSession(t, s, "new", base.Add(2*time.Hour))

	all, err := s.Sessions().List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0) returned %d sessions, want 3", len(all))
	}
	if all[0].ID != "new" || all[2].ID != "old" {
		t.Errorf("order = %s,%s,%s, want new,mid,old", all[0].ID, all[1].ID, all[2].ID)
	}

	limited, err := s.Sessions().List(2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions", len(limited))
	}
}

func TestSessionRepository_GetMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Sessions().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := s.Sessions().Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: got %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_DeleteCascadesPunches(t *testing.T) {
	s := newTestStore(t)
	createSession(t, s, "s1", time.Now())

	for i, side := range []string{"left", "right", "left"} {
		p := &Punch{ID: string(rune('a' + i)), SessionID: "s1", Side: side, Speed: 100, SpeedAvg: 90, Timestamp: float64(i)}
		if err := s.Punches().Create(p); err != nil {
			t.Fatalf("Create punch: %v", err)
		}
	}

	if err := s.Sessions().Delete("s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM punches").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("%d punches remain after deleting their session", n)
	}
}

func TestPunchRepository_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	createSession(t, s, "s1", time.Now())
	createSession(t, s, "s2", time.Now())

	punches := []*Punch{
		{ID: "p3", SessionID: "s1", Side: "left", Speed: 150, SpeedAvg: 120, Points: 12, Timestamp: 3},
		{ID: "p1", SessionID: "s1", Side: "left", Speed: 180, SpeedAvg: 140, Points: 14, Timestamp: 1},
		{ID: "p2", SessionID: "s1", Side: "right", Speed: 200, SpeedAvg: 160, Points: 16, Timestamp: 2},
		{ID: "other", SessionID: "s2", Side: "right", Speed: 99, SpeedAvg: 99, Timestamp: 1},
	}
	for _, p := range punches {
		if err := s.Punches().Create(p); err != nil {
			t.Fatalf("Create %s: %v", p.ID, err)
		}
	}

	got, err := s.Punches().ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d punches, want 3", len(got))
	}
	for i, want := range []string{"p1", "p2", "p3"} {
		if got[i].ID != want {
			t.Errorf("punch %d = %s, want %s", i, got[i].ID, want)
		}
	}

	left, right, err := s.Punches().CountBySession("s1")
	if err != nil {
		t.Fatalf("CountBySession: %v", err)
	}
	if left != 2 || right != 1 {
		t.Errorf("counts = %d/%d, want 2/1", left, right)
	}
}

func TestPunchRepository_RejectsOrphanAndBadSide(t *testing.T) {
	s := newTestStore(t)

	orphan := &Punch{ID: "p1", SessionID: "ghost", Side: "left", Timestamp: 1}
	if err := s.Punches().Create(orphan); err == nil {
		t.Error("punch without a session should violate the foreign key")
	}

	createSession(t, s, "s1", time.Now())
	bad := &Punch{ID: "p2", SessionID: "s1", Side: "both", Timestamp: 1}
	if err := s.Punches().Create(bad); err == nil {
		t.Error("punch with an unknown side should violate the check constraint")
	}
}

func TestPunchRecorder_Publish(t *testing.T) {
	s := newTestStore(t)
	createSession(t, s, "s1", time.Now())

	rec := NewPunchRecorder(s)
	err := rec.Publish(events.PunchEvent{
		ID:        "e1",
		SessionID: "s1",
		Mode:      "scoring-mode",
		Side:      punch.Right,
		Speed:     250,
		SpeedAvg:  192,
		Points:    19,
		Timestamp: 4.5,
		At:        time.Now(),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, err := s.Punches().ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d punches, want 1", len(got))
	}
	if got[0].Side != "right" || got[0].Points != 19 || got[0].Timestamp != 4.5 {
		t.Errorf("stored punch = %+v", got[0])
	}

	if err := rec.Publish(events.PunchEvent{ID: "e2", SessionID: "ghost", Side: punch.Left}); err == nil {
		t.Error("publishing into a missing session should fail")
	}
}

func TestBindingRepository_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	b := &Binding{
		ID:         "b1",
		Side:       "left",
		PluginName: "keyboard",
		ActionName: "press",
		Params:     json.RawMessage(`{"key":"space"}`),
		Enabled:    true,
	}
	if err := repo.Create(b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.CreatedAt.IsZero() {
		t.Error("Create should set CreatedAt")
	}

	got, err := repo.GetByID("b1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PluginName != "keyboard" || got.ActionName != "press" || !got.Enabled {
		t.Errorf("got %+v", got)
	}
	if string(got.Params) != `{"key":"space"}` {
		t.Errorf("Params = %s", got.Params)
	}

	got.Enabled = false
	got.Params = nil
	if err := repo.Update(got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err = repo.GetByID("b1")
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.Enabled {
		t.Error("binding should be disabled after update")
	}
	if string(got.Params) != "{}" {
		t.Errorf("Params = %s, want {}", got.Params)
	}

	if err := repo.Delete("b1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID("b1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete: got %v, want ErrNotFound", err)
	}
	if err := repo.Delete("b1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestBindingRepository_ListEnabled(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	bindings := []*Binding{
		{ID: "l1", Side: "left", PluginName: "keyboard", ActionName: "press", Enabled: true},
		{ID: "l2", Side: "left", PluginName: "system-control", ActionName: "volume", Enabled: false},
		{ID: "r1", Side: "right", PluginName: "keyboard", ActionName: "press", Enabled: true},
	}
	for _, b := range bindings {
		if err := repo.Create(b); err != nil {
			t.Fatalf("Create %s: %v", b.ID, err)
		}
	}

	left, err := repo.ListEnabled("left")
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(left) != 1 || left[0].ID != "l1" {
		t.Errorf("enabled left bindings = %v", left)
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List returned %d bindings, want 3", len(all))
	}

	if err := repo.Create(&Binding{ID: "x", Side: "up", PluginName: "p", ActionName: "a"}); err == nil {
		t.Error("binding with an unknown side should be rejected")
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get("mode"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing: got %v, want ErrNotFound", err)
	}

	if err := repo.Set("mode", "survival"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set("mode", "scoring-mode"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if err := repo.Set("enabled", "true"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, err := repo.Get("mode")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "scoring-mode" {
		t.Errorf("mode = %q, want scoring-mode", v)
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || all["enabled"] != "true" {
		t.Errorf("All = %v", all)
	}
}
