package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/writepal/internal/domain"
	"github.com/containerd/errdefs"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "writepal.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestGetProfileMissing(t *testing.T) {
	repo := newTestStore(t)
	p, err := repo.GetProfile(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p != nil {
		t.Errorf("Expected nil profile, got %+v", p)
	}
}

func TestUpsertAndGetProfile(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	demo := domain.DemoProfile()
	if err := repo.UpsertProfile(ctx, &demo); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	got, err := repo.GetProfile(ctx, domain.DemoUserID)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got == nil {
		t.Fatal("Expected profile")
	}
	if got.Age != 8 || got.Grade != 3 || got.SkillLevel != "beginner" {
		t.Errorf("Unexpected profile %+v", got)
	}
	if len(got.WeakAreas) != 2 || got.WeakAreas[1] != "comma splices" {
		t.Errorf("Unexpected weak areas %q", got.WeakAreas)
	}
	if len(got.History) != 2 || got.History[1].Score != 90 {
		t.Errorf("Unexpected history %+v", got.History)
	}

	// Updating without history keeps the stored submissions.
	got.Grade = 4
	got.History = nil
	if err := repo.UpsertProfile(ctx, got); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	again, _ := repo.GetProfile(ctx, domain.DemoUserID)
	if again.Grade != 4 || len(again.History) != 2 {
		t.Errorf("Expected grade 4 with history kept, got %+v", again)
	}
}

func TestAppendSubmission(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.AppendSubmission(ctx, "new_kid", domain.Submission{Date: "2024-01-01", Topic: "Snow", Score: 70}); err != nil {
		t.Fatalf("AppendSubmission: %v", err)
	}
	if err := repo.AppendSubmission(ctx, "new_kid", domain.Submission{Date: "2024-01-02", Topic: "Rain", Score: 84}); err != nil {
		t.Fatalf("AppendSubmission: %v", err)
	}

	p, err := repo.GetProfile(ctx, "new_kid")
	if err != nil || p == nil {
		t.Fatalf("GetProfile: %v, %v", p, err)
	}
	if last, ok := p.LastScore(); !ok || last != 84 {
		t.Errorf("Expected last score 84, got %d (%v)", last, ok)
	}
	if p.History[0].Topic != "Snow" {
		t.Errorf("History out of order: %+v", p.History)
	}
}

func TestEmptyUserIDRejected(t *testing.T) {
	repo := newTestStore(t)
	err := repo.AppendSubmission(context.Background(), " ", domain.Submission{})
	if !errdefs.IsInvalidArgument(err) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
}

func TestSeedDemoIdempotent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := SeedDemo(ctx, repo, nil); err != nil {
			t.Fatalf("SeedDemo #%d: %v", i, err)
		}
	}
	p, _ := repo.GetProfile(ctx, domain.DemoUserID)
	if p == nil || len(p.History) != 2 {
		t.Errorf("Expected seeded demo profile, got %+v", p)
	}
}

func TestParseProfilesShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ids   []string
	}{
		{
			name: "yaml list",
			input: `
- user_id: ana
  age: 7
  grade: 2
- user_id: ben
  grade: 5
`,
			ids: []string{"ana", "ben"},
		},
		{
			name: "wrapped list",
			input: `
profiles:
  - user_id: cleo
    grade: 1
    weak_areas: [spelling]
`,
			ids: []string{"cleo"},
		},
		{
			name:  "json map by user",
			input: `{"zed": {"age": 11, "grade": 6}, "amy": {"age": 9, "grade": 4, "history": [{"date": "2024-02-02", "topic": "Bees", "score": 77}]}}`,
			ids:   []string{"amy", "zed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles, err := ParseProfiles(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseProfiles: %v", err)
			}
			if len(profiles) != len(tt.ids) {
				t.Fatalf("Expected %d profiles, got %d", len(tt.ids), len(profiles))
			}
			for i, id := range tt.ids {
				if profiles[i].UserID != id {
					t.Errorf("Profile %d: expected %s, got %s", i, id, profiles[i].UserID)
				}
			}
		})
	}
}

func TestImportProfiles(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	n, err := ImportProfiles(ctx, repo, strings.NewReader(`{"amy": {"age": 9, "grade": 4, "history": [{"date": "2024-02-02", "topic": "Bees", "score": 77}]}}`))
	if err != nil {
		t.Fatalf("ImportProfiles: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 imported, got %d", n)
	}
	p, _ := repo.GetProfile(ctx, "amy")
	if p == nil || p.Grade != 4 || len(p.History) != 1 {
		t.Errorf("Unexpected imported profile %+v", p)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("mongo", "", ""); !errdefs.IsInvalidArgument(err) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
	if _, err := NewPostgres(""); !errdefs.IsInvalidArgument(err) {
		t.Errorf("Expected invalid argument for empty DSN, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	got := postgresDialect.rebind("SELECT a FROM t WHERE x = ? AND y = ?")
	if got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Errorf("Unexpected rebind %q", got)
	}
	if q := sqliteDialect.rebind("x = ?"); q != "x = ?" {
		t.Errorf("SQLite query should be unchanged, got %q", q)
	}
}

func TestIsConflictError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY: database busy"), true},
		{errors.New("database is locked"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := isConflictError(tt.err); got != tt.want {
			t.Errorf("isConflictError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWithRetryRetriesConflicts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test", func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("Expected success on second call, got %v after %d calls", err, calls)
	}
}
