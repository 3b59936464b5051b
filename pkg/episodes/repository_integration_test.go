package episodes

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

// setupTestDB connects to the test database, skipping the test when none is
// configured. The episodes table is rebuilt for every test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}

	if err := db.Exec("DROP TABLE IF EXISTS episodes").Error; err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

func TestRepository_UpsertIntegration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	record := &tvmaze.Episode{
		ID:      1001,
		URL:     "https://www.tvmaze.com/episodes/1001",
		Name:    "Pilot",
		Season:  1,
		Number:  intPtr(1),
		Airdate: "2020-03-01",
		Rating:  json.RawMessage(`{"average":7.8}`),
	}

	if err := repo.Upsert(ctx, record, 55); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := repo.GetByID(ctx, 1001)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil for stored episode")
	}
	if got.ShowID != 55 {
		t.Errorf("ShowID = %d, want 55", got.ShowID)
	}
	if got.Name == nil || *got.Name != "Pilot" {
		t.Errorf("Name = %v, want Pilot", got.Name)
	}
	if string(got.Rating) != `{"average":7.8}` {
		t.Errorf("Rating = %s, want average 7.8 payload", got.Rating)
	}

	// Same id again with changed fields updates in place.
	record.Name = "Pilot (extended)"
	record.Runtime = intPtr(75)
	if err := repo.Upsert(ctx, record, 55); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1 after re-upsert", n)
	}

	got, err = repo.GetByID(ctx, 1001)
	if err != nil {
		t.Fatalf("GetByID after update failed: %v", err)
	}
	if got.Name == nil || *got.Name != "Pilot (extended)" {
		t.Errorf("Name = %v, want Pilot (extended)", got.Name)
	}
	if got.Runtime == nil || *got.Runtime != 75 {
		t.Errorf("Runtime = %v, want 75", got.Runtime)
	}
}

func TestRepository_Upsert_NoIDIntegration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &tvmaze.Episode{Name: "orphan"}, 55); err != nil {
		t.Fatalf("Upsert without id should not fail: %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0 after dropped record", n)
	}
}

func TestRepository_ListIntegration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seed := []struct {
		id, season, number int
	}{
		{3, 2, 1},
		{1, 1, 1},
		{2, 1, 2},
	}
	for _, s := range seed {
		record := &tvmaze.Episode{
			ID:     s.id,
			Season: s.season,
			Number: intPtr(s.number),
		}
		if err := repo.Upsert(ctx, record, 9); err != nil {
			t.Fatalf("seed Upsert failed: %v", err)
		}
	}
	// An episode of another show must not appear in either listing.
	if err := repo.Upsert(ctx, &tvmaze.Episode{ID: 4, Season: 1, Number: intPtr(1)}, 10); err != nil {
		t.Fatalf("seed Upsert failed: %v", err)
	}

	all, err := repo.ListByShow(ctx, 9)
	if err != nil {
		t.Fatalf("ListByShow failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListByShow returned %d episodes, want 3", len(all))
	}
	wantOrder := []int{1, 2, 3}
	for i, ep := range all {
		if ep.ID != wantOrder[i] {
			t.Errorf("ListByShow[%d].ID = %d, want %d", i, ep.ID, wantOrder[i])
		}
	}

	season1, err := repo.ListBySeason(ctx, 9, 1)
	if err != nil {
		t.Fatalf("ListBySeason failed: %v", err)
	}
	if len(season1) != 2 {
		t.Fatalf("ListBySeason returned %d episodes, want 2", len(season1))
	}
	if season1[0].ID != 1 || season1[1].ID != 2 {
		t.Errorf("ListBySeason order = [%d %d], want [1 2]", season1[0].ID, season1[1].ID)
	}
}

func TestRepository_GetByID_MissingIntegration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	got, err := repo.GetByID(context.Background(), 424242)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetByID = %+v, want nil for missing episode", got)
	}
}

func TestRepository_LatestUpdateIntegration(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	latest, err := repo.LatestUpdate(ctx)
	if err != nil {
		t.Fatalf("LatestUpdate on empty table failed: %v", err)
	}
	if latest != nil {
		t.Errorf("LatestUpdate = %v, want nil for empty table", latest)
	}

	if err := repo.Upsert(ctx, &tvmaze.Episode{ID: 8, Season: 1}, 3); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	latest, err = repo.LatestUpdate(ctx)
	if err != nil {
		t.Fatalf("LatestUpdate failed: %v", err)
	}
	if latest == nil {
		t.Fatal("LatestUpdate should be set after an upsert")
	}
}
