package catalog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/camtrap/camtrap-agent/internal/catalog"
	"github.com/camtrap/camtrap-agent/internal/db"
)

func testRepo(t *testing.T) *catalog.SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "catalog.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return catalog.NewRepository(database.Conn())
}

func ptrFloat(f float64) *float64 { return &f }

func ptrInt(n int) *int { return &n }

func ptrTime(t time.Time) *time.Time { return &t }

func seedDeployment(t *testing.T, repo catalog.Repository, id string) *catalog.Deployment {
	t.Helper()
	d := &catalog.Deployment{
		ID:           id,
		Name:         "cam-" + id,
		Path:         "/data/" + id,
		Latitude:     ptrFloat(51.5),
		Longitude:    ptrFloat(-0.1),
		LocationName: "north ridge",
		Present:      true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateDeployment(context.Background(), d); err != nil {
		t.Fatalf("create deployment: %v", err)
	}
	return d
}

func seedMedia(t *testing.T, repo catalog.Repository, m *catalog.Media) {
	t.Helper()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.MediaType == "" {
		m.MediaType = "image/jpeg"
	}
	if m.Filename == "" {
		m.Filename = filepath.Base(m.Path)
	}
	if err := repo.UpsertMedia(context.Background(), m); err != nil {
		t.Fatalf("upsert media %s: %v", m.ID, err)
	}
}

func TestDeploymentRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	d := seedDeployment(t, repo, "d1")

	got, err := repo.GetDeployment(ctx, d.ID)
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}
	if got == nil {
		t.Fatal("deployment not found")
	}
	if got.Name != d.Name || got.Path != d.Path || !got.Present {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Latitude == nil || *got.Latitude != 51.5 {
		t.Errorf("latitude = %v, want 51.5", got.Latitude)
	}
	if got.LocationName != "north ridge" {
		t.Errorf("location name = %q", got.LocationName)
	}

	byPath, err := repo.GetDeploymentByPath(ctx, d.Path)
	if err != nil || byPath == nil || byPath.ID != d.ID {
		t.Errorf("lookup by path failed: %v %v", byPath, err)
	}

	missing, err := repo.GetDeployment(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing deployment should be nil, nil; got %v %v", missing, err)
	}
}

func TestDeleteDeploymentCascades(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	d := seedDeployment(t, repo, "d1")

	now := time.Now().UTC().Truncate(time.Second)
	seedMedia(t, repo, &catalog.Media{
		ID: "m1", DeploymentID: d.ID, Path: "/data/d1/a.jpg", Timestamp: ptrTime(now),
	})
	err := repo.CreateObservations(ctx, []catalog.Observation{
		{ID: "o1", MediaID: "m1", ScientificName: "Vulpes vulpes", Count: ptrInt(1), CreatedAt: now},
	})
	if err != nil {
		t.Fatalf("create observations: %v", err)
	}

	if err := repo.DeleteDeployment(ctx, d.ID); err != nil {
		t.Fatalf("delete deployment: %v", err)
	}

	count, err := repo.CountMedia(ctx)
	if err != nil {
		t.Fatalf("count media: %v", err)
	}
	if count != 0 {
		t.Errorf("media count after cascade = %d, want 0", count)
	}
	obs, err := repo.ObservationsFiltered(ctx, catalog.ObservationFilter{})
	if err != nil {
		t.Fatalf("observations: %v", err)
	}
	if len(obs) != 0 {
		t.Errorf("observations after cascade = %d, want 0", len(obs))
	}
}

func TestUpsertMediaByPath(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	d := seedDeployment(t, repo, "d1")

	ts := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	seedMedia(t, repo, &catalog.Media{ID: "m1", DeploymentID: d.ID, Path: "/data/d1/a.jpg", Timestamp: &ts})

	// Rescan of the same path keeps one row and refreshes the metadata.
	later := ts.Add(time.Hour)
	seedMedia(t, repo, &catalog.Media{ID: "m2", DeploymentID: d.ID, Path: "/data/d1/a.jpg", Timestamp: &later, FileSize: 42})

	count, _ := repo.CountMedia(ctx)
	if count != 1 {
		t.Fatalf("media count = %d, want 1", count)
	}

	got, err := repo.GetMedia(ctx, "m1")
	if err != nil || got == nil {
		t.Fatalf("get media: %v %v", got, err)
	}
	if got.Timestamp == nil || !got.Timestamp.Equal(later) {
		t.Errorf("timestamp not refreshed: %v", got.Timestamp)
	}
	if got.FileSize != 42 {
		t.Errorf("file size not refreshed: %d", got.FileSize)
	}
}

func TestTimedMediaResumesStrictlyAfter(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	d := seedDeployment(t, repo, "d1")

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	// Two records share a timestamp; the id tiebreak must separate them.
	seedMedia(t, repo, &catalog.Media{ID: "m1", DeploymentID: d.ID, Path: "/p/1.jpg", Timestamp: &base})
	tied := base.Add(time.Minute)
	seedMedia(t, repo, &catalog.Media{ID: "m2", DeploymentID: d.ID, Path: "/p/2.jpg", Timestamp: &tied})
	seedMedia(t, repo, &catalog.Media{ID: "m3", DeploymentID: d.ID, Path: "/p/3.jpg", Timestamp: &tied})
	seedMedia(t, repo, &catalog.Media{ID: "u1", DeploymentID: d.ID, Path: "/p/u.jpg"})

	items, err := repo.TimedMedia(ctx, nil, "", 10)
	if err != nil {
		t.Fatalf("timed media: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("timed count = %d, want 3", len(items))
	}
	if items[0].ItemID() != "m1" || items[1].ItemID() != "m2" || items[2].ItemID() != "m3" {
		t.Errorf("order = %s %s %s", items[0].ItemID(), items[1].ItemID(), items[2].ItemID())
	}

	resumed, err := repo.TimedMedia(ctx, &tied, "m2", 10)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(resumed) != 1 || resumed[0].ItemID() != "m3" {
		t.Errorf("resume after (t, m2) = %v, want [m3]", resumed)
	}
}

func TestUntimedMediaOffset(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	d := seedDeployment(t, repo, "d1")

	seedMedia(t, repo, &catalog.Media{ID: "u1", DeploymentID: d.ID, Path: "/p/1.jpg"})
	seedMedia(t, repo, &catalog.Media{ID: "u2", DeploymentID: d.ID, Path: "/p/2.jpg"})
	seedMedia(t, repo, &catalog.Media{ID: "u3", DeploymentID: d.ID, Path: "/p/3.jpg"})

	page, err := repo.UntimedMedia(ctx, 1, 2)
	if err != nil {
		t.Fatalf("untimed media: %v", err)
	}
	if len(page) != 2 || page[0].ItemID() != "u2" || page[1].ItemID() != "u3" {
		t.Errorf("untimed page = %v", page)
	}
}

func TestObservationsFiltered(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	d := seedDeployment(t, repo, "d1")
	other := seedDeployment(t, repo, "d2")

	ts := time.Date(2026, 3, 11, 14, 30, 0, 0, time.UTC) // a Wednesday
	seedMedia(t, repo, &catalog.Media{ID: "m1", DeploymentID: d.ID, Path: "/p/1.jpg", Timestamp: &ts, EventID: "e1"})
	seedMedia(t, repo, &catalog.Media{ID: "m2", DeploymentID: other.ID, Path: "/p/2.jpg", Timestamp: &ts})

	err := repo.CreateObservations(ctx, []catalog.Observation{
		{ID: "o1", MediaID: "m1", ScientificName: "Vulpes vulpes", Count: ptrInt(2), CreatedAt: ts},
		{ID: "o2", MediaID: "m2", ScientificName: "Meles meles", CreatedAt: ts},
	})
	if err != nil {
		t.Fatalf("create observations: %v", err)
	}

	all, err := repo.ObservationsFiltered(ctx, catalog.ObservationFilter{})
	if err != nil {
		t.Fatalf("filter all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}

	byDep, err := repo.ObservationsFiltered(ctx, catalog.ObservationFilter{DeploymentID: d.ID})
	if err != nil {
		t.Fatalf("filter deployment: %v", err)
	}
	if len(byDep) != 1 || byDep[0].ScientificName != "Vulpes vulpes" {
		t.Fatalf("deployment filter = %+v", byDep)
	}

	o := byDep[0]
	if o.EventID != "e1" {
		t.Errorf("event id = %q", o.EventID)
	}
	if o.Count == nil || *o.Count != 2 {
		t.Errorf("count = %v, want 2", o.Count)
	}
	if o.Hour == nil || *o.Hour != 14 {
		t.Errorf("hour = %v, want 14", o.Hour)
	}
	if o.WeekStart == nil || !o.WeekStart.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week start = %v, want Monday 2026-03-09", o.WeekStart)
	}
	if o.Latitude == nil || *o.Latitude != 51.5 || o.LocationName != "north ridge" {
		t.Errorf("deployment join missing: lat=%v loc=%q", o.Latitude, o.LocationName)
	}

	bySpecies, err := repo.ObservationsFiltered(ctx, catalog.ObservationFilter{Species: []string{"Meles meles"}})
	if err != nil {
		t.Fatalf("filter species: %v", err)
	}
	if len(bySpecies) != 1 || bySpecies[0].ScientificName != "Meles meles" {
		t.Fatalf("species filter = %+v", bySpecies)
	}
	if bySpecies[0].Count != nil {
		t.Errorf("absent count should stay nil, got %v", *bySpecies[0].Count)
	}

	from := ts.Add(time.Hour)
	none, err := repo.ObservationsFiltered(ctx, catalog.ObservationFilter{From: &from})
	if err != nil {
		t.Fatalf("filter from: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("from filter = %d, want 0", len(none))
	}
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	now := time.Now().UTC()
	job := &catalog.Job{
		ID: "j1", Type: catalog.JobTypeScan, Status: catalog.JobStatusPending,
		DeploymentID: "d1", CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	pending, err := repo.ListPendingJobs(ctx)
	if err != nil || len(pending) != 1 || pending[0].ID != "j1" {
		t.Fatalf("pending = %v, err %v", pending, err)
	}

	if err := repo.UpdateJobProgress(ctx, "j1", 50); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	if err := repo.UpdateJobStatus(ctx, "j1", catalog.JobStatusCompleted, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := repo.GetJob(ctx, "j1")
	if err != nil || got == nil {
		t.Fatalf("get job: %v %v", got, err)
	}
	if got.Status != catalog.JobStatusCompleted || got.Progress != 50 {
		t.Errorf("job = %+v", got)
	}

	remaining, _ := repo.ListPendingJobs(ctx)
	if len(remaining) != 0 {
		t.Errorf("pending after complete = %d, want 0", len(remaining))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)

	val, err := repo.GetConfig(ctx, "missing")
	if err != nil || val != "" {
		t.Errorf("missing key = %q, %v; want empty, nil", val, err)
	}

	if err := repo.SetConfig(ctx, "gap_seconds", "90"); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := repo.SetConfig(ctx, "gap_seconds", "120"); err != nil {
		t.Fatalf("overwrite config: %v", err)
	}

	val, err = repo.GetConfig(ctx, "gap_seconds")
	if err != nil || val != "120" {
		t.Errorf("config = %q, %v; want 120", val, err)
	}
}
