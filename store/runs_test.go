package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-attendance/occupancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(image string, createdAt time.Time) *Run {
	return &Run{
		Image:      image,
		CreatedAt:  createdAt,
		Rows:       2,
		Cols:       3,
		Policy:     "overwrite",
		Cutoff:     42.5,
		Persons:    3,
		Tables:     6,
		Unassigned: 1,
		Report: occupancy.Report{
			Matrix:     occupancy.Matrix{{1, 0, 0}, {0, 1, 0}},
			TotalSeats: 6,
			Present:    2,
			Absent:     4,
			Percentage: 100.0 / 3,
		},
	}
}

func TestInsertRun_GetRun(t *testing.T) {
	db := openTestDB(t)
	createdAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	run := testRun("room1.jpg", createdAt)
	id, err := db.InsertRun(run)
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, run.ID)

	got, err := db.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "room1.jpg", got.Image)
	assert.True(t, createdAt.Equal(got.CreatedAt))
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, 3, got.Cols)
	assert.Equal(t, "overwrite", got.Policy)
	assert.Equal(t, float32(42.5), got.Cutoff)
	assert.Equal(t, 1, got.Unassigned)
	assert.Equal(t, run.Report.Matrix, got.Report.Matrix)
	assert.Equal(t, 2, got.Report.Present)
	assert.InDelta(t, 33.333, got.Report.Percentage, 0.001)
}

func TestInsertRun_KeepsGivenID(t *testing.T) {
	db := openTestDB(t)

	run := testRun("room1.jpg", time.Time{})
	run.ID = "fixed-id"

	id, err := db.InsertRun(run)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)
	assert.False(t, run.CreatedAt.IsZero())

	_, err = db.InsertRun(run)
	assert.Error(t, err, "duplicate id")
}

func TestGetRun_Missing(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetRun("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i, image := range []string{"a.jpg", "b.jpg", "a.jpg"} {
		_, err := db.InsertRun(testRun(image, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	all, err := db.ListRuns(RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt), "newest first")

	byImage, err := db.ListRuns(RunFilter{Image: "a.jpg"})
	require.NoError(t, err)
	assert.Len(t, byImage, 2)

	recent, err := db.ListRuns(RunFilter{Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "a.jpg", recent[0].Image)

	limited, err := db.ListRuns(RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteRun(t *testing.T) {
	db := openTestDB(t)

	id, err := db.InsertRun(testRun("a.jpg", time.Time{}))
	require.NoError(t, err)
	require.NoError(t, db.DeleteRun(id))

	got, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRuns_MixedZones(t *testing.T) {
	db := openTestDB(t)
	berlin := time.FixedZone("UTC+2", 2*60*60)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := db.InsertRun(testRun("early.jpg", base))
	require.NoError(t, err)
	// 10:30+02:00 is 08:30Z, before the first run.
	_, err = db.InsertRun(testRun("earlier.jpg", time.Date(2026, 3, 2, 10, 30, 0, 0, berlin)))
	require.NoError(t, err)

	all, err := db.ListRuns(RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "early.jpg", all[0].Image)
	assert.Equal(t, "earlier.jpg", all[1].Image)

	// 10:00+02:00 is 08:00Z.
	since, err := db.ListRuns(RunFilter{Since: time.Date(2026, 3, 2, 10, 0, 0, 0, berlin)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	// 11:00+02:00 is 09:00Z.
	since, err = db.ListRuns(RunFilter{Since: time.Date(2026, 3, 2, 11, 0, 0, 0, berlin)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "early.jpg", since[0].Image)
	assert.True(t, base.Equal(since[0].CreatedAt))
}

func TestGetRun_IgnoresOutOfRangeSeats(t *testing.T) {
	db := openTestDB(t)
	id, err := db.InsertRun(testRun("a.jpg", time.Time{}))
	require.NoError(t, err)

	for _, seat := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 3}} {
		_, err := db.db.Exec(`INSERT INTO seats (run_id, seat_row, seat_col, status) VALUES (?, ?, ?, ?)`,
			id, seat[0], seat[1], string(occupancy.StatusPresent))
		require.NoError(t, err)
	}

	run, err := db.GetRun(id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, occupancy.Matrix{{1, 0, 0}, {0, 1, 0}}, run.Report.Matrix)
}
