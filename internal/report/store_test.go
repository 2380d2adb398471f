package report

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/pkg/models"
)

func openTestStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := OpenResultStore(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "archive"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id, suite string, startedAt time.Time) *models.SuiteRun {
	return &models.SuiteRun{
		ID:        id,
		Suite:     suite,
		TargetURL: "http://localhost:8090",
		StartedAt: startedAt,
		Duration:  3 * time.Second,
		Passed:    2,
		Failed:    0,
		Scenarios: []models.ScenarioOutcome{
			{ID: "scn_1", Name: "renders custom array", Status: "passed", Duration: time.Second},
			{ID: "scn_2", Name: "completes in ascending order", Status: "passed", Duration: 2 * time.Second},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := openTestStore(t)

	run := sampleRun("run_001", "sorting", time.Now())
	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun("run_001")
	require.NoError(t, err)
	assert.Equal(t, "sorting", got.Suite)
	assert.Equal(t, 2, got.Passed)
	require.Len(t, got.Scenarios, 2)
	assert.Equal(t, "renders custom array", got.Scenarios[0].Name)
}

func TestSaveRunRequiresID(t *testing.T) {
	store := openTestStore(t)
	err := store.SaveRun(&models.SuiteRun{Suite: "sorting"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run ID is required")
}

func TestSaveRunUpserts(t *testing.T) {
	store := openTestStore(t)

	run := sampleRun("run_001", "sorting", time.Now())
	require.NoError(t, store.SaveRun(run))

	run.Failed = 1
	run.ReportPath = "results/run_001.md"
	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun("run_001")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, "results/run_001.md", got.ReportPath)
}

func TestGetRunNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetRun("run_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestListRunsNewestFirstWithFilter(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveRun(sampleRun("run_a", "sorting", base)))
	require.NoError(t, store.SaveRun(sampleRun("run_b", "queue", base.Add(10*time.Minute))))
	require.NoError(t, store.SaveRun(sampleRun("run_c", "sorting", base.Add(20*time.Minute))))

	all, err := store.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run_c", all[0].ID)
	assert.Equal(t, "run_b", all[1].ID)
	assert.Equal(t, "run_a", all[2].ID)

	sorting, err := store.ListRuns("sorting", 0)
	require.NoError(t, err)
	require.Len(t, sorting, 2)
	assert.Equal(t, "run_c", sorting[0].ID)

	limited, err := store.ListRuns("", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPruneRunsRetention(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("run_%03d", i)
		require.NoError(t, store.SaveRun(sampleRun(id, "sorting", base.Add(time.Duration(i)*time.Minute))))
	}

	pruned, err := store.PruneRuns("sorting", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	remaining, err := store.ListRuns("sorting", 0)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "run_004", remaining[0].ID)
	assert.Equal(t, "run_003", remaining[1].ID)

	// Oldest runs are gone.
	_, err = store.GetRun("run_000")
	require.Error(t, err)
}

func TestPruneRunsDisabled(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveRun(sampleRun("run_001", "sorting", time.Now())))

	pruned, err := store.PruneRuns("sorting", 0)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestResetOnStartup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	logger := common.GetLogger()

	store, err := OpenResultStore(logger, &common.BadgerConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(sampleRun("run_001", "sorting", time.Now())))
	require.NoError(t, store.Close())

	// Reopening with reset discards the archive.
	store, err = OpenResultStore(logger, &common.BadgerConfig{Path: dir, ResetOnStartup: true})
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns("", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
