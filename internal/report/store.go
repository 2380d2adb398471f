package report

import (
	"fmt"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/specto/internal/common"
	"github.com/ternarybob/specto/pkg/models"
)

// ResultStore archives suite runs in a Badger database so past results
// survive process restarts and feed the results server.
type ResultStore struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig
}

// OpenResultStore opens (or creates) the run archive.
func OpenResultStore(logger arbor.ILogger, config *common.BadgerConfig) (*ResultStore, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	// Ensure the directory exists
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening run archive")

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &ResultStore{
		store:  store,
		logger: logger,
		config: config,
	}, nil
}

// SaveRun upserts a completed run summary.
func (s *ResultStore) SaveRun(run *models.SuiteRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if err := s.store.Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves one archived run by ID.
func (s *ResultStore) GetRun(runID string) (*models.SuiteRun, error) {
	var run models.SuiteRun
	if err := s.store.Get(runID, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns archived runs newest first, optionally filtered by suite.
func (s *ResultStore) ListRuns(suite string, limit int) ([]*models.SuiteRun, error) {
	query := badgerhold.Where("ID").Ne("")
	if suite != "" {
		query = query.And("Suite").Eq(suite)
	}
	query = query.SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.SuiteRun
	if err := s.store.Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*models.SuiteRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

// PruneRuns deletes the oldest runs for a suite beyond the retention count.
// A keep of zero disables pruning.
func (s *ResultStore) PruneRuns(suite string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	runs, err := s.ListRuns(suite, 0)
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}

	pruned := 0
	for _, run := range runs[keep:] {
		if err := s.store.Delete(run.ID, &models.SuiteRun{}); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to prune archived run")
			continue
		}
		pruned++
	}

	s.logger.Debug().
		Str("suite", suite).
		Int("pruned", pruned).
		Msg("Pruned archived runs beyond retention")

	// Reclaim value-log space freed by the deletions. ErrNoRewrite just
	// means nothing met the GC threshold yet.
	if pruned > 0 {
		if err := s.store.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
			s.logger.Warn().Err(err).Msg("Badger value log GC failed")
		}
	}
	return pruned, nil
}

// Close closes the archive.
func (s *ResultStore) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
