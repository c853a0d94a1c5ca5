package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ride-analytics/internal/fitimport"
	"ride-analytics/internal/metrics"
	"ride-analytics/internal/store"
)

// SessionStore is the persistence the importer writes to
type SessionStore interface {
	UpsertSession(ctx context.Context, s *store.Session) error
	SetSyncState(ctx context.Context, key, value string) error
}

// ImportService loads FIT activity files into the session store
type ImportService struct {
	store  SessionStore
	ftp    int
	now    func() time.Time
	logger zerolog.Logger
}

// NewImportService creates an importer; ftp fills in files without a threshold power
func NewImportService(s SessionStore, ftp int, logger zerolog.Logger) *ImportService {
	return &ImportService{
		store:  s,
		ftp:    ftp,
		now:    time.Now,
		logger: logger.With().Str("component", "importer").Logger(),
	}
}

// ImportProgress reports progress during an import
type ImportProgress struct {
	Total       int
	Completed   int
	CurrentFile string
}

// ImportResult contains the results of an import
type ImportResult struct {
	FilesFound     int
	SessionsStored int
	Skipped        int
	Errors         []error
}

// CollectFiles expands paths into FIT files. Directories are walked recursively.
func CollectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".fit") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ImportFiles parses and stores every file. A bad file is recorded in the
// result and the import moves on. progress is closed when the import returns.
func (s *ImportService) ImportFiles(ctx context.Context, files []string, progress chan<- ImportProgress) (*ImportResult, error) {
	if progress != nil {
		defer close(progress)
	}

	result := &ImportResult{FilesFound: len(files)}

	for i, path := range files {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if progress != nil {
			progress <- ImportProgress{Total: len(files), Completed: i, CurrentFile: path}
		}

		ride, err := fitimport.ParseFile(path, fitimport.Options{FTP: s.ftp})
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, err)
			s.logger.Warn().Err(err).Str("file", path).Msg("Skipping file")
			continue
		}

		if err := s.store.UpsertSession(ctx, &ride.Session); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("storing %s: %w", path, err))
			continue
		}
		result.SessionsStored++
		metrics.SessionsImported.Inc()
		s.logger.Debug().Str("file", path).Str("session_id", ride.Session.ID).Msg("Session imported")
	}

	if progress != nil {
		progress <- ImportProgress{Total: len(files), Completed: len(files)}
	}

	if result.SessionsStored > 0 {
		if err := s.store.SetSyncState(ctx, store.StateLastImport, s.now().UTC().Format(time.RFC3339)); err != nil {
			return result, fmt.Errorf("recording import time: %w", err)
		}
	}

	s.logger.Info().
		Int("files", result.FilesFound).
		Int("stored", result.SessionsStored).
		Int("skipped", result.Skipped).
		Msg("Import finished")
	return result, nil
}
