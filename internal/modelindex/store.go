package modelindex

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jkoski/flowdeps/internal/errors"
	"github.com/jkoski/flowdeps/internal/logging"
	"github.com/jkoski/flowdeps/internal/observability/metrics"
	"gorm.io/gorm"
)

const selectModelWithLocation = "model_records.hash AS hash, model_locations.filename AS filename, " +
	"model_records.file_size AS file_size, model_locations.relative_path AS relative_path, " +
	"model_locations.mod_time AS mod_time, model_locations.last_seen AS last_seen"

// Store provides access to the content-addressed model index. All mutating
// operations run as a single transaction so concurrent readers never observe
// a half-applied change.
type Store struct {
	db      *gorm.DB
	log     *slog.Logger
	metrics *metrics.ModelIndexMetrics
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics attaches index metrics to the store.
func WithMetrics(m *metrics.ModelIndexMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger overrides the default service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates a Store on top of an initialized index database.
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		log: logging.ForService("modelindex"),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordIndexOperation(operation, status, time.Since(start))
}

// EnsureModel creates the model record for hash if absent. Calling it again
// with identical arguments is a no-op; a conflicting size fails with
// ErrSizeConflict since size is part of identity verification.
func (s *Store) EnsureModel(ctx context.Context, hash string, size int64) (err error) {
	start := time.Now()
	defer func() { s.record("ensure_model", start, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ModelRecord
		findErr := tx.Where("hash = ?", hash).First(&existing).Error
		if findErr == nil {
			if existing.FileSize != size {
				return errors.New(ErrSizeConflict).
					Component("modelindex").
					Category(errors.CategoryConflict).
					Context("hash", hash).
					Context("recorded_size", existing.FileSize).
					Context("asserted_size", size).
					Build()
			}
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		return tx.Create(&ModelRecord{Hash: hash, FileSize: size}).Error
	})
	return err
}

// AddLocation upserts the location row for relativePath under hash. The hash
// must already exist. If the path currently maps to a different hash, that
// mapping is replaced; a path cannot belong to two hashes.
func (s *Store) AddLocation(ctx context.Context, hash, relativePath, filename string, modTime time.Time) (err error) {
	start := time.Now()
	defer func() { s.record("add_location", start, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec ModelRecord
		if findErr := tx.Where("hash = ?", hash).First(&rec).Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return errors.New(ErrLocationForUnknownModel).
					Component("modelindex").
					Category(errors.CategoryNotFound).
					Context("hash", hash).
					Context("relative_path", relativePath).
					Build()
			}
			return findErr
		}

		now := time.Now()
		var loc ModelLocation
		findErr := tx.Where("relative_path = ?", relativePath).First(&loc).Error
		switch {
		case findErr == nil:
			loc.ModelHash = hash
			loc.Filename = filename
			loc.ModTime = modTime
			loc.LastSeen = now
			return tx.Save(&loc).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			return tx.Create(&ModelLocation{
				ModelHash:    hash,
				RelativePath: relativePath,
				Filename:     filename,
				ModTime:      modTime,
				LastSeen:     now,
			}).Error
		default:
			return findErr
		}
	})
	return err
}

// TouchLocation updates the last-seen timestamp of the location at
// relativePath, so presence is tracked even for files whose content was not
// re-hashed. A missing location is a no-op.
func (s *Store) TouchLocation(ctx context.Context, relativePath string, seen time.Time) (err error) {
	start := time.Now()
	defer func() { s.record("touch_location", start, err) }()

	err = s.db.WithContext(ctx).
		Model(&ModelLocation{}).
		Where("relative_path = ?", relativePath).
		Update("last_seen", seen).Error
	return err
}

// RemoveLocation removes the location at relativePath if present and reports
// whether a row was removed. The model record is kept even if it becomes
// location-less.
func (s *Store) RemoveLocation(ctx context.Context, relativePath string) (removed bool, err error) {
	start := time.Now()
	defer func() { s.record("remove_location", start, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("relative_path = ?", relativePath).Delete(&ModelLocation{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		return nil
	})
	return removed, err
}

// FindModelByHash returns all record/location joins whose hash starts with
// prefix, ordered by hash then relative path for a stable result. A record
// with no locations yields no rows.
func (s *Store) FindModelByHash(ctx context.Context, prefix string) ([]ModelWithLocation, error) {
	var rows []ModelWithLocation
	err := s.db.WithContext(ctx).
		Table("model_locations").
		Select(selectModelWithLocation).
		Joins("JOIN model_records ON model_records.hash = model_locations.model_hash").
		Where("model_records.hash LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("model_records.hash, model_locations.relative_path").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Context("prefix", prefix).Build()
	}
	return rows, nil
}

// FindByFilename returns all joins whose filename contains substr,
// case-insensitively.
func (s *Store) FindByFilename(ctx context.Context, substr string) ([]ModelWithLocation, error) {
	var rows []ModelWithLocation
	err := s.db.WithContext(ctx).
		Table("model_locations").
		Select(selectModelWithLocation).
		Joins("JOIN model_records ON model_records.hash = model_locations.model_hash").
		Where("LOWER(model_locations.filename) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(substr))+"%").
		Order("model_locations.relative_path").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Context("filename", substr).Build()
	}
	return rows, nil
}

// FindByRelativePath returns the join for an exact relative path. The unique
// path constraint means at most one row.
func (s *Store) FindByRelativePath(ctx context.Context, relativePath string) ([]ModelWithLocation, error) {
	var rows []ModelWithLocation
	err := s.db.WithContext(ctx).
		Table("model_locations").
		Select(selectModelWithLocation).
		Joins("JOIN model_records ON model_records.hash = model_locations.model_hash").
		Where("model_locations.relative_path = ?", relativePath).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Context("relative_path", relativePath).Build()
	}
	return rows, nil
}

// FindByRelativePathFold is FindByRelativePath with case-folded comparison.
// Distinctly-cased paths may each match, so multiple rows are possible.
func (s *Store) FindByRelativePathFold(ctx context.Context, relativePath string) ([]ModelWithLocation, error) {
	var rows []ModelWithLocation
	err := s.db.WithContext(ctx).
		Table("model_locations").
		Select(selectModelWithLocation).
		Joins("JOIN model_records ON model_records.hash = model_locations.model_hash").
		Where("LOWER(model_locations.relative_path) = ?", strings.ToLower(relativePath)).
		Order("model_locations.relative_path").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Context("relative_path", relativePath).Build()
	}
	return rows, nil
}

// CategoryDirs returns the distinct top-level directories present in the
// index, sorted. Bare-filename locations contribute nothing.
func (s *Store) CategoryDirs(ctx context.Context) ([]string, error) {
	var paths []string
	err := s.db.WithContext(ctx).
		Model(&ModelLocation{}).
		Distinct().
		Pluck("relative_path", &paths).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Build()
	}

	seen := make(map[string]struct{})
	var dirs []string
	for _, p := range paths {
		idx := strings.IndexByte(p, '/')
		if idx <= 0 {
			continue
		}
		dir := p[:idx]
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// GetAllLocations returns every location row.
func (s *Store) GetAllLocations(ctx context.Context) ([]ModelLocation, error) {
	var locations []ModelLocation
	err := s.db.WithContext(ctx).Order("relative_path").Find(&locations).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return locations, nil
}

// GetAllModels returns every model record, including location-less ones.
func (s *Store) GetAllModels(ctx context.Context) ([]ModelRecord, error) {
	var records []ModelRecord
	err := s.db.WithContext(ctx).Order("hash").Find(&records).Error
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return records, nil
}

// GetStats returns exact persisted counts; location-less records count
// toward TotalModels.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.WithContext(ctx).Model(&ModelRecord{}).Count(&stats.TotalModels).Error; err != nil {
		return Stats{}, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	if err := s.db.WithContext(ctx).Model(&ModelLocation{}).Count(&stats.TotalLocations).Error; err != nil {
		return Stats{}, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	s.metrics.UpdateIndexSize(stats.TotalModels, stats.TotalLocations)
	return stats, nil
}

// GetBinding returns the trusted binding for one widget reference, or nil
// when none is recorded.
func (s *Store) GetBinding(ctx context.Context, workflow, nodeID string, widgetIndex int, rawValue string) (*WidgetBinding, error) {
	var b WidgetBinding
	err := s.db.WithContext(ctx).
		Where("workflow = ? AND node_id = ? AND widget_index = ? AND raw_value = ?",
			workflow, nodeID, widgetIndex, rawValue).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return &b, nil
}

// PutBinding records or replaces the trusted binding for one widget reference.
func (s *Store) PutBinding(ctx context.Context, binding *WidgetBinding) (err error) {
	start := time.Now()
	defer func() { s.record("put_binding", start, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing WidgetBinding
		findErr := tx.Where("workflow = ? AND node_id = ? AND widget_index = ? AND raw_value = ?",
			binding.Workflow, binding.NodeID, binding.WidgetIndex, binding.RawValue).
			First(&existing).Error
		switch {
		case findErr == nil:
			existing.ModelHash = binding.ModelHash
			existing.RelativePath = binding.RelativePath
			return tx.Save(&existing).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			return tx.Create(binding).Error
		default:
			return findErr
		}
	})
	return err
}

// DeleteBinding removes the trusted binding for one widget reference,
// reporting whether a row existed.
func (s *Store) DeleteBinding(ctx context.Context, workflow, nodeID string, widgetIndex int, rawValue string) (removed bool, err error) {
	start := time.Now()
	defer func() { s.record("delete_binding", start, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("workflow = ? AND node_id = ? AND widget_index = ? AND raw_value = ?",
			workflow, nodeID, widgetIndex, rawValue).
			Delete(&WidgetBinding{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		return nil
	})
	return removed, err
}

// escapeLike escapes LIKE wildcards in user-supplied fragments; queries
// using it must carry an ESCAPE '\' clause.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
