package database

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

var (
	upMigrationFile = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)
	missingVersion  = regexp.MustCompile(`no migration found for version \d+`)
)

// migrateLogger adapts ectologger to migrate.Logger.
type migrateLogger struct {
	logger ectologger.Logger
}

func (l migrateLogger) Verbose() bool {
	return false
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	// Version pins the schema version; 0 migrates up to the latest file.
	Version uint
	// Force marks the schema clean at this version before migrating.
	Force int
	// AutoRollback forces a dirty schema back to the version it started at.
	AutoRollback bool
}

// MigrationResult reports what a migration run changed.
type MigrationResult struct {
	From     uint
	To       uint
	Applied  bool
	Duration time.Duration
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

// folder resolves the migration folder relative to the working directory.
func (ms *MigrationService) folder() (string, error) {
	path, err := filepath.Abs(ms.config.MigrationFolderPath)
	if err != nil {
		return "", errors.Wrapf(err, "invalid migration folder %q", ms.config.MigrationFolderPath)
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "migration folder %s does not exist", path)
	}
	return path, nil
}

// MigratePostgres applies the directory migrations against an open connection.
func (ms *MigrationService) MigratePostgres(db DB, databaseName string) error {
	driver, err := postgres.WithInstance(db.SQLX().DB, &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return errors.Wrap(err, "failed to create postgres migration driver")
	}

	_, err = ms.Migrate(databaseName, driver)
	return err
}

func (ms *MigrationService) Migrate(databaseName string, driver database.Driver) (*MigrationResult, error) {
	folder, err := ms.folder()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = migrateLogger{logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			return nil, errors.Wrapf(err, "failed to force schema to version %d", ms.config.Force)
		}
	}

	from, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, errors.Wrap(err, "failed to read schema version")
	}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}
	result := &MigrationResult{From: from, Duration: time.Since(start)}

	switch {
	case err == nil:
		result.Applied = true
	case errors.Is(err, migrate.ErrNoChange):
		err = nil
	default:
		return result, ms.recoverFailed(m, folder, from, err)
	}

	result.To, _, _ = m.Version()
	ms.logger.WithFields(map[string]any{
		"from":     result.From,
		"to":       result.To,
		"duration": result.Duration.String(),
	}).Infof("Database schema at version %d", result.To)
	return result, err
}

// recoverFailed handles a failed run. A schema recorded ahead of the migration
// files is pinned to the newest file and the run succeeds. A dirty schema is
// forced back when AutoRollback is set, and the migration error is returned.
func (ms *MigrationService) recoverFailed(m *migrate.Migrate, folder string, from uint, migrateErr error) error {
	if isMissingVersion(migrateErr) {
		latest, err := latestVersion(folder)
		if err != nil {
			return errors.Wrap(err, "failed to read migration folder")
		}
		ms.logger.Warnf("Schema version %d has no migration file, pinning to %d", from, latest)
		return errors.Wrapf(m.Force(latest), "failed to force schema to version %d", latest)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		ms.logger.WithError(err).Error("Failed to read schema version after migration error")
		return migrateErr
	}

	log := ms.logger.WithError(migrateErr)
	if !dirty || !ms.config.AutoRollback {
		log.Errorf("Migration failed at version %d (dirty=%t)", version, dirty)
		return migrateErr
	}

	target := int(from)
	if target == 0 && version > 0 {
		target = int(version) - 1
	}
	log.Warnf("Migration left version %d dirty, forcing back to %d", version, target)
	if err := m.Force(target); err != nil {
		return errors.Wrapf(err, "failed to force schema to version %d", target)
	}
	return migrateErr
}

func isMissingVersion(err error) bool {
	return err != nil && missingVersion.MatchString(err.Error())
}

// latestVersion returns the highest NNN_name.up.sql version in folder.
func latestVersion(folder string) (int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	latest := -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := upMigrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		v, err := strconv.Atoi(match[1])
		if err != nil {
			return 0, err
		}
		latest = max(latest, v)
	}

	if latest < 0 {
		return 0, errors.Errorf("no migration files in %s", folder)
	}
	return latest, nil
}
