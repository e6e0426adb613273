package repositories

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
)

var (
	// ErrDuplicateExternalID is returned when an entity with the same external id already exists.
	ErrDuplicateExternalID = errors.New("external id already exists")
	// ErrSlugTaken is returned when the slug unique constraint rejects an insert.
	ErrSlugTaken = errors.New("slug already taken")
)

// DefaultExistenceChunkSize bounds the IN list of bulk existence checks.
const DefaultExistenceChunkSize = 200

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// BadRequest returns a 400 HTTP error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

func internalError(message string) error {
	return httperror.NewHTTPError(http.StatusInternalServerError, message)
}

// IsNotFound reports whether err is a 404 returned by a repository.
func IsNotFound(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

// Repository provides common database operations
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}

func chunk(values []string, size int) [][]string {
	if size <= 0 {
		size = DefaultExistenceChunkSize
	}
	return ectolinq.Chunk(values, size)
}
