package importer

import (
	"fmt"
)

// Kind classifies a per-item failure.
type Kind string

const (
	KindProvider      Kind = "provider"
	KindJurisdiction  Kind = "jurisdiction"
	KindLocality      Kind = "locality"
	KindPersistence   Kind = "persistence"
	KindInconsistency Kind = "recovery_inconsistency"
	KindInProgress    Kind = "in_progress"
	KindNotProcessed  Kind = "not_processed"
)

// ItemError is a failure of one item. It never aborts the batch.
type ItemError struct {
	ExternalID string `json:"external_id"`
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ItemError) Error() string {
	return e.Message
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func itemErrorf(externalID string, kind Kind, err error, format string, args ...any) *ItemError {
	return &ItemError{
		ExternalID: externalID,
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Err:        err,
	}
}
