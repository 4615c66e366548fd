// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

// ErrAlertNotFound indicates the requested alert does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// AlertStore defines the driven port for the append-only alert log.
type AlertStore interface {
	// Create inserts a new alert and returns its ID.
	Create(ctx context.Context, a model.Alert) (int64, error)
	// Update rewrites the mutable delivery fields (status, http status, error,
	// retry count) of an existing alert.
	Update(ctx context.Context, a model.Alert) error
	// GetByID returns (nil, nil) if the alert does not exist.
	GetByID(ctx context.Context, id int64) (*model.Alert, error)
	// List returns one page of alerts, newest first, and the total number of
	// alerts matching the filter.
	List(ctx context.Context, filter model.AlertFilter) ([]model.Alert, int, error)
	// Stats returns aggregate counts. "Today" is measured from midnight UTC of now.
	Stats(ctx context.Context, now time.Time) (model.AlertStats, error)
}
