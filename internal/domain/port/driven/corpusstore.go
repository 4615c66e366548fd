package driven

import (
	"context"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

// CorpusReader defines the read-only driven port over the credential corpus
// written by the ingestion pipeline. The two List methods are bulk fetches;
// matching is done in memory by the caller.
type CorpusReader interface {
	// ListLoginRecords returns every credential row for the device with a
	// non-empty login.
	ListLoginRecords(ctx context.Context, deviceID string) ([]model.CredentialRecord, error)
	// ListDomainRecords returns every credential row for the device with a
	// non-empty resolved domain.
	ListDomainRecords(ctx context.Context, deviceID string) ([]model.CredentialRecord, error)
	// GetDevice returns the device metadata, or (nil, nil) if none was recorded.
	GetDevice(ctx context.Context, deviceID string) (*model.Device, error)
}
