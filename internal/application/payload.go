package application

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/leakwatch/internal/domain/model"
)

// BuildPayload assembles the alert document for one matched watchlist. device
// may be nil when the ingestion pipeline recorded no metadata; its fields are
// then sent as empty strings.
func BuildPayload(wl model.Watchlist, res model.MatchResult, deviceID string, device *model.Device, uploadBatch string, now time.Time) model.AlertPayload {
	dev := model.DevicePayload{ID: deviceID}
	if device != nil {
		dev.MachineName = device.MachineName
		dev.IP = device.IP
		dev.Username = device.Username
		dev.HWID = device.HWID
		dev.Country = device.Country
		dev.OS = device.OS
		dev.LogDate = device.LogDate
	}

	cred := res.CredentialMatches
	if cred == nil {
		cred = []model.MatchedItem{}
	}
	urls := res.URLMatches
	if urls == nil {
		urls = []model.MatchedItem{}
	}

	return model.AlertPayload{
		Event:             model.AlertEvent,
		WatchlistID:       wl.ID,
		WatchlistName:     wl.Name,
		MatchedDomains:    strings.Join(res.MatchedDomains, ", "),
		Device:            dev,
		CredentialMatches: cred,
		URLMatches:        urls,
		Summary: model.AlertSummary{
			CredentialMatchCount: len(cred),
			URLMatchCount:        len(urls),
			TotalMatches:         len(cred) + len(urls),
			UploadBatch:          uploadBatch,
			DeviceID:             deviceID,
		},
		TriggeredAt: now.UTC().Format(time.RFC3339),
	}
}

// MarshalPayload serializes a payload. The returned bytes are what gets
// signed, sent and stored.
func MarshalPayload(p model.AlertPayload) ([]byte, error) {
	return jsonBody(p)
}

func jsonBody(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return body, nil
}
