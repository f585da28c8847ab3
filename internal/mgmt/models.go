package mgmt

import (
	"github.com/p-blackswan/tabpile/internal/tabs"
	"github.com/p-blackswan/tabpile/internal/tracker"
)

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// SettingsResponse is the settings form state.
type SettingsResponse struct {
	MaxAgeMinutes int  `json:"max_age_minutes"`
	Set           bool `json:"set"`
}

// SettingsRequest updates the settings form.
type SettingsRequest struct {
	MaxAgeMinutes int `json:"max_age_minutes"`
}

// ArchiveResponse lists the archive folder.
type ArchiveResponse struct {
	Folder  tracker.Destination `json:"folder"`
	Entries []tabs.Bookmark     `json:"entries"`
}

// AcceptedResponse acknowledges work queued on the event bus.
type AcceptedResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}
