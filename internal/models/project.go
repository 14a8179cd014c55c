package models

import (
	"time"
)

// Project is one monitored pipeline. It acts as a denormalized
// "latest status" cache, refreshed whenever a build for the project
// arrives. Updates are last-write-wins: a delayed webhook retry for an
// older build can overwrite a newer status (documented limitation).
type Project struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"` // unique key
	DisplayName string      `json:"display_name,omitempty"`
	RepoURL     string      `json:"repo_url,omitempty"`
	LastBuildID string      `json:"last_build_id,omitempty"`
	LastStatus  BuildStatus `json:"last_status,omitempty"`
	LastBuildAt time.Time   `json:"last_build_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
