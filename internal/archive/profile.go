package archive

import (
	"encoding/json"
	"time"
)

// AgentProfile is the on-disk mirror of one agent's identity, written to
// agents/<name>/profile.json whenever registration or rebinding changes it —
// the archive's copy of what internal/store's agents table holds, readable
// without a database connection.
type AgentProfile struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Program           string    `json:"program,omitempty"`
	Model             string    `json:"model,omitempty"`
	TaskDescription   string    `json:"task_description,omitempty"`
	InceptionTS       time.Time `json:"inception_ts"`
	LastActiveTS      time.Time `json:"last_active_ts"`
	WindowID          string    `json:"window_id,omitempty"`
	WindowDisplayName string    `json:"window_display_name,omitempty"`
}

// RenderAgentProfile marshals a profile as indented JSON so the mirrored
// file diffs cleanly across commits.
func RenderAgentProfile(p AgentProfile) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
