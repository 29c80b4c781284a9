package domain

// TaskKindNotify is the kind of every task produced from calendar events.
const TaskKindNotify = "notify"

// Task is a unit of work handed to the host for dispatch.
// Timestamps are seconds since the Unix epoch and overflow in 2106.
type Task struct {
	Name               string `json:"name"`
	Kind               string `json:"kind"`
	ProjectCode        string `json:"project_code"`
	ExternalID         string `json:"external_id"`
	ExternalModifiedAt uint32 `json:"external_modified_at"`
	StartAt            uint32 `json:"start_at"`
	Options            string `json:"options"`
}

// Metadata describes a connector.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Invocation is the payload of a single Process call.
type Invocation struct {
	TaskID  string         `json:"task_id"`
	Options map[string]any `json:"options"`
}
