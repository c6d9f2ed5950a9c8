// Package tasks defines the messages exchanged with Kafka.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TaskKey is the message key upload-finalization requests are published under.
const TaskKey = "file_processor.file-upload"

// Outcome statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// FileUploadTask asks the processor to finalize a file already sitting in the tenant's temp area.
type FileUploadTask struct {
	RequestID  string          `json:"requestId"`
	TenantID   string          `json:"tenantId"`
	Name       string          `json:"name"`
	Object     string          `json:"object"`
	Field      string          `json:"field"`
	Size       int64           `json:"size"`
	Type       string          `json:"type"`
	FileName   string          `json:"fileName"`
	UploadedBy string          `json:"uploadedBy"`
	Info       json.RawMessage `json:"info,omitempty"`
}

// Validate checks the input shape before the task reaches the pipeline.
func (t FileUploadTask) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"tenantId", t.TenantID},
		{"name", t.Name},
		{"object", t.Object},
		{"field", t.Field},
		{"type", t.Type},
		{"fileName", t.FileName},
		{"uploadedBy", t.UploadedBy},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	if _, err := uuid.Parse(t.Object); err != nil {
		return fmt.Errorf("object must be a uuid: %w", err)
	}
	if t.Size < 0 {
		return errors.New("size must be a non-negative integer")
	}
	if len(t.Info) > 0 && !json.Valid(t.Info) {
		return errors.New("info must be valid JSON")
	}
	return nil
}

// UploadOutcome is published once per finalization attempt.
type UploadOutcome struct {
	RequestID string `json:"requestId"`
	TenantID  string `json:"tenantId"`
	Status    string `json:"status"`
	UUID      string `json:"uuid,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Incident  bool   `json:"incident,omitempty"`
	Message   string `json:"message,omitempty"`
}
