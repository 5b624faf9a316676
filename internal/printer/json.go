package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/service"
)

// JSONPrinter prints session information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a session in the list output (subset of fields).
type listItem struct {
	ID        string    `json:"id"`
	Directory string    `json:"directory"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// checkOutput represents a preflight check.
type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintList prints sessions in JSON format with a subset of fields.
func (j *JSONPrinter) PrintList(sessions []service.SessionInfo) error {
	items := make([]listItem, len(sessions))
	for i, s := range sessions {
		items[i] = listItem{
			ID:        s.ID,
			Directory: s.Directory,
			CreatedAt: s.CreatedAt.UTC(),
			ExpiresAt: s.ExpiresAt.UTC(),
		}
	}

	return j.encode(items)
}

// PrintStatus prints detailed session status in JSON format.
func (j *JSONPrinter) PrintStatus(session service.SessionInfo) error {
	return j.encode(session)
}

// PrintResult prints a command result in JSON format.
func (j *JSONPrinter) PrintResult(result model.CommandResult) error {
	return j.encode(result)
}

// PrintPolicy prints a sandbox policy in JSON format.
func (j *JSONPrinter) PrintPolicy(policy model.SandboxPolicy) error {
	return j.encode(policy)
}

// PrintChecks prints preflight check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	items := make([]checkOutput, len(results))
	for i, r := range results {
		items[i] = checkOutput{ID: r.ID, Status: string(r.Status), Message: r.Message}
	}
	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
