package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slok/sessionbox/internal/model"
	"github.com/slok/sessionbox/internal/service"
)

// TablePrinter prints session information in a table format.
type TablePrinter struct {
	writer    io.Writer
	errWriter io.Writer
}

// NewTablePrinter creates a new table printer. Command stderr is printed on errW.
func NewTablePrinter(w, errW io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, errWriter: errW}
}

// PrintList prints sessions in a table format.
func (t *TablePrinter) PrintList(sessions []service.SessionInfo) error {
	if len(sessions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tCREATED\tEXPIRES")

	// Print rows
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, TimeAgo(s.CreatedAt), TimeLeft(s.ExpiresAt))
	}

	return nil
}

// PrintStatus prints detailed session status.
func (t *TablePrinter) PrintStatus(session service.SessionInfo) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", session.ID)
	fmt.Fprintf(t.writer, "Directory:  %s\n", session.Directory)
	fmt.Fprintf(t.writer, "Packages:   %s\n", session.PackageLibDirectory)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(session.CreatedAt))
	fmt.Fprintf(t.writer, "Expires:    %s\n", FormatTimestamp(session.ExpiresAt))
	fmt.Fprintf(t.writer, "Remaining:  %s\n", (time.Duration(session.RemainingMS) * time.Millisecond).String())
	fmt.Fprintf(t.writer, "Running:    %d\n", session.RunningCommands)
	fmt.Fprintln(t.writer, "Policy:")

	return t.printPolicy(session.Policy, "  ")
}

// PrintResult prints the command output as is.
func (t *TablePrinter) PrintResult(result model.CommandResult) error {
	fmt.Fprint(t.writer, result.Stdout)
	fmt.Fprint(t.errWriter, result.Stderr)
	if result.Error != "" {
		fmt.Fprintln(t.errWriter, result.Error)
	}
	return nil
}

// PrintPolicy prints a sandbox policy.
func (t *TablePrinter) PrintPolicy(policy model.SandboxPolicy) error {
	return t.printPolicy(policy, "")
}

func (t *TablePrinter) printPolicy(p model.SandboxPolicy, indent string) error {
	fmt.Fprintf(t.writer, "%sAllowed domains:   %s\n", indent, joinOrNone(p.Network.AllowedDomains))
	fmt.Fprintf(t.writer, "%sDenied domains:    %s\n", indent, joinOrNone(p.Network.DeniedDomains))
	fmt.Fprintf(t.writer, "%sLocal binding:     %t\n", indent, p.Network.AllowLocalBinding)
	fmt.Fprintf(t.writer, "%sAllow write:       %s\n", indent, joinOrNone(p.Filesystem.AllowWrite))
	fmt.Fprintf(t.writer, "%sDeny write:        %s\n", indent, joinOrNone(p.Filesystem.DenyWrite))
	fmt.Fprintf(t.writer, "%sDeny read:         %s\n", indent, joinOrNone(p.Filesystem.DenyRead))
	fmt.Fprintf(t.writer, "%sWeaker nested:     %t\n", indent, p.EnableWeakerNestedSandbox)
	return nil
}

// PrintChecks prints preflight check results with a summary.
func (t *TablePrinter) PrintChecks(results []model.CheckResult) error {
	for _, r := range results {
		fmt.Fprintf(t.writer, "  %s %-20s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}

	fmt.Fprintln(t.writer)
	sum := model.SummarizeChecks(results)
	if sum.Clean() {
		fmt.Fprintln(t.writer, "All checks passed!")
		return nil
	}

	var summary []string
	if sum.Errors > 0 {
		summary = append(summary, fmt.Sprintf("%d error(s)", sum.Errors))
	}
	if sum.Warnings > 0 {
		summary = append(summary, fmt.Sprintf("%d warning(s)", sum.Warnings))
	}
	fmt.Fprintln(t.writer, strings.Join(summary, ", "))

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "[ok]"
	case model.CheckStatusWarning:
		return "[!!]"
	default:
		return "[xx]"
	}
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
