// internal/cli/report.go
package cli

import (
	"fmt"
	"io"

	"github.com/arc-language/envboot"
)

// printReport writes one line per requirement and a summary
func printReport(w io.Writer, report *envboot.Report) {
	if report == nil {
		return
	}

	fmt.Fprintf(w, "%s %s (%s)\n", TitleStyle.Render("Environment"), NameStyle.Render(report.Environment), report.Backend)
	for _, res := range report.Results {
		switch res.Status {
		case envboot.StatusInstalled:
			fmt.Fprintf(w, "  %s %s %s\n", SuccessStyle.Render("✓"), NameStyle.Render(res.Requirement.String()), SubtitleStyle.Render(versionNote("installed", res.Version)))
		case envboot.StatusAlreadySatisfied:
			fmt.Fprintf(w, "  %s %s %s\n", SubtitleStyle.Render("•"), NameStyle.Render(res.Requirement.String()), SubtitleStyle.Render(versionNote("already satisfied", res.Version)))
		case envboot.StatusFailed:
			fmt.Fprintf(w, "  %s %s %s\n", ErrorStyle.Render("✗"), NameStyle.Render(res.Requirement.String()), SubtitleStyle.Render("("+res.Requirement.Location()+")"))
			fmt.Fprintf(w, "      %s\n", ErrorStyle.Render(res.Message))
		}
	}

	installed, satisfied, failed := report.Counts()
	summary := fmt.Sprintf("%d installed, %d already satisfied, %d failed", installed, satisfied, failed)
	if failed > 0 {
		fmt.Fprintln(w, ErrorStyle.Render(summary))
		return
	}
	fmt.Fprintln(w, SuccessStyle.Render(summary))
}

func versionNote(status, version string) string {
	if version == "" {
		return status
	}
	return status + " " + version
}

// reportError converts a failed report into exit status 1
func reportError(report *envboot.Report) error {
	if report == nil || !report.Failed() {
		return nil
	}
	_, _, failed := report.Counts()
	return &ExitError{
		Code: ExitFailure,
		Err:  fmt.Errorf("%d of %d requirements failed: %w", failed, len(report.Results), report.Err()),
	}
}
