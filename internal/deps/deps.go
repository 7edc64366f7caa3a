// Package deps reports on external binaries the pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"quire/internal/config"
)

// Requirement defines an external dependency quire relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries needed by the configured pipeline. The
// converter is mandatory. A browser binary is optional because the driver
// downloads a pinned Chromium when none is configured.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{{
		Name:        "Converter",
		Command:     cfg.Converter.Binary,
		Description: "Builds EPUB files from Markdown chapters",
	}}
	if browser := strings.TrimSpace(cfg.Session.BrowserBinary); browser != "" {
		reqs = append(reqs, Requirement{
			Name:        "Browser",
			Command:     browser,
			Description: "Renders pages and performs the site login",
			Optional:    true,
		})
	}
	return reqs
}

// MissingRequired returns the names of unavailable mandatory dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Command))
		}
	}
	return missing
}
