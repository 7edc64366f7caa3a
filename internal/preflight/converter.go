package preflight

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ConverterProbe reports the installed converter and its version banner.
type ConverterProbe struct {
	Found   bool
	Binary  string
	Path    string
	Version string
}

// ProbeConverter runs "<binary> --version" and keeps the first line.
func ProbeConverter(binary string) ConverterProbe {
	binary = strings.TrimSpace(binary)
	probe := ConverterProbe{Binary: binary}
	if binary == "" {
		return probe
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return probe
	}
	probe.Found = true
	probe.Path = path

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return probe
	}
	if line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n"); line != "" {
		probe.Version = strings.TrimSpace(line)
	}
	return probe
}

// Detail renders a display-friendly summary for doctor output.
func (p ConverterProbe) Detail() string {
	if !p.Found {
		return fmt.Sprintf("%s not found", p.Binary)
	}
	if p.Version == "" {
		return p.Path
	}
	return fmt.Sprintf("%s (%s)", p.Version, p.Path)
}
