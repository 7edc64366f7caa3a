package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	dataDir    string
	configPath string
}

type testConfig struct {
	siteURL      string
	withSecrets  bool
	mailHost     string
	mailPort     int
	converter    string
	destinations []string
}

func setupCLITestEnv(t *testing.T, tc testConfig) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	for _, key := range []string{
		"QUIRE_SITE_USER", "LIBER_USER",
		"QUIRE_SITE_PASSWORD", "LIBER_PASS",
		"QUIRE_MAIL_SENDER", "MAIL",
		"QUIRE_MAIL_PASSWORD", "SEC",
		"QUIRE_DESTINATIONS", "KINDLE_EMAILS",
	} {
		t.Setenv(key, "")
	}

	env := &cliTestEnv{
		baseDir:    base,
		dataDir:    filepath.Join(base, "data"),
		configPath: filepath.Join(base, "quire.toml"),
	}
	writeTestConfig(t, env.configPath, env.dataDir, tc)
	return env
}

func writeTestConfig(t *testing.T, path, dataDir string, tc testConfig) {
	t.Helper()

	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndata_dir = %q\n\n", dataDir)
	b.WriteString("[site]\n")
	if tc.siteURL != "" {
		fmt.Fprintf(&b, "base_url = %q\n", tc.siteURL)
	}
	if tc.withSecrets {
		b.WriteString("username = \"reader\"\npassword = \"hunter2\"\n")
	}
	b.WriteString("\n[converter]\n")
	if tc.converter != "" {
		fmt.Fprintf(&b, "binary = %q\n", tc.converter)
	}
	b.WriteString("\n[mail]\n")
	if tc.withSecrets {
		b.WriteString("sender = \"sender@example.com\"\npassword = \"app-password\"\n")
		dests := tc.destinations
		if len(dests) == 0 {
			dests = []string{"a@kindle.com", "b@kindle.com"}
		}
		quoted := make([]string, 0, len(dests))
		for _, d := range dests {
			quoted = append(quoted, fmt.Sprintf("%q", d))
		}
		fmt.Fprintf(&b, "destinations = [%s]\n", strings.Join(quoted, ", "))
	}
	if tc.mailHost != "" {
		fmt.Fprintf(&b, "host = %q\nport = %d\n", tc.mailHost, tc.mailPort)
	}
	b.WriteString("\n[logging]\nlevel = \"error\"\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
