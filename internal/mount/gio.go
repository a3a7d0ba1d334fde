package mount

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Backend is the OS-level mount API. The default implementation
// dispatches to the gio command-line tool; tests substitute fakes.
type Backend interface {
	Mount(ctx context.Context, uri string) error
	Unmount(ctx context.Context, uri string) error
	List(ctx context.Context) ([]Record, error)
}

// execCommand is stubbed in tests.
var execCommand = exec.CommandContext

// GioCLI drives gvfs through the gio tool. Mounts are anonymous and
// non-interactive, matching the sidecar's no-auth local endpoint.
type GioCLI struct{}

func (GioCLI) Mount(ctx context.Context, uri string) error {
	out, err := execCommand(ctx, "gio", "mount", "--anonymous", uri).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("gio mount %s: %s", uri, msg)
		}
		return fmt.Errorf("gio mount %s: %w", uri, err)
	}
	return nil
}

func (GioCLI) Unmount(ctx context.Context, uri string) error {
	out, err := execCommand(ctx, "gio", "mount", "-u", uri).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("gio mount -u %s: %s", uri, msg)
		}
		return fmt.Errorf("gio mount -u %s: %w", uri, err)
	}
	return nil
}

func (GioCLI) List(ctx context.Context) ([]Record, error) {
	cmd := execCommand(ctx, "gio", "mount", "-li")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("gio mount -li: %s", msg)
		}
		return nil, fmt.Errorf("gio mount -li: %w", err)
	}
	return parseGioMounts(stdout.String()), nil
}

var mountLineRe = regexp.MustCompile(`^Mount\(\d+\): (.*) -> (\S+)$`)

// parseGioMounts extracts mount entries from `gio mount -li` output.
// Each "Mount(N): <name> -> <uri>" header is followed by indented
// attribute lines, among them can_unmount=0|1. Volume/Drive sections
// end the current entry.
func parseGioMounts(out string) []Record {
	var records []Record
	var current *Record
	flush := func() {
		if current != nil {
			records = append(records, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r ")
		if m := mountLineRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Record{Name: m[1], URI: m[2]}
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Volume(") || strings.HasPrefix(trimmed, "Drive(") {
			flush()
			continue
		}
		if current == nil {
			continue
		}
		switch trimmed {
		case "can_unmount=1":
			current.CanUnmount = true
		case "can_unmount=0":
			current.CanUnmount = false
		}
	}
	flush()
	return records
}
