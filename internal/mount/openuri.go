package mount

import (
	"context"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/davbridge/davbridge/internal/cmderr"
)

// OpenURI shows the given location in the desktop's file manager.
// Local paths become file:// URIs. The org.freedesktop.FileManager1
// D-Bus interface is preferred; gio open is the fallback for desktops
// not exposing it.
func OpenURI(ctx context.Context, uri string) error {
	if strings.HasPrefix(uri, "/") && !strings.HasPrefix(uri, "file://") {
		uri = "file://" + uri
	}

	err := showViaFileManager(ctx, uri)
	if err == nil {
		return nil
	}
	slog.Debug("FileManager1 unavailable, falling back to gio open", "error", err)

	out, err := execCommand(ctx, "gio", "open", uri).CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			detail = err.Error()
		}
		return cmderr.New(cmderr.CodeGioError, detail)
	}
	return nil
}

func showViaFileManager(ctx context.Context, uri string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return err
	}
	obj := conn.Object("org.freedesktop.FileManager1", "/org/freedesktop/FileManager1")
	call := obj.CallWithContext(ctx, "org.freedesktop.FileManager1.ShowFolders", 0, []string{uri}, "")
	return call.Err
}
