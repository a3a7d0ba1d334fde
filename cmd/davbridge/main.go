package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and its subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	cmd := &command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(cmd),
		createStartCommand(cmd),
		createStopCommand(cmd),
		createRestartCommand(cmd),
		createStatusCommand(cmd),
		createMountCommand(cmd),
		createUnmountCommand(cmd),
		createCheckMountCommand(cmd),
		createLoginCommand(cmd),
		createLogoutCommand(cmd),
		createPurgeCacheCommand(cmd),
		createOpenCommand(cmd),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "davbridge",
		Short: "Supervisor for the WebDAV bridge sidecar",
		Long: `Davbridge supervises the webdav-bridge worker process: it starts and
stops the worker, reconciles its status, and mounts the WebDAV endpoint
it serves into the local filesystem.

Examples:
  davbridge start --port=12345
  davbridge status --json
  davbridge mount
  davbridge serve                   # Run the control API daemon`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createServeCommand(c *command) *cobra.Command {
	serveFlags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor daemon with the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(*serveFlags)
		},
	}
	cmd.Flags().StringVar(&serveFlags.Listen, "listen", "", "control API bind address (overrides config)")
	cmd.Flags().BoolVar(&serveFlags.AutoStart, "auto-start", false, "start the sidecar immediately")
	return cmd
}

func createStartCommand(c *command) *cobra.Command {
	startFlags := &StartFlags{}
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the sidecar worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(*startFlags)
		},
	}
	cmd.Flags().IntVar(&startFlags.Port, "port", 0, "WebDAV port (defaults to configured port)")
	return cmd
}

func createStopCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the sidecar worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop()
		},
	}
}

func createRestartCommand(c *command) *cobra.Command {
	startFlags := &StartFlags{}
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the sidecar worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart(*startFlags)
		},
	}
	cmd.Flags().IntVar(&startFlags.Port, "port", 0, "WebDAV port (defaults to configured port)")
	return cmd
}

func createStatusCommand(c *command) *cobra.Command {
	statusFlags := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sidecar's reconciled status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*statusFlags)
		},
	}
	cmd.Flags().BoolVar(&statusFlags.JSON, "json", false, "print raw JSON")
	return cmd
}

func createMountCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "mount",
		Short: "Mount the WebDAV endpoint into the local filesystem",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Mount()
		},
	}
}

func createUnmountCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "unmount",
		Short: "Unmount the WebDAV endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Unmount()
		},
	}
}

func createCheckMountCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "check-mount",
		Short: "Report whether the WebDAV endpoint is mounted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.CheckMount()
		},
	}
}

func createLoginCommand(c *command) *cobra.Command {
	loginFlags := &LoginFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate the sidecar with the remote service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Login(*loginFlags)
		},
	}
	cmd.Flags().StringVar(&loginFlags.Email, "email", "", "account email (required)")
	if err := cmd.MarkFlagRequired("email"); err != nil {
		panic(err)
	}
	return cmd
}

func createLogoutCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Stop the sidecar and clear its credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logout()
		},
	}
}

func createPurgeCacheCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-cache",
		Short: "Clear the sidecar's local content cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.PurgeCache()
		},
	}
}

func createOpenCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "open [path]",
		Short: "Reveal a path in the desktop file manager",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return c.Open(path)
		},
	}
}
