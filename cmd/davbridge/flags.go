package main

// Flag structs to decouple cobra from logic for testing.

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
}

// StartFlags configures sidecar start and restart.
type StartFlags struct {
	Port int
}

// StatusFlags configures the status subcommand.
type StatusFlags struct {
	JSON bool
}

// LoginFlags configures the login subcommand.
type LoginFlags struct {
	Email string
}

// ServeFlags configures the daemon mode.
type ServeFlags struct {
	Listen    string
	AutoStart bool
}
