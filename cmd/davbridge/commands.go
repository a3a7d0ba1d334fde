package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davbridge/davbridge"
)

// command binds subcommand handlers to a lazily built App so every
// handler shares the config resolution path.
type command struct {
	global *GlobalFlags
}

func (c *command) newApp() (*davbridge.App, davbridge.Config, error) {
	cfg, err := davbridge.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return nil, cfg, fmt.Errorf("error loading config: %w", err)
	}
	app, err := davbridge.New(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return app, cfg, nil
}

func (c *command) Start(f StartFlags) error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	pid, err := app.StartSidecar(context.Background(), f.Port)
	if err != nil {
		return err
	}
	fmt.Printf("sidecar started (pid %d)\n", pid)
	return nil
}

func (c *command) Stop() error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.StopSidecar(context.Background()); err != nil {
		return err
	}
	fmt.Println("sidecar stopped")
	return nil
}

func (c *command) Restart(f StartFlags) error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.RestartSidecar(context.Background(), f.Port); err != nil {
		return err
	}
	fmt.Println("sidecar restarted")
	return nil
}

func (c *command) Status(f StatusFlags) error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	st := app.Status(context.Background())
	if f.JSON {
		printJSON(st)
		return nil
	}
	printStatus(st)
	return nil
}

func (c *command) Mount() error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Mount(context.Background()); err != nil {
		return err
	}
	fmt.Println("mounted")
	return nil
}

func (c *command) Unmount() error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Unmount(context.Background()); err != nil {
		return err
	}
	fmt.Println("unmounted")
	return nil
}

func (c *command) CheckMount() error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	name, mounted, err := app.CheckMount(context.Background())
	if err != nil {
		return err
	}
	if mounted {
		fmt.Printf("mounted as %q\n", name)
	} else {
		fmt.Println("not mounted")
	}
	return nil
}

func (c *command) Login(f LoginFlags) error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Login(context.Background(), f.Email); err != nil {
		return err
	}
	fmt.Println("logged in")
	return nil
}

func (c *command) Logout() error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Logout(context.Background()); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func (c *command) PurgeCache() error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.PurgeCache(context.Background()); err != nil {
		return err
	}
	fmt.Println("cache purged")
	return nil
}

func (c *command) Open(path string) error {
	app, _, err := c.newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	return app.OpenInFiles(context.Background(), path)
}

// Serve runs the supervisor as a daemon with the control API until
// interrupted.
func (c *command) Serve(f ServeFlags) error {
	cfg, err := davbridge.LoadConfig(c.global.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if f.Listen != "" {
		cfg.Listen = f.Listen
	}
	if f.AutoStart {
		cfg.AutoStart = true
	}

	closeLog := davbridge.SetupLogging(cfg.Log)
	defer closeLog()
	if err := davbridge.RegisterMetricsDefault(); err != nil {
		return err
	}

	app, err := davbridge.New(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.AutoStart {
		if pid, err := app.StartSidecar(context.Background(), 0); err != nil {
			fmt.Fprintf(os.Stderr, "auto-start failed: %v\n", err)
		} else {
			fmt.Printf("sidecar started (pid %d)\n", pid)
		}
	}

	srv := app.NewHTTPServer(cfg.Listen, "")
	fmt.Printf("control API listening on %s\n", cfg.Listen)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shctx)
	return nil
}
