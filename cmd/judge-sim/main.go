// Command judge-sim drives a judgeboard server through a scoring round and
// keeps a signed-in identity between invocations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/judgeboard/internal/adapters/sessionstore"
	"github.com/okian/judgeboard/internal/client"
	"github.com/okian/judgeboard/internal/domain/identity"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/simulate"
	"github.com/okian/judgeboard/pkg/logger"
)

// Default configuration constants.
const (
	defaultURL         = "http://localhost:9080"
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
	logFilePermission  = 0o600
	sessionDirName     = "judgeboard"
	sessionFileName    = "session.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "judge-sim: "+err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "judge-sim",
		Usage: "seed, score and verify a judgeboard server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: defaultURL, Usage: "base URL of the server", EnvVars: []string{"JUDGEBOARD_URL"}},
			&cli.DurationFlag{Name: "timeout", Value: defaultTimeout, Usage: "HTTP request timeout"},
			&cli.StringFlag{Name: "session", Value: defaultSessionPath(), Usage: "SQLite file holding the signed-in identity", EnvVars: []string{"JUDGEBOARD_SESSION"}},
			&cli.StringFlag{Name: "log", Usage: "also append logs to this file"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			runCommand(),
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
		},
	}
}

// setupLogging configures logging to stderr and, optionally, a file.
func setupLogging(c *cli.Context) error {
	var w io.Writer = c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	if path := c.String("log"); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(w, file)
	}
	if err := logger.InitWithWriter(w, false); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.SetLevelString(c.String("log-level"))
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return sessionFileName
	}
	return filepath.Join(dir, sessionDirName, sessionFileName)
}

func newClient(c *cli.Context) *client.Client {
	return client.New(c.String("url"), client.WithTimeout(c.Duration("timeout")))
}

// openSession loads the stored identity. The returned func closes the slot.
func openSession(c *cli.Context) (*identity.Session, func(), error) {
	path := c.String("session")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("create session directory: %w", err)
		}
	}
	slot, err := sessionstore.Open(c.Context, path)
	if err != nil {
		return nil, nil, err
	}
	closeSlot := func() {
		if err := slot.Close(); err != nil {
			logger.Get().Warn(c.Context, "closing session store", logger.Error(err))
		}
	}
	session := identity.NewSession(slot)
	if err := session.Load(c.Context); err != nil {
		closeSlot()
		return nil, nil, err
	}
	return session, closeSlot, nil
}

func runCommand() *cli.Command {
	defaults := simulate.DefaultConfig()
	return &cli.Command{
		Name:  "run",
		Usage: "seed judges and teams, submit scores and verify the leaderboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "admin-email", Usage: "admin sign-in email", EnvVars: []string{"JUDGEBOARD_ADMIN_EMAIL"}, Required: true},
			&cli.StringFlag{Name: "admin-password", Usage: "admin sign-in password", EnvVars: []string{"JUDGEBOARD_ADMIN_PASSWORD"}, Required: true},
			&cli.IntFlag{Name: "judges", Value: defaults.Judges, Usage: "judges to generate"},
			&cli.IntFlag{Name: "teams", Value: defaults.Teams, Usage: "teams to generate"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * defaultWorkers, Usage: "concurrent submitters"},
			&cli.Float64Flag{Name: "resubmit", Value: defaults.Resubmit, Usage: "share of submissions sent twice"},
			&cli.Float64Flag{Name: "comment-rate", Value: defaults.CommentRate, Usage: "share of submissions with a comment"},
			&cli.Uint64Flag{Name: "seed", Usage: "random seed, 0 picks one"},
			&cli.StringFlag{Name: "tag", Value: time.Now().Format("0102-1504"), Usage: "suffix for generated names"},
			&cli.StringFlag{Name: "fixture", Usage: "YAML roster to use instead of generating one"},
			&cli.StringFlag{Name: "save-fixture", Usage: "write the roster used to this YAML file"},
			&cli.DurationFlag{Name: "test-timeout", Value: defaultTestTimeout, Usage: "deadline for the whole run"},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, c.Duration("test-timeout"))
			defer cancel()

			cfg := simulate.DefaultConfig()
			cfg.AdminEmail = c.String("admin-email")
			cfg.AdminPassword = c.String("admin-password")
			cfg.Judges = c.Int("judges")
			cfg.Teams = c.Int("teams")
			cfg.Workers = c.Int("workers")
			cfg.Resubmit = c.Float64("resubmit")
			cfg.CommentRate = c.Float64("comment-rate")
			cfg.Seed = c.Uint64("seed")
			cfg.Tag = c.String("tag")
			cfg.FixtureFile = c.String("fixture")
			cfg.SaveFixture = c.String("save-fixture")

			stats, err := simulate.Run(ctx, cfg, newClient(c))
			if stats != nil {
				_, _ = fmt.Fprintf(c.App.Writer, "submitted %d (ok %d, partial %d, failed %d), resubmitted %d, leaderboard %d teams in %s\n",
					stats.Submitted, stats.Successful, stats.Partial, stats.Failed, stats.Resubmitted, stats.BoardEntries, stats.Duration.Round(time.Millisecond))
			}
			return err
		},
	}
}

func loginCommand() *cli.Command {
	signIn := func(c *cli.Context, fn func(ctx context.Context, api *client.Client) (identity.Identity, error)) error {
		session, closeSlot, err := openSession(c)
		if err != nil {
			return err
		}
		defer closeSlot()

		id, err := fn(c.Context, newClient(c))
		if err != nil {
			return fmt.Errorf("sign-in failed: %w", err)
		}
		if err := session.SignIn(c.Context, id); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.App.Writer, "signed in as %s %q until %s\n", id.Kind, id.Name, id.ExpiresAt.Local().Format(time.RFC3339))
		return nil
	}
	nameArg := func(c *cli.Context) (string, error) {
		if c.NArg() != 1 {
			return "", fmt.Errorf("%w: expected exactly one name", model.ErrValidation)
		}
		return c.Args().First(), nil
	}

	return &cli.Command{
		Name:  "login",
		Usage: "sign in and remember the identity",
		Subcommands: []*cli.Command{
			{
				Name:  "admin",
				Usage: "sign in through the identity provider",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", EnvVars: []string{"JUDGEBOARD_ADMIN_EMAIL"}, Required: true},
					&cli.StringFlag{Name: "password", EnvVars: []string{"JUDGEBOARD_ADMIN_PASSWORD"}, Required: true},
				},
				Action: func(c *cli.Context) error {
					return signIn(c, func(ctx context.Context, api *client.Client) (identity.Identity, error) {
						return api.SignInAdmin(ctx, c.String("email"), c.String("password"))
					})
				},
			},
			{
				Name:      "judge",
				Usage:     "sign in as a registered judge",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					name, err := nameArg(c)
					if err != nil {
						return err
					}
					return signIn(c, func(ctx context.Context, api *client.Client) (identity.Identity, error) {
						return api.SignInJudge(ctx, name)
					})
				},
			},
			{
				Name:      "team",
				Usage:     "sign in as a registered team",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					name, err := nameArg(c)
					if err != nil {
						return err
					}
					return signIn(c, func(ctx context.Context, api *client.Client) (identity.Identity, error) {
						return api.SignInTeam(ctx, name)
					})
				},
			},
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the server session and forget the identity",
		Action: func(c *cli.Context) error {
			session, closeSlot, err := openSession(c)
			if err != nil {
				return err
			}
			defer closeSlot()

			id, ok := session.Current()
			if !ok {
				_, _ = fmt.Fprintln(c.App.Writer, "not signed in")
				return nil
			}
			if err := newClient(c).As(id).SignOut(c.Context); err != nil {
				logger.Get().Warn(c.Context, "server sign-out failed; clearing local session", logger.Error(err))
			}
			if err := session.SignOut(c.Context); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.App.Writer, "signed out %q\n", id.Name)
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the remembered identity and check it with the server",
		Action: func(c *cli.Context) error {
			session, closeSlot, err := openSession(c)
			if err != nil {
				return err
			}
			defer closeSlot()

			id, ok := session.Current()
			if !ok {
				_, _ = fmt.Fprintln(c.App.Writer, "not signed in")
				return nil
			}
			if _, err := newClient(c).As(id).Me(c.Context); err != nil {
				if !errors.Is(err, model.ErrUnauthorized) {
					return fmt.Errorf("check session: %w", err)
				}
				if _, err := session.Invalidate(c.Context, id.Subject); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(c.App.Writer, "session ended; not signed in")
				return nil
			}
			_, _ = fmt.Fprintf(c.App.Writer, "%s %q (%s) until %s\n", id.Kind, id.Name, id.Subject, id.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}
