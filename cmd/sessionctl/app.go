package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dmitrymomot/sessionguard/core/analytics"
	"github.com/dmitrymomot/sessionguard/core/retention"
	"github.com/dmitrymomot/sessionguard/core/session"
	"github.com/dmitrymomot/sessionguard/pkg/jwt"
)

// opener connects to the session store and returns a release func.
type opener func(ctx context.Context) (session.Store, func(), error)

func newApp(open opener) *cli.App {
	return &cli.App{
		Name:  "sessionctl",
		Usage: "inspect and maintain user sessions",
		Commands: []*cli.Command{
			showCommand(open),
			terminateCommand(open),
			purgeCommand(open),
			analyticsCommand(open),
			tokenCommand(),
		},
	}
}

func showCommand(open opener) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "print the details view of a session",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := sessionArg(c)
			if err != nil {
				return err
			}
			return withStore(c, open, func(store session.Store) error {
				view, err := session.NewManager(store).Details(c.Context, id)
				if errors.Is(err, session.ErrNotFound) {
					return cli.Exit(session.ReasonNotFound, 1)
				}
				if err != nil {
					return err
				}
				return printJSON(c, view)
			})
		},
	}
}

func terminateCommand(open opener) *cli.Command {
	return &cli.Command{
		Name:      "terminate",
		Usage:     "terminate an active session",
		ArgsUsage: "<session-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "reason",
				Usage: "logout reason recorded on the session",
				Value: session.ReasonManualCleanup,
			},
		},
		Action: func(c *cli.Context) error {
			id, err := sessionArg(c)
			if err != nil {
				return err
			}
			return withStore(c, open, func(store session.Store) error {
				mgr := session.NewManager(store)
				ok, err := mgr.Terminate(c.Context, id, c.String("reason"))
				if err != nil {
					return err
				}
				if !ok {
					return cli.Exit(session.ReasonNotFound, 1)
				}
				sess, err := mgr.Get(c.Context, id)
				if err != nil {
					return err
				}
				return printJSON(c, map[string]any{
					"sessionId":    sess.ID,
					"status":       sess.Status,
					"logoutReason": sess.LogoutReason,
				})
			})
		},
	}
}

func purgeCommand(open opener) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "expire idle sessions and delete old terminated ones now",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "retention-hours",
				Usage:   "idle window and purge age in hours",
				EnvVars: []string{"SESSION_RETENTION_HOURS"},
				Value:   24,
			},
		},
		Action: func(c *cli.Context) error {
			hours := c.Int("retention-hours")
			if hours <= 0 {
				return cli.Exit("retention-hours must be positive", 2)
			}
			return withStore(c, open, func(store session.Store) error {
				sweeper, err := retention.New(store, retention.WithRetention(time.Duration(hours)*time.Hour))
				if err != nil {
					return err
				}
				res, err := sweeper.Purge(c.Context)
				if perr := printJSON(c, res); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func analyticsCommand(open opener) *cli.Command {
	return &cli.Command{
		Name:  "analytics",
		Usage: "summarize sessions created in the last N hours",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "hours",
				Usage: "timeframe in hours",
				Value: 24,
			},
		},
		Action: func(c *cli.Context) error {
			return withStore(c, open, func(store session.Store) error {
				summary, err := analytics.New(store).Summarize(c.Context, c.Int("hours"))
				if errors.Is(err, analytics.ErrInvalidTimeframe) {
					return cli.Exit("hours must be positive", 2)
				}
				if err != nil {
					return err
				}
				return printJSON(c, summary)
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "mint a bearer token for the sessiond operator API",
		ArgsUsage: "<operator>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "HS256 signing key shared with sessiond",
				EnvVars: []string{"OPERATOR_JWT_SECRET"},
			},
			&cli.StringFlag{
				Name:    "issuer",
				EnvVars: []string{"OPERATOR_JWT_ISSUER"},
				Value:   "sessionguard",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime",
				Value: time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage), 2)
			}
			if c.Duration("ttl") <= 0 {
				return cli.Exit("ttl must be positive", 2)
			}
			tokens, err := jwt.NewFromString(c.String("secret"), jwt.WithIssuer(c.String("issuer")))
			if errors.Is(err, jwt.ErrInvalidSigningKey) {
				return cli.Exit(err.Error(), 2)
			}
			if err != nil {
				return err
			}
			token, err := tokens.Issue(c.Args().First(), c.Duration("ttl"))
			if err != nil {
				return err
			}
			return printJSON(c, map[string]any{
				"token":     token,
				"expiresAt": time.Now().Add(c.Duration("ttl")).UTC().Truncate(time.Second),
			})
		},
	}
}

func sessionArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return c.Args().First(), nil
}

func withStore(c *cli.Context, open opener, fn func(session.Store) error) error {
	store, release, err := open(c.Context)
	if err != nil {
		return err
	}
	defer release()
	return fn(store)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
