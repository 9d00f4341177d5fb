package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/antoniostano/bolota/internal/agent"
	"github.com/antoniostano/bolota/internal/app"
	"github.com/antoniostano/bolota/internal/observability"
	"github.com/antoniostano/bolota/internal/rpcapi"
)

// ChatCmd talks to the assistant from the terminal, either in-process or
// against a running server through the Connect procedure.
type ChatCmd struct {
	Remote  string `short:"r" long:"remote" description:"server base URL; runs in-process when empty"`
	Session string `short:"s" long:"session" description:"session id (generated when empty)"`
	Query   string `short:"q" long:"query" description:"send one message and exit"`
	CSV     string `long:"csv" description:"medication CSV catalogue for in-process chat (overrides INVENTORY_CSV_PATH)"`

	root *Options
	in   io.Reader
	out  io.Writer
}

// turnFunc runs one turn and reports the session id the reply belongs to.
type turnFunc func(ctx context.Context, sessionID, message string) (string, agent.Result, error)

func (c *ChatCmd) Execute(_ []string) error {
	cfg, logger, err := c.root.load()
	if err != nil {
		return err
	}
	overrideString(&cfg.InventoryCSVPath, c.CSV)
	cfg.InventoryWatch = false

	var turn turnFunc
	if remote := strings.TrimSpace(c.Remote); remote != "" {
		client := rpcapi.NewClient(&http.Client{Timeout: 2 * cfg.LookupTimeout}, remote)
		turn = func(ctx context.Context, sessionID, message string) (string, agent.Result, error) {
			r, err := client.Handle(ctx, sessionID, message)
			if err != nil {
				return sessionID, agent.Result{}, err
			}
			return r.SessionID, agent.Result{Reply: r.Reply, Intent: r.Intent}, nil
		}
	} else {
		built, err := app.Build(context.Background(), cfg, app.Options{
			Logger:  logger,
			Metrics: observability.NewMetricsWith(cfg.MetricsNamespace, prometheus.NewRegistry()),
		})
		if err != nil {
			return err
		}
		defer built.Cleanup()
		turn = func(ctx context.Context, sessionID, message string) (string, agent.Result, error) {
			return sessionID, built.Agent.Handle(ctx, sessionID, message), nil
		}
	}

	sessionID := strings.TrimSpace(c.Session)
	if sessionID == "" && strings.TrimSpace(c.Remote) == "" {
		sessionID = uuid.NewString()
	}
	if c.in == nil {
		c.in = os.Stdin
	}
	if c.out == nil {
		c.out = os.Stdout
	}

	if q := strings.TrimSpace(c.Query); q != "" {
		_, err := c.say(context.Background(), turn, sessionID, q)
		return err
	}
	return c.loop(context.Background(), turn, sessionID)
}

// loop reads one message per line until EOF or "sair".
func (c *ChatCmd) loop(ctx context.Context, turn turnFunc, sessionID string) error {
	scanner := bufio.NewScanner(c.in)
	fmt.Fprint(c.out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.EqualFold(line, "sair"):
			return nil
		default:
			next, err := c.say(ctx, turn, sessionID, line)
			if err != nil {
				fmt.Fprintf(c.out, "erro: %v\n", err)
			} else {
				sessionID = next
			}
		}
		fmt.Fprint(c.out, "> ")
	}
	return scanner.Err()
}

func (c *ChatCmd) say(ctx context.Context, turn turnFunc, sessionID, message string) (string, error) {
	next, res, err := turn(ctx, sessionID, message)
	if err != nil {
		return sessionID, err
	}
	fmt.Fprintf(c.out, "%s [%s]: %s\n", agent.Name, res.Intent, res.Reply)
	return next, nil
}
