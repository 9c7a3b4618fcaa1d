// Package cmd provides CLI command implementations for Scry.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/scrylang/scry/internal/config"
	"github.com/scrylang/scry/internal/engine"
	"github.com/scrylang/scry/internal/gitref"
	"github.com/scrylang/scry/internal/graph"
	"github.com/scrylang/scry/internal/query"
	"github.com/scrylang/scry/internal/storage"
	"github.com/scrylang/scry/internal/temporal"
	"github.com/scrylang/scry/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// QueryCmd runs a Scry query against the loaded graph.
type QueryCmd struct {
	Query string `arg:"" help:"Query text, e.g. 'SHOW dependencies OF Foo.bar'"`
	JSON  bool   `short:"j" help:"Emit the result as JSON"`
	Type  string `help:"Restrict reference resolution to one node type" enum:",module,class,function,entity,external" default:""`
}

// Run executes the query command.
func (c *QueryCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	eng, _, _, cleanup, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var opts []engine.ExecOption
	if c.Type != "" {
		opts = append(opts, engine.WithTypeHint(graph.NodeType(c.Type)))
	}

	res, err := eng.Execute(context.Background(), c.Query, opts...)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	renderResult(os.Stdout, res)
	return nil
}

// LoadCmd validates a graph dump and persists it.
type LoadCmd struct {
	Path string `arg:"" help:"Path to a JSON graph dump"`
	Repo string `help:"Git repository to resolve --ref against"`
	Ref  string `help:"Git ref to register the load under (requires --repo)"`
}

// Run executes the load command.
func (c *LoadCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	d, err := storage.ReadDumpFile(c.Path)
	if err != nil {
		return err
	}

	// Validate before persisting anything: a dump that does not build
	// must not replace the stored graph.
	g, err := d.BuildGraph()
	if err != nil {
		return fmt.Errorf("invalid dump: %w", err)
	}
	if _, err := d.BuildLog(); err != nil {
		return fmt.Errorf("invalid change history: %w", err)
	}

	if c.Ref != "" {
		if c.Repo == "" {
			return fmt.Errorf("--ref requires --repo")
		}
		commit, err := gitref.Resolve(c.Repo, c.Ref)
		if err != nil {
			return err
		}
		d.Snapshots = append(d.Snapshots, temporal.Snapshot{
			ID:        commit.Hash,
			CommitRef: commit.Ref,
			Seq:       int64(len(d.Snapshots)) + 1,
			Time:      commit.Time,
		})
		color.Green("Registered snapshot %s (%s)", commit.Hash[:12], commit.Ref)
	}

	store, err := storage.OpenBadger(cfg.DBPath, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Save(context.Background(), d); err != nil {
		return fmt.Errorf("persisting dump: %w", err)
	}

	color.Green("✓ Load complete")
	fmt.Printf("  Nodes:      %d\n", g.NodeCount())
	fmt.Printf("  Edges:      %d\n", g.EdgeCount())
	fmt.Printf("  Snapshots:  %d\n", len(d.Snapshots))
	fmt.Printf("  Changes:    %d\n", len(d.Changes))
	return nil
}

// ServeCmd starts the MCP server (stdio transport).
type ServeCmd struct {
	Watch bool `short:"w" help:"Watch the dump file and republish on change"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	eng, graphs, changes, cleanup, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-osSignalChannel()
		cancel()
	}()

	if c.Watch {
		// Watch logging goes to stderr; stdout carries JSON-RPC only.
		logger := newLogger(cfg.LogLevel)
		go func() {
			err := storage.WatchDump(ctx, cfg.DumpPath, graphs, logger, changes.swap)
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()
	}

	server := mcp.NewServer(eng, graphs, changes)
	err = server.Run(ctx, os.Stdin, os.Stdout)
	if err == context.Canceled {
		return nil
	}
	return err
}

// HistoryCmd is shorthand for a HISTORY query.
type HistoryCmd struct {
	Ref    string `arg:"" help:"Node reference"`
	Limit  int    `short:"n" default:"0" help:"Maximum entries (0 = all)"`
	Oldest bool   `help:"Oldest first"`
}

// Run executes the history command.
func (c *HistoryCmd) Run(cli *CLI) error {
	q := "HISTORY OF " + c.Ref
	if c.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", c.Limit)
	}
	if c.Oldest {
		q += " ASC"
	}
	return (&QueryCmd{Query: q}).Run(cli)
}

// StatusCmd shows what the store currently holds.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	store, err := storage.OpenBadger(cfg.DBPath, true)
	if err != nil {
		return fmt.Errorf("no graph loaded at %s. Run 'scry load' first", cfg.DBPath)
	}
	defer func() { _ = store.Close() }()

	nodes, edges, snapshots, changes, err := store.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Store: %s\n", cfg.DBPath)
	fmt.Printf("  Nodes:      %d\n", nodes)
	fmt.Printf("  Edges:      %d\n", edges)
	fmt.Printf("  Snapshots:  %d\n", snapshots)
	fmt.Printf("  Changes:    %d\n", changes)
	return nil
}

// CleanCmd deletes the persisted store.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		return fmt.Errorf("no store found at %s. Nothing to clean", cfg.DBPath)
	}

	if !c.Force {
		fmt.Printf("Delete store at %s? [y/N] ", cfg.DBPath)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(cfg.DBPath); err != nil {
		return fmt.Errorf("deleting store: %w", err)
	}
	color.Green("Deleted %s", cfg.DBPath)
	return nil
}

// openEngine assembles an engine from the configured sources: the JSON
// dump when present, the badger store otherwise. The returned cleanup
// must be called when done.
func openEngine(cfg config.Config) (*engine.Engine, *graph.VersionedStore, *changeFeed, func(), error) {
	d, cleanup, err := loadDump(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	g, err := d.BuildGraph()
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("building graph: %w", err)
	}
	chlog, err := d.BuildLog()
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("building change log: %w", err)
	}

	graphs := graph.NewVersionedStore(g)
	changes := newChangeFeed(chlog)

	eng := engine.New(graphs, changes, engine.Options{
		Timeout:      time.Duration(cfg.QueryTimeout),
		HistoryOrder: query.HistoryOrder(cfg.HistoryOrder),
		PathDepth:    cfg.PathDepth,
	})
	return eng, graphs, changes, cleanup, nil
}

func loadDump(cfg config.Config) (*storage.Dump, func(), error) {
	if _, err := os.Stat(cfg.DumpPath); err == nil {
		d, err := storage.ReadDumpFile(cfg.DumpPath)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	}

	store, err := storage.OpenBadger(cfg.DBPath, true)
	if err != nil {
		return nil, nil, fmt.Errorf("no graph loaded (looked for %s and %s). Run 'scry load' first",
			cfg.DumpPath, cfg.DBPath)
	}
	d, err := store.Load(context.Background())
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return d, func() { _ = store.Close() }, nil
}

// osSignalChannel returns a channel that receives OS signals for
// graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  string           `short:"c" help:"Path to .scry.yaml config"`

	Query   QueryCmd   `cmd:"" help:"Run a query against the loaded graph"`
	Load    LoadCmd    `cmd:"" help:"Validate and persist a graph dump"`
	Serve   ServeCmd   `cmd:"" help:"Start the MCP server (stdio transport)"`
	History HistoryCmd `cmd:"" help:"Show the change history of a node"`
	Status  StatusCmd  `cmd:"" help:"Show store contents"`
	Clean   CleanCmd   `cmd:"" help:"Delete the persisted store"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected
// command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("scry"),
		kong.Description("Structural query engine for versioned code graphs"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
		kong.Bind(c),
	)
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run()
}
