package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/overlaynet/seeddb/build"
	"github.com/overlaynet/seeddb/seedcfg"
	"github.com/overlaynet/seeddb/seeddb"
	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[seedctl] %v\n", err)
	os.Exit(1)
}

func printJSON(w io.Writer, resp interface{}) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "    "); err != nil {
		return err
	}
	out.WriteString("\n")
	_, err = out.WriteTo(w)

	return err
}

// loadConfig translates the global flags into command line options for the
// config loader, so that they take precedence over the config file.
func loadConfig(ctx *cli.Context) (*seedcfg.Config, error) {
	var args []string
	for _, name := range []string{
		"configfile", "seeddbdir", "datadir", "debuglevel",
	} {
		if ctx.GlobalIsSet(name) {
			args = append(args, "--"+name+"="+ctx.GlobalString(name))
		}
	}

	return seedcfg.LoadConfig(args)
}

// node bundles the registry of the local node with the configuration and
// log rotator it was opened with.
type node struct {
	cfg     *seedcfg.Config
	db      *seeddb.DB
	rotator *build.RotatingLogWriter
}

// Close closes the registry and flushes the log file.
func (n *node) Close() error {
	err := n.db.Close()
	if closeErr := n.rotator.Close(); err == nil {
		err = closeErr
	}

	return err
}

// openNode loads the configuration, sets up logging and opens the registry.
func openNode(ctx *cli.Context) (*node, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	rotator := build.NewRotatingLogWriter()
	if !cfg.LogConfig.File.Disable {
		err := rotator.InitLogRotator(cfg.LogConfig.File, cfg.LogFile())
		if err != nil {
			return nil, err
		}
	}

	root := build.NewSubLoggerManager(
		build.NewDefaultLogHandlers(cfg.LogConfig, rotator)...,
	)
	SetupLoggers(root, func() {})
	if err := build.ParseAndSetDebugLevels(cfg.DebugLevel, root); err != nil {
		_ = rotator.Close()
		return nil, err
	}
	log.Debugf("Opening %v node in %v", build.Deployment, cfg.SeedDBDir)

	local, err := seeddb.LoadIdentity(cfg.Identity(), time.Now())
	if err != nil {
		_ = rotator.Close()
		return nil, err
	}

	db, err := seeddb.New(seeddb.Config{
		LocalSeed: local,
		OpenTier: seeddb.BoltTierOpener(
			cfg.DataDir, cfg.DB.Timeout, cfg.DB.NoFreelistSync,
		),
		NameCacheSize: cfg.NameCacheSize,
	})
	if err != nil {
		_ = rotator.Close()
		return nil, err
	}

	return &node{cfg: cfg, db: db, rotator: rotator}, nil
}

// withNode wraps a command action that needs an open registry.
func withNode(action func(*cli.Context, *node) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		n, err := openNode(ctx)
		if err != nil {
			return err
		}

		err = action(ctx, n)
		if closeErr := n.Close(); err == nil {
			err = closeErr
		}

		return err
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "seedctl"
	app.Usage = "inspect and publish the peer registry of an overlay node"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:      "configfile, C",
			Value:     seedcfg.DefaultConfigFile,
			Usage:     "The path to the config file.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:      "seeddbdir",
			Value:     seedcfg.DefaultSeedDBDir,
			Usage:     "The base directory of the node.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:      "datadir, b",
			Usage:     "The directory holding the seed tiers.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name: "debuglevel, d",
			Usage: "Logging level for all subsystems, or " +
				"<global-level>,<subsystem>=<level>,...",
		},
	}
	app.Commands = []cli.Command{
		identityCommand,
		statsCommand,
		listCommand,
		getCommand,
		lookupCommand,
		resolveCommand,
		oldestCommand,
		importCommand,
		exportCommand,
		publishCommand,
		copyCommand,
		checkCommand,
		resetCommand,
		metricsCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
