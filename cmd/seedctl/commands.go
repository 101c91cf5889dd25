package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/overlaynet/seeddb/seed"
	"github.com/overlaynet/seeddb/seeddb"
	"github.com/overlaynet/seeddb/seedsync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli"
)

var (
	errNoUploader = errors.New("no upload target configured, set " +
		"sync.uploaddir or sync.uploadurl")

	tierFlag = cli.StringFlag{
		Name:  "tier",
		Value: seeddb.TierConnected.String(),
		Usage: "The tier to use, one of connected, disconnected " +
			"or potential.",
	}
)

// getContext returns a context that is canceled on interrupt.
func getContext() (context.Context, func()) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

type seedJSON struct {
	Hash       string            `json:"hash"`
	Name       string            `json:"name"`
	Address    string            `json:"address,omitempty"`
	PeerType   string            `json:"peer_type"`
	Attributes map[string]string `json:"attributes"`
}

func newSeedJSON(s *seed.Seed) seedJSON {
	return seedJSON{
		Hash:       s.Hash,
		Name:       s.Name(),
		Address:    s.Address(),
		PeerType:   string(s.PeerType()),
		Attributes: s.Attrs,
	}
}

func seedsJSON(seeds []*seed.Seed) []seedJSON {
	resp := make([]seedJSON, 0, len(seeds))
	for _, s := range seeds {
		resp = append(resp, newSeedJSON(s))
	}

	return resp
}

func printSeed(ctx *cli.Context, s fn.Option[*seed.Seed],
	what string) error {

	if s.IsNone() {
		return fmt.Errorf("seed %v not found", what)
	}

	return printJSON(ctx.App.Writer, newSeedJSON(s.UnsafeFromSome()))
}

func newManager(n *node) (*seedsync.Manager, error) {
	return seedsync.New(seedsync.Config{
		Registry: n.db,
		Timeout:  n.cfg.Sync.Timeout,
		Proxy:    n.cfg.Sync.Proxy,
		Encoding: n.cfg.SeedEncoding(),
	})
}

// readCacheLines reads the lines of a cache file, "-" reads stdin.
func readCacheLines(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines, scanner.Err()
}

var identityCommand = cli.Command{
	Name:  "identity",
	Usage: "Display the identity of the local node.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "encoded",
			Usage: "Print the identity as a cache line.",
		},
	},
	Action: withNode(identity),
}

func identity(ctx *cli.Context, n *node) error {
	local := n.db.LocalSeed()
	if !ctx.Bool("encoded") {
		return printJSON(ctx.App.Writer, newSeedJSON(local))
	}

	line, err := local.EncodeAs(n.cfg.SeedEncoding())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.App.Writer, line)

	return err
}

type tierStats struct {
	Tier   string `json:"tier"`
	Size   int    `json:"size"`
	URLs   int64  `json:"urls"`
	RWIs   int64  `json:"rwis"`
	PPM    int64  `json:"ppm"`
	Resets uint64 `json:"resets"`
}

var statsCommand = cli.Command{
	Name:   "stats",
	Usage:  "Display the size and running sums of every tier.",
	Action: withNode(stats),
}

func stats(ctx *cli.Context, n *node) error {
	resp := make([]tierStats, 0, len(seeddb.Tiers))
	for _, tier := range seeddb.Tiers {
		resp = append(resp, tierStats{
			Tier:   tier.String(),
			Size:   n.db.Size(tier),
			URLs:   n.db.CountURLs(tier),
			RWIs:   n.db.CountRWIs(tier),
			PPM:    n.db.CountPPM(tier),
			Resets: n.db.Resets(tier),
		})
	}

	return printJSON(ctx.App.Writer, resp)
}

var listCommand = cli.Command{
	Name:  "list",
	Usage: "List the seeds of a tier.",
	Description: `
	List the seeds of a tier in key order, or ordered by an attribute if
	--sort is given. In key order the listing can resume after a hash and
	optionally rotate around to the start of the tier.`,
	Flags: []cli.Flag{
		tierFlag,
		cli.StringFlag{
			Name: "sort",
			Usage: "Order by this attribute, one of " +
				strings.Join(seed.SortFields, ", ") + ".",
		},
		cli.BoolFlag{
			Name:  "desc",
			Usage: "List in descending order.",
		},
		cli.StringFlag{
			Name:  "resume",
			Usage: "Start after this hash.",
		},
		cli.BoolFlag{
			Name:  "rotate",
			Usage: "Wrap around to the start of the tier.",
		},
		cli.IntFlag{
			Name:  "limit",
			Usage: "The maximum number of seeds to list.",
		},
	},
	Action: withNode(list),
}

func list(ctx *cli.Context, n *node) error {
	tier, err := seeddb.ParseTier(ctx.String("tier"))
	if err != nil {
		return err
	}

	up := !ctx.Bool("desc")

	var e *seeddb.Enumerator
	if field := ctx.String("sort"); field != "" {
		if ctx.IsSet("resume") || ctx.IsSet("rotate") {
			return errors.New("--resume and --rotate can't be " +
				"combined with --sort")
		}
		e = n.db.SeedsSorted(tier, up, field)
	} else {
		e = n.db.Seeds(
			tier, up, ctx.Bool("rotate"), ctx.String("resume"),
		)
	}

	limit := ctx.Int("limit")
	var seeds []*seed.Seed
	for s := range e.All() {
		seeds = append(seeds, s)
		if limit > 0 && len(seeds) == limit {
			break
		}
	}
	if err := e.Err(); err != nil {
		return err
	}

	return printJSON(ctx.App.Writer, seedsJSON(seeds))
}

var getCommand = cli.Command{
	Name:      "get",
	Usage:     "Display a seed by its hash.",
	ArgsUsage: "hash",
	Description: `
	Display the seed stored under the hash. Without --tier the tiers are
	searched in the order connected, disconnected, potential.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "tier",
			Usage: "Only search this tier.",
		},
	},
	Action: withNode(get),
}

func get(ctx *cli.Context, n *node) error {
	hash := ctx.Args().First()
	if hash == "" {
		return cli.ShowCommandHelp(ctx, "get")
	}

	if !ctx.IsSet("tier") {
		return printSeed(ctx, n.db.Get(hash), hash)
	}

	tier, err := seeddb.ParseTier(ctx.String("tier"))
	if err != nil {
		return err
	}

	return printSeed(ctx, n.db.GetFrom(tier, hash), hash)
}

var lookupCommand = cli.Command{
	Name:      "lookup",
	Usage:     "Display a connected seed by its name.",
	ArgsUsage: "name",
	Action:    withNode(lookup),
}

func lookup(ctx *cli.Context, n *node) error {
	name := ctx.Args().First()
	if name == "" {
		return cli.ShowCommandHelp(ctx, "lookup")
	}

	return printSeed(ctx, n.db.LookupByName(name), name)
}

var resolveCommand = cli.Command{
	Name:      "resolve",
	Usage:     "Resolve a <hash>.yacyh or <name>.yacy host name.",
	ArgsUsage: "host",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "publicip",
			Value: "127.0.0.1",
			Usage: "The public IP of the local node.",
		},
	},
	Action: withNode(resolve),
}

func resolve(ctx *cli.Context, n *node) error {
	host := ctx.Args().First()
	if host == "" {
		return cli.ShowCommandHelp(ctx, "resolve")
	}

	publicIP := ctx.String("publicip")
	if net.ParseIP(publicIP) == nil {
		return fmt.Errorf("invalid public IP %q", publicIP)
	}

	resolver := seeddb.NewResolver(n.db, seeddb.ResolverConfig{
		PublicAddr: func() string { return publicIP },
		Port:       strconv.Itoa(n.cfg.Port),
	})

	addr := resolver.Resolve(host)
	if addr.IsNone() {
		return fmt.Errorf("unable to resolve %v", host)
	}

	return printJSON(ctx.App.Writer, map[string]string{
		"host":    host,
		"address": addr.UnsafeFromSome(),
	})
}

var oldestCommand = cli.Command{
	Name:  "oldest",
	Usage: "List the connected seeds seen the longest time ago.",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "n",
			Value: 10,
			Usage: "The number of seeds to list.",
		},
		cli.BoolFlag{
			Name:  "newest",
			Usage: "List the most recently seen seeds instead.",
		},
	},
	Action: withNode(oldest),
}

func oldest(ctx *cli.Context, n *node) error {
	seeds := n.db.SeedsByAge(ctx.Bool("newest"), ctx.Int("n"))
	if seeds.IsNone() {
		return errors.New("the connected tier was reset while " +
			"ranking, try again")
	}

	return printJSON(ctx.App.Writer, seedsJSON(seeds.UnsafeFromSome()))
}

var importCommand = cli.Command{
	Name:      "import",
	Usage:     "Insert the seeds of a cache file into a tier.",
	ArgsUsage: "file",
	Description: `
	Decode every line of the cache file, "-" for stdin, and insert the
	seed into the tier. Lines that can't be decoded and seeds that aren't
	proper are skipped.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "tier",
			Value: seeddb.TierPotential.String(),
			Usage: "The tier to insert into.",
		},
	},
	Action: withNode(importCache),
}

func importCache(ctx *cli.Context, n *node) error {
	path := ctx.Args().First()
	if path == "" {
		return cli.ShowCommandHelp(ctx, "import")
	}

	tier, err := seeddb.ParseTier(ctx.String("tier"))
	if err != nil {
		return err
	}

	lines, err := readCacheLines(path)
	if err != nil {
		return err
	}

	var imported, skipped int
	for i, line := range lines {
		s, err := seed.Decode(line)
		if err != nil {
			log.Debugf("Skipping line %d: %v", i+1, err)
			skipped++

			continue
		}

		if s.Hash == n.db.LocalSeed().Hash {
			skipped++
			continue
		}

		switch tier {
		case seeddb.TierConnected:
			n.db.InsertConnected(s)
		case seeddb.TierDisconnected:
			n.db.InsertDisconnected(s)
		case seeddb.TierPotential:
			n.db.InsertPotential(s)
		}

		if !n.db.Contains(tier, s.Hash) {
			log.Debugf("Skipping line %d: seed %v not accepted",
				i+1, s.Hash)
			skipped++

			continue
		}
		imported++
	}

	return printJSON(ctx.App.Writer, map[string]int{
		"imported": imported,
		"skipped":  skipped,
		"size":     n.db.Size(tier),
	})
}

var exportCommand = cli.Command{
	Name:      "export",
	Usage:     "Write the connected tier as a cache file.",
	ArgsUsage: "[file]",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "noself",
			Usage: "Leave out the local seed.",
		},
	},
	Action: withNode(export),
}

func export(ctx *cli.Context, n *node) error {
	m, err := newManager(n)
	if err != nil {
		return err
	}

	includeSelf := !ctx.Bool("noself")
	path := ctx.Args().First()
	if path == "" || path == "-" {
		_, err := m.WriteCache(ctx.App.Writer, includeSelf)
		return err
	}

	lines, err := m.StoreCache(path, includeSelf)
	if err != nil {
		return err
	}

	return printJSON(ctx.App.Writer, map[string]interface{}{
		"path":  path,
		"seeds": len(lines),
	})
}

var publishCommand = cli.Command{
	Name:  "publish",
	Usage: "Upload the connected tier and verify the publication.",
	Description: `
	Export the local seed and the connected tier, hand the cache to the
	configured upload target and fetch it back from sync.url to verify it.`,
	Action: withNode(publish),
}

func publish(ctx *cli.Context, n *node) error {
	uploader := n.cfg.Uploader()
	if uploader == nil {
		return errNoUploader
	}

	m, err := newManager(n)
	if err != nil {
		return err
	}

	ctxc, cancel := getContext()
	defer cancel()

	report, err := m.UploadCache(ctxc, uploader, n.cfg.Sync.URL)
	if err != nil {
		return err
	}
	_, err = io.WriteString(ctx.App.Writer, report)

	return err
}

var copyCommand = cli.Command{
	Name:      "copy",
	Usage:     "Store the cache for a web server and verify it.",
	ArgsUsage: "file",
	Action:    withNode(copyCache),
}

func copyCache(ctx *cli.Context, n *node) error {
	path := ctx.Args().First()
	if path == "" {
		return cli.ShowCommandHelp(ctx, "copy")
	}

	m, err := newManager(n)
	if err != nil {
		return err
	}

	ctxc, cancel := getContext()
	defer cancel()

	status, err := m.CopyCache(ctxc, path, n.cfg.Sync.URL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.App.Writer, strings.TrimRight(status, "\r\n"))

	return err
}

var checkCommand = cli.Command{
	Name:      "check",
	Usage:     "Compare a cache file with the one published at a URL.",
	ArgsUsage: "file [url]",
	Description: `
	Fetch the cache published at the URL, sync.url if none is given, and
	compare it line by line with the local cache file.`,
	Action: withNode(check),
}

func check(ctx *cli.Context, n *node) error {
	path := ctx.Args().First()
	if path == "" {
		return cli.ShowCommandHelp(ctx, "check")
	}

	url := n.cfg.Sync.URL
	if ctx.NArg() > 1 {
		url = ctx.Args().Get(1)
	}

	expected, err := readCacheLines(path)
	if err != nil {
		return err
	}

	m, err := newManager(n)
	if err != nil {
		return err
	}

	ctxc, cancel := getContext()
	defer cancel()

	if err := m.CheckCache(ctxc, expected, url); err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.App.Writer, "%d seeds verified at %v\n",
		len(expected), url)

	return err
}

var resetCommand = cli.Command{
	Name:      "reset",
	Usage:     "Drop every seed of a tier.",
	ArgsUsage: "tier",
	Action:    withNode(reset),
}

func reset(ctx *cli.Context, n *node) error {
	name := ctx.Args().First()
	if name == "" {
		return cli.ShowCommandHelp(ctx, "reset")
	}

	tier, err := seeddb.ParseTier(name)
	if err != nil {
		return err
	}
	n.db.ResetTier(tier)

	return printJSON(ctx.App.Writer, tierStats{
		Tier:   tier.String(),
		Size:   n.db.Size(tier),
		Resets: n.db.Resets(tier),
	})
}

var metricsCommand = cli.Command{
	Name:   "metrics",
	Usage:  "Print the registry metrics in the Prometheus text format.",
	Action: withNode(metrics),
}

func metrics(ctx *cli.Context, n *node) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(seeddb.NewCollector(n.db)); err != nil {
		return err
	}

	families, err := registry.Gather()
	if err != nil {
		return err
	}

	for _, mf := range families {
		_, err := expfmt.MetricFamilyToText(ctx.App.Writer, mf)
		if err != nil {
			return err
		}
	}

	return nil
}
