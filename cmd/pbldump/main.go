// The pbldump CLI tool prints the structure and contents of PowerBuilder
// library (*.pbl) files: the header, the object index, the raw blocks, and
// the source text of stored objects. It can also compare two libraries.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	pbl "github.com/ahrav/go-pbl"
)

var versionGitCommit string
var versionBuildTime string

// defaultSkipExt is the set of compiled object suffixes that are not
// printable as text.
var defaultSkipExt = []string{".apl", ".pra", ".dwo", ".fun", ".men", ".str", ".udo", ".win"}

func openLibrary(c *cli.Context, path string) (*pbl.Library, error) {
	lib, err := pbl.Open(path,
		pbl.WithLogger(logrus.StandardLogger()),
		pbl.WithWorkers(c.Int("workers")),
		pbl.WithCacheSize(c.Int("cache-size")),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "open library %s", path)
	}
	if err := lib.Index().Err(); err != nil {
		logrus.WithError(err).Warn("library index is damaged, listing is incomplete")
	}
	return lib, nil
}

func setupLogLevel(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return errors.Wrap(err, "parse log level")
	}
	logrus.SetLevel(level)
	return nil
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return fmt.Errorf("usage: %s %s", c.Command.FullName(), usage)
	}
	return nil
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	version := fmt.Sprintf("%s.%s", versionGitCommit, versionBuildTime)

	app := &cli.App{
		Name:    "pbldump",
		Usage:   "PowerBuilder library inspector",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"LOG_LEVEL"}},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU(), Usage: "Number of goroutines used to reassemble objects", EnvVars: []string{"PBLDUMP_WORKERS"}},
			&cli.IntFlag{Name: "cache-size", Value: 1024, Usage: "Number of reassembled objects kept in memory, 0 disables the cache", EnvVars: []string{"PBLDUMP_CACHE_SIZE"}},
			&cli.StringFlag{Name: "pprof-addr", Usage: "Serve pprof endpoints on this address while running", EnvVars: []string{"PBLDUMP_PPROF_ADDR"}},
			&cli.StringFlag{Name: "trace-out", Usage: "Write an execution trace to this file"},
		},
	}

	var prof *profiler
	app.Before = func(c *cli.Context) error {
		if err := setupLogLevel(c); err != nil {
			return err
		}
		prof = newProfiler(c)
		return prof.start()
	}
	app.After = func(c *cli.Context) error {
		if prof != nil {
			prof.stop()
		}
		return nil
	}

	app.Commands = []*cli.Command{
		{
			Name:      "header",
			Usage:     "Print the library header",
			ArgsUsage: "<file.pbl>",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1, "<file.pbl>"); err != nil {
					return err
				}
				lib, err := openLibrary(c, c.Args().First())
				if err != nil {
					return err
				}
				printHeader(c.App.Writer, lib.Header())
				return nil
			},
		},
		{
			Name:      "list",
			Usage:     "List indexed objects",
			ArgsUsage: "<file.pbl>",
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1, "<file.pbl>"); err != nil {
					return err
				}
				lib, err := openLibrary(c, c.Args().First())
				if err != nil {
					return err
				}
				printList(c.App.Writer, lib.Index())
				return nil
			},
		},
		{
			Name:      "blocks",
			Usage:     "Print every structural record (header, bitmap, nodes, entries)",
			ArgsUsage: "<file.pbl>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "data", Usage: "Also print the data block chain of every object"},
			},
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 1, "<file.pbl>"); err != nil {
					return err
				}
				lib, err := openLibrary(c, c.Args().First())
				if err != nil {
					return err
				}
				return printBlocks(c.App.Writer, lib, c.Bool("data"))
			},
		},
		{
			Name:      "dump",
			Usage:     "Print the contents of stored objects",
			ArgsUsage: "<file.pbl> [object...]",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{Name: "skip-ext", Value: cli.NewStringSlice(defaultSkipExt...), Usage: "Object suffixes to skip"},
				&cli.BoolFlag{Name: "all", Usage: "Dump every object, ignoring --skip-ext"},
				&cli.BoolFlag{Name: "hex", Usage: "Print payloads as a hex dump"},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					return fmt.Errorf("usage: %s <file.pbl> [object...]", c.Command.FullName())
				}
				lib, err := openLibrary(c, c.Args().First())
				if err != nil {
					return err
				}
				opts := dumpOptions{
					names: c.Args().Tail(),
					hex:   c.Bool("hex"),
				}
				if !c.Bool("all") {
					opts.skipExt = c.StringSlice("skip-ext")
				}
				return dump(c.Context, c.App.Writer, lib, opts)
			},
		},
		{
			Name:      "diff",
			Usage:     "Compare the objects of two libraries",
			ArgsUsage: "<old.pbl> <new.pbl>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "hunks", Usage: "Print only added-line hunks instead of unified diffs"},
			},
			Action: func(c *cli.Context) error {
				if err := requireArgs(c, 2, "<old.pbl> <new.pbl>"); err != nil {
					return err
				}
				oldLib, err := openLibrary(c, c.Args().Get(0))
				if err != nil {
					return err
				}
				newLib, err := openLibrary(c, c.Args().Get(1))
				if err != nil {
					return err
				}
				printDiff(c.App.Writer, pbl.Diff(oldLib, newLib), c.Bool("hunks"))
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
