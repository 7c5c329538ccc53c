package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/OCAP2/hud/internal/config"
)

// cliOptions are the flags that are not config keys.
type cliOptions struct {
	ConfigDir   string
	ShowVersion bool
}

// flagKeys maps flags onto the config keys they override.
var flagKeys = map[string]string{
	"script":    "loop.script",
	"output":    "loop.output",
	"frames":    "loop.frames",
	"rate":      "loop.rate",
	"log-level": "logLevel",
	"logs-dir":  "logsDir",
}

func newFlagSet(out io.Writer) (*pflag.FlagSet, *cliOptions) {
	opts := &cliOptions{}
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags]\n\nReplays a HUD command script through the indicator renderers.\n\n", AppName)
		fs.PrintDefaults()
	}

	fs.StringVarP(&opts.ConfigDir, "config-dir", "c", ".", "directory containing "+config.FileName)
	fs.BoolVarP(&opts.ShowVersion, "version", "v", false, "print version and exit")

	fs.StringP("script", "s", "", "command script to replay")
	fs.StringP("output", "o", "", `layout output file, "-" for stdout`)
	fs.IntP("frames", "n", 600, "frames to run, 0 runs until interrupted")
	fs.IntP("rate", "r", 60, "frames per second")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "./hudlogs", "directory for log files")

	return fs, opts
}

// parseArgs parses args. pflag.ErrHelp is returned for -h.
func parseArgs(args []string, out io.Writer) (*pflag.FlagSet, *cliOptions, error) {
	fs, opts := newFlagSet(out)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return fs, opts, nil
}
