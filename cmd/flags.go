package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

type Flags struct {
	ConfigPath string
	Version    bool
}

// ParseFlags reads the global flags and returns the remaining command line,
// command first.
func ParseFlags() (Flags, []string) {
	flags := Flags{}

	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config.toml (default: ./config.toml or the user config dir)")
	flag.StringVar(&flags.ConfigPath, "c", "", "Path to config.toml (shorthand)")
	flag.BoolVar(&flags.Version, "v", false, "Display version information")
	flag.BoolVar(&flags.Version, "version", false, "Display version information")
	flag.Usage = func() { Usage(os.Stderr) }

	flag.Parse()
	return flags, flag.Args()
}

func Usage(w io.Writer) {
	fmt.Fprint(w, `Usage: autoposter [-config path] <command> [arguments]

Commands:
  run [-once]                               Run the schedule executor in the foreground
  service <install|uninstall|start|stop|restart|run>
  dashboard                                 Terminal dashboard of schedules
  diagnose [-level n] [-output file]        Write a diagnosis report
  post <create|list|drafts|scheduled|show|preview|update|delete|publish|from-template>
  schedule <add|list|pending|show|cancel|recurring>
  template <list|show|add|update|delete>
  stats                                     Schedule statistics
  suggest [-date day] [-max n]              Optimal posting times for a day
  config <show|set|edit|schedule>
  version [-check]
  update                                    Install the latest release

Run "autoposter <command> -h" for the flags of a command.
`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// keyValues collects repeated -var key=value flags.
type keyValues map[string]string

func (kv keyValues) String() string {
	parts := make([]string, 0, len(kv))
	for k, v := range kv {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (kv keyValues) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	kv[strings.TrimSpace(k)] = v
	return nil
}

// visited returns the names of the flags set on the command line.
func visited(fs *flag.FlagSet) map[string]bool {
	seen := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	return seen
}
