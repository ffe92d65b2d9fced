package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tzevents/pkg/client"
	"tzevents/pkg/storage"
)

const name = "tzevents"

var errUsage = errors.New("usage")

// flag name -> configuration key; every key can also come from TZEVENTS_<KEY>.
var boundFlags = map[string]string{
	"api-url":    "API_URL",
	"cache-file": "CACHE_FILE",
	"output":     "OUTPUT",
	"log-level":  "LOG_LEVEL",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	flags.String("api-url", client.DefaultBaseURL, "base URL of the tzevents API")
	flags.String("cache-file", defaultCacheFile(), "file keeping events for offline use")
	flags.StringP("output", "o", "text", "output format: text, json or yaml")
	flags.String("log-level", "warn", "level of the log written to stderr")
	flags.Usage = func() { usage(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(name))
	v.AutomaticEnv()

	for flag, key := range boundFlags {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(v.GetString("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).Level(level).With().Timestamp().Logger()
	ctx = logger.WithContext(ctx)

	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	command, ok := lookupCommand(flags.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", flags.Arg(0))
		flags.Usage()
		return 2
	}

	c, err := newCLI(v, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	logger.Debug().Str("command", command.name).Str("api_url", v.GetString("API_URL")).Str("cache_file", v.GetString("CACHE_FILE")).Msg("running")

	err = command.run(ctx, c, flags.Args()[1:])

	switch {
	case err == nil:
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

type cli struct {
	api     *client.Client
	session *client.Session
	printer *printer
	stderr  io.Writer
}

func newCLI(v *viper.Viper, stdout io.Writer, stderr io.Writer) (*cli, error) {
	p, err := newPrinter(stdout, v.GetString("OUTPUT"))
	if err != nil {
		return nil, err
	}

	api, err := client.New(v.GetString("API_URL"))
	if err != nil {
		return nil, err
	}

	cache := storage.NewEventCache(storage.NewFileStore(v.GetString("CACHE_FILE")))

	return &cli{
		api:     api,
		session: client.NewSession(api, cache),
		printer: p,
		stderr:  stderr,
	}, nil
}

func (c *cli) flags(command string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name+" "+command, pflag.ContinueOnError)
	flags.SetOutput(c.stderr)

	return flags
}

func parse(flags *pflag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	return nil
}

func defaultCacheFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + name + "-cache.json"
	}

	return filepath.Join(dir, name, "cache.json")
}

func usage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [flags] <command> [command flags]\n\nCommands:\n", name)
	for _, command := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", command.name, command.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flags.FlagUsages())
}
