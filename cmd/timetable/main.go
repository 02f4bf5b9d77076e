package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"timetable/internal/acquire"
	"timetable/internal/cache"
	"timetable/internal/config"
	"timetable/internal/credential"
	"timetable/internal/grid"
	appLog "timetable/internal/log"
	"timetable/internal/netcheck"
	"timetable/internal/portal"
	"timetable/internal/refresh"
	"timetable/internal/session"
	"timetable/internal/userconf"
	"timetable/internal/web"
)

const version = "0.3.0"

// Exit codes for outcomes that are not errors.
const (
	exitWrongCredentials = 2
	exitNoConnection     = 3
)

type flagConfig struct {
	configPath string
	user       string
	week       int
	serve      bool
	listen     string
	once       bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("failed to read .env", "err", err)
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		if conf == nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Error("failed to persist config; continuing with defaults", err, "config_path", flags.configPath)
	}
	conf.ApplyEnv(os.Getenv)
	conf.Normalize()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("timetable starting", "version", version)
	appLog.Info("effective config",
		"data_dir", conf.DataDir,
		"backend", conf.Portal.Backend,
		"probe_hosts", len(conf.Reachability.Hosts),
		"refresh", conf.RefreshCron,
		"serve", flags.serve,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	code, err := run(ctx, conf, flags)
	if err != nil {
		appLog.Error("timetable failed", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		code = 1
	}
	appLog.Info("timetable exiting", "code", code)
	os.Exit(code)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", config.DefaultPath(), "Path to config file")
	flag.StringVar(&cfg.user, "user", "", "Portal username (defaults to the last login)")
	flag.IntVar(&cfg.week, "week", 0, "Week offset from the current week, may be negative")
	flag.BoolVar(&cfg.serve, "serve", false, "Keep running with the local API and scheduled refresh")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Skip the background refresh after serving the local cache")

	flag.Parse()

	return cfg
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) (int, error) {
	creds := credential.NewStore(conf.CredentialsPath(), conf.Secret)
	overrides := userconf.NewStore(conf.OverridesPath())

	fetcher, err := portal.New(conf.Portal)
	if err != nil {
		return 1, err
	}

	in := bufio.NewReader(os.Stdin)
	username := flags.user
	if username == "" {
		username = creds.LastUser()
	}
	if username == "" {
		if username, err = promptLine(in, "Benutzername: "); err != nil {
			return 1, err
		}
	}
	password, err := promptPassword(in, fmt.Sprintf("Passwort für %s: ", username))
	if err != nil {
		return 1, err
	}

	ctrl := acquire.New(acquire.Deps{
		Prober:       netcheck.New(conf.Reachability.Hosts, conf.Reachability.Timeout()),
		Cache:        cache.NewStore(conf.DataDir),
		Credentials:  creds,
		Fetcher:      fetcher,
		Overrides:    overrides,
		FetchTimeout: conf.Portal.Timeout(),
		Location:     time.Local,
	})

	res, err := ctrl.Acquire(ctx, username, password)
	if err != nil {
		return 1, err
	}

	switch res.Outcome {
	case acquire.WrongCredentials:
		fmt.Println("Benutzername oder Passwort falsch.")
		return exitWrongCredentials, nil
	case acquire.NoConnection:
		fmt.Println("Keine Internetverbindung und kein lokaler Stundenplan vorhanden.")
		return exitNoConnection, nil
	}

	geometry := grid.Geometry{
		HeaderHeight: conf.Grid.HeaderHeight,
		RowHeight:    conf.Grid.RowHeight,
		ColumnWidth:  conf.Grid.ColumnWidth,
		Gutter:       conf.Grid.Gutter,
	}.Normalize()
	sess := session.New(username, res.Lessons, res.Outcome.String(), overrides, session.WithGeometry(geometry))

	printWeek(os.Stdout, titleFor(res.Outcome), sess.Navigate(flags.week))

	// A served cache may be stale; fetch the current calendar behind it.
	var refreshed chan bool
	if res.Outcome == acquire.LocalCacheServed && !flags.once {
		refreshed = make(chan bool, 1)
		go func() {
			if !ctrl.ForceRemoteRefresh(ctx, username, password) {
				refreshed <- false
				return
			}
			lessons, err := ctrl.Cached(username)
			if err != nil {
				appLog.Error("reload refreshed cache failed", err, "user", username)
				refreshed <- false
				return
			}
			sess.Replace(lessons, refresh.Source)
			refreshed <- true
		}()
	}

	if !flags.serve {
		if refreshed != nil {
			select {
			case ok := <-refreshed:
				if ok {
					printWeek(os.Stdout, "Stundenplan (aktualisiert)", sess.Current())
				}
			case <-ctx.Done():
			}
		}
		return 0, nil
	}

	scheduler, err := refresh.New(conf.RefreshCron, ctrl, sess, conf.Portal.Timeout())
	if err != nil {
		return 1, err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if err := web.StartServer(ctx, conf, sess, scheduler); err != nil {
		return 1, err
	}
	return 0, nil
}

func titleFor(o acquire.Outcome) string {
	if o == acquire.LocalCacheServed {
		return "Stundenplan (lokal)"
	}
	return "Stundenplan"
}

func promptLine(in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("empty input")
	}
	return line, nil
}

// promptPassword reads without echo from a terminal, or a plain line when
// stdin is piped.
func promptPassword(in *bufio.Reader, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(in, prompt)
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(b) == 0 {
		return "", errors.New("empty password")
	}
	return string(b), nil
}
