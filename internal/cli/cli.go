// Package cli implements kpictl, the operator command line for kpisync.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/okian/kpisync/internal/domain/model"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailed  = 1
	ExitUsage   = 2
	ExitBusy    = 3
	defaultURL  = "http://localhost:8080"
	defaultWait = 30 * time.Minute
)

// ShowHelp prints usage information.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `kpictl - KPI sync operator tool

Usage:
  kpictl <command> [options]

Commands:
  sync      Trigger a sync and wait for its result
  health    Check the service health endpoint
  ranges    Resolve billing threshold ranges from a local config workbook

Common options (sync, health):
  -url string       Base URL of the service (default "http://localhost:8080", env KPISYNC_URL)
  -key string       Function key (env KPISYNC_API_KEY)
  -timeout duration Request timeout (default 30m for sync, 10s for health)
  -plain            Disable colours and borders

sync options:
  -individual       Process individual sheets (default true)
  -team-leader      Process the Team Leader workbook (default true)
  -therapist string Only therapists whose name contains this

ranges options:
  -config string    Path to the config workbook (.xlsx)
  -name string      Therapist name
  -team string      Team id (Physio_North, Physio_South, OT)
  -year int         Year (default current year)

Examples:
  kpictl sync -therapist Chris -team-leader=false
  kpictl health -url https://kpi.example.org
  kpictl ranges -config KPI_Config.xlsx -name Chris -year 2025
`)
}

// Main runs kpictl with args (without the program name) and returns the
// process exit code.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		ShowHelp(stderr)
		return ExitUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "sync":
		return runSync(ctx, rest, stdout, stderr)
	case "health":
		return runHealth(ctx, rest, stdout, stderr)
	case "ranges":
		return runRanges(ctx, rest, stdout, stderr)
	case "help", "-h", "-help", "--help":
		ShowHelp(stdout)
		return ExitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		ShowHelp(stderr)
		return ExitUsage
	}
}

func commonFlags(fs *flag.FlagSet, cfg *Config, timeout time.Duration) {
	url := os.Getenv("KPISYNC_URL")
	if url == "" {
		url = defaultURL
	}
	fs.StringVar(&cfg.BaseURL, "url", url, "Base URL of the service")
	fs.StringVar(&cfg.Key, "key", os.Getenv("KPISYNC_API_KEY"), "Function key")
	fs.DurationVar(&cfg.Timeout, "timeout", timeout, "Request timeout")
	fs.BoolVar(&cfg.Plain, "plain", false, "Disable styling")
}

func runSync(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg := Config{Out: stdout}
	commonFlags(fs, &cfg, defaultWait)
	req := SyncRequest{}
	fs.BoolVar(&req.ProcessIndividual, "individual", true, "Process individual sheets")
	fs.BoolVar(&req.ProcessTeamLeader, "team-leader", true, "Process the Team Leader workbook")
	fs.StringVar(&req.Therapist, "therapist", "", "Therapist name filter")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	styles := NewStyles(cfg.Plain)
	res, code, err := NewClient(cfg.BaseURL, cfg.Key, cfg.Timeout).Sync(ctx, req)
	if code == http.StatusTooManyRequests {
		fmt.Fprintln(stderr, styles.Warn.Render("a sync is already queued; try again later"))
		return ExitBusy
	}
	if err != nil {
		fmt.Fprintln(stderr, styles.Fail.Render("sync failed: "+err.Error()))
		return ExitFailed
	}
	fmt.Fprintln(cfg.Out, RenderResult(styles, res))
	if res.Status != model.StatusSuccess {
		return ExitFailed
	}
	return ExitOK
}

func runHealth(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg := Config{Out: stdout}
	commonFlags(fs, &cfg, 10*time.Second)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	styles := NewStyles(cfg.Plain)
	h, err := NewClient(cfg.BaseURL, cfg.Key, cfg.Timeout).Health(ctx)
	if err != nil {
		fmt.Fprintln(stderr, styles.Fail.Render("health check failed: "+err.Error()))
		return ExitFailed
	}
	fmt.Fprintln(cfg.Out, RenderHealth(styles, h))
	return ExitOK
}

func runRanges(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ranges", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		path  = fs.String("config", "", "Path to the config workbook")
		name  = fs.String("name", "", "Therapist name")
		team  = fs.String("team", "", "Team id")
		year  = fs.Int("year", time.Now().Year(), "Year")
		plain = fs.Bool("plain", false, "Disable styling")
	)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	styles := NewStyles(*plain)
	if *path == "" || (*name == "") == (*team == "") {
		fmt.Fprintln(stderr, "ranges needs -config and exactly one of -name or -team")
		return ExitUsage
	}

	cfg, err := LoadConfig(ctx, *path)
	if err != nil {
		fmt.Fprintln(stderr, styles.Fail.Render("load config: "+err.Error()))
		return ExitFailed
	}

	var (
		subject string
		ranges  []Range
	)
	if *name != "" {
		subject = *name
		ranges, err = TherapistRanges(cfg, *name, *year)
	} else {
		subject = strings.TrimSpace(*team)
		ranges = TeamRanges(cfg, model.TeamID(subject), *year)
	}
	if err != nil {
		fmt.Fprintln(stderr, styles.Fail.Render(err.Error()))
		return ExitFailed
	}
	fmt.Fprintln(stdout, RenderRanges(styles, subject, *year, ranges))
	return ExitOK
}
