package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/earthboundkid/versioninfo/v2"
	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/lmittmann/tint"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dynoinc/vulnreport/internal/gitlab"
	"github.com/dynoinc/vulnreport/internal/groups"
	"github.com/dynoinc/vulnreport/internal/metrics"
	"github.com/dynoinc/vulnreport/internal/otel/trace"
	"github.com/dynoinc/vulnreport/internal/render"
	"github.com/dynoinc/vulnreport/internal/report"
	"github.com/dynoinc/vulnreport/internal/slack_integration"
	"github.com/dynoinc/vulnreport/internal/tools"
)

type Config struct {
	// GitLab API configuration
	Gitlab gitlab.Config

	// Report configuration
	GroupsFile       string        `split_words:"true" default:"groups.yaml"`
	Concurrency      int           `default:"4" validate:"min=1"`
	Windows          []int         `default:"30,60,90" validate:"required,dive,gt=0"`
	RunTimeout       time.Duration `split_words:"true" default:"0s"`
	IncludeSubgroups bool          `split_words:"true" default:"true"`
	IncludeArchived  bool          `split_words:"true" default:"false"`

	// Output configuration
	Format   string `default:"table" validate:"oneof=table csv json"`
	Output   string
	LogLevel string `split_words:"true" default:"info"`

	// Delivery and observability
	Slack          slack_integration.Config
	Tracing        trace.Config
	SentryDSN      string `envconfig:"SENTRY_DSN"`
	PushgatewayURL string `split_words:"true"`
}

func main() {
	help := flag.Bool("help", false, "Show help")
	mcpMode := flag.Bool("mcp", false, "Serve the report as an MCP tool over stdio")
	flag.Parse()

	if *help {
		envconfig.Usage("vulnreport", &Config{})
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "error loading .env file: %v\n", err)
			os.Exit(2)
		}
	}

	var c Config
	if err := envconfig.Process("vulnreport", &c); err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(2)
	}
	if c.Gitlab.Token == "" {
		c.Gitlab.Token = os.Getenv("GRAPHQL_API_TOKEN")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", c.LogLevel, err)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.DateTime})))
	slog.Info("Running version", "version", versioninfo.Short())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, *mcpMode); err != nil {
		var cfgErr *gitlab.ConfigError
		if errors.Is(err, errInvalidConfig) || errors.As(err, &cfgErr) {
			slog.Error("invalid configuration", "error", err)
			os.Exit(2)
		}
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

var errInvalidConfig = errors.New("invalid configuration")

func run(ctx context.Context, c Config, mcpMode bool) error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	groupsCfg, err := groups.LoadConfig(c.GroupsFile)
	if err != nil {
		return fmt.Errorf("%w: loading groups from %s: %w", errInvalidConfig, c.GroupsFile, err)
	}

	var traceOpts []trace.Option
	if c.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			Release:          versioninfo.Short(),
			EnableTracing:    true,
			TracesSampleRate: c.Tracing.SampleRate,
		}); err != nil {
			return fmt.Errorf("initializing sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		traceOpts = append(traceOpts, trace.WithSentry())
	}

	tp, err := trace.Setup(ctx, c.Tracing, "vulnreport", versioninfo.Short(), traceOpts...)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	mp, err := metrics.NewMeterProvider(reg)
	if err != nil {
		return err
	}
	defer mp.Shutdown(context.Background())

	client, err := gitlab.New(c.Gitlab, gitlab.WithMetrics(m))
	if err != nil {
		return err
	}

	runner := &report.Runner{
		Source:      client,
		Windows:     c.Windows,
		Concurrency: c.Concurrency,
		Filter: gitlab.ProjectFilter{
			IncludeSubgroups: c.IncludeSubgroups,
			IncludeArchived:  c.IncludeArchived,
		},
		Metrics: m,
	}

	if mcpMode {
		slog.InfoContext(ctx, "serving MCP tools over stdio", "groups", len(groupsCfg.Groups))
		return server.ServeStdio(tools.Server(runner, groupsCfg.Groups))
	}

	runCtx := ctx
	if c.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	rep := runner.Run(runCtx, groupsCfg.Groups)
	slog.InfoContext(ctx, "report complete", "groups", len(rep.Groups), "duration", time.Since(start), "incomplete", rep.Incomplete())

	if err := writeReport(c, rep); err != nil {
		return err
	}

	if rep.Incomplete() {
		reportIncomplete(rep)
	}

	if c.Slack.Enabled() {
		poster, err := slack_integration.New(ctx, c.Slack)
		if err != nil {
			return err
		}
		if err := poster.Post(ctx, rep); err != nil {
			return err
		}
	}

	if c.PushgatewayURL != "" {
		if err := metrics.Push(ctx, c.PushgatewayURL, "vulnreport", reg); err != nil {
			slog.WarnContext(ctx, "pushing metrics failed", "error", err)
		}
	}

	return nil
}

func writeReport(c Config, rep *report.Report) error {
	var w io.Writer = os.Stdout
	if c.Output != "" && c.Output != "-" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	var err error
	switch strings.ToLower(c.Format) {
	case "csv":
		err = render.CSV(w, rep)
	case "json":
		err = render.JSON(w, rep)
	default:
		err = render.Text(w, rep)
	}
	if err != nil {
		return fmt.Errorf("writing %s report: %w", c.Format, err)
	}
	return nil
}

// reportIncomplete logs every partial row and sends it to Sentry when
// configured.
func reportIncomplete(rep *report.Report) {
	capture := func(tags map[string]string, err error) {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTags(tags)
			scope.AddBreadcrumb(&sentry.Breadcrumb{
				Category: "vulnreport",
				Message:  "Partial report row",
				Level:    sentry.LevelWarning,
			}, 10)
			sentry.CaptureException(err)
		})
	}

	for _, g := range rep.Groups {
		if g.ListingErr != nil {
			slog.Warn("group listing incomplete", "group", g.Name, "error", g.ListingErr)
			capture(map[string]string{"group": g.Name}, g.ListingErr)
		}
		for _, p := range g.Projects {
			if !p.Incomplete {
				continue
			}
			slog.Warn("project incomplete", "group", g.Name, "project", p.Name, "failures", p.Failures)
			capture(map[string]string{"group": g.Name, "project": p.Name}, p.Err)
		}
	}
}
