package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/designjam/countdown/go/clients"
	"github.com/designjam/countdown/go/internal/configsource"
	"github.com/designjam/countdown/go/internal/dbconfig"
	"github.com/designjam/countdown/go/internal/logging"
	"github.com/designjam/countdown/go/internal/models"
	"github.com/designjam/countdown/go/internal/timings"
)

type options struct {
	submissionStart string
	submissionEnd   string
	votingStart     string
	votingEnd       string
	auto            bool
	period          int
	apiURL          string
	token           string
	dryRun          bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("update_timings", flag.ContinueOnError)
	fs.StringVar(&opts.submissionStart, "ss", "", "submission start (RFC 3339)")
	fs.StringVar(&opts.submissionEnd, "se", "", "submission end (RFC 3339)")
	fs.StringVar(&opts.votingStart, "vs", "", "voting start (RFC 3339)")
	fs.StringVar(&opts.votingEnd, "ve", "", "voting end (RFC 3339)")
	fs.BoolVar(&opts.auto, "auto", false, "generate all four boundaries from -period")
	fs.IntVar(&opts.period, "period", 0, "minutes between generated boundaries")
	fs.StringVar(&opts.apiURL, "api", "", "apply through PUT /api/config on this backend instead of the database")
	fs.StringVar(&opts.token, "token", os.Getenv("ADMIN_TOKEN"), "admin bearer token for -api")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the result without storing it")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// buildPlan turns the flags into the boundaries to overwrite.
func buildPlan(opts options, clk clockwork.Clock) (models.ParsedConfig, error) {
	if opts.auto {
		return timings.AutoPlan(clk.Now(), time.Duration(opts.period)*time.Minute)
	}

	var (
		plan models.ParsedConfig
		err  error
	)
	if plan.SubmissionStart, err = timings.ParseBoundary(models.BoundarySubmissionStart, opts.submissionStart); err != nil {
		return plan, err
	}
	if plan.SubmissionEnd, err = timings.ParseBoundary(models.BoundarySubmissionEnd, opts.submissionEnd); err != nil {
		return plan, err
	}
	if plan.VotingStart, err = timings.ParseBoundary(models.BoundaryVotingStart, opts.votingStart); err != nil {
		return plan, err
	}
	if plan.VotingEnd, err = timings.ParseBoundary(models.BoundaryVotingEnd, opts.votingEnd); err != nil {
		return plan, err
	}
	return plan, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}
	logging.Init("update_timings", "info", true)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	plan, err := buildPlan(opts, clockwork.NewRealClock())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timings")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if opts.apiURL != "" {
		err = applyViaAPI(ctx, opts, plan)
	} else {
		err = applyViaDatabase(ctx, opts, plan)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to update timings")
	}
}

func applyViaDatabase(ctx context.Context, opts options, plan models.ParsedConfig) error {
	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	repo := timings.NewRepository(pool, configsource.DefaultNotifyChannel)
	existing, _, err := repo.Load(ctx)
	if err != nil {
		return err
	}

	merged := timings.Merge(existing, plan)
	if err := timings.Validate(merged); err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Println(timings.Summary(merged))
		return nil
	}
	if err := repo.Apply(ctx, merged); err != nil {
		return err
	}

	log.Info().Str("timings", timings.Summary(merged)).Msg("updated competition timings")
	return nil
}

func applyViaAPI(ctx context.Context, opts options, plan models.ParsedConfig) error {
	client := clients.NewCompetitionClient(opts.apiURL)
	if opts.token != "" {
		client.SetToken(opts.token)
	}

	current, err := client.GetConfig(ctx)
	if err != nil {
		return err
	}

	merged := timings.Merge(current.Parsed(), plan)
	if err := timings.Validate(merged); err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Println(timings.Summary(merged))
		return nil
	}
	if _, err := client.UpdateConfig(ctx, models.ConfigFromTimes(merged)); err != nil {
		return err
	}

	log.Info().
		Str("api", opts.apiURL).
		Str("timings", timings.Summary(merged)).
		Msg("updated competition timings")
	return nil
}
