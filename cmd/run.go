package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/adherence-scorer/internal/ai"
	"github.com/spigell/adherence-scorer/internal/ai/gemini"
	"github.com/spigell/adherence-scorer/internal/batch"
	"github.com/spigell/adherence-scorer/internal/cache"
	"github.com/spigell/adherence-scorer/internal/logger"
	"github.com/spigell/adherence-scorer/internal/magicalapi"
	"github.com/spigell/adherence-scorer/internal/metrics"
	"github.com/spigell/adherence-scorer/internal/profile"
	"github.com/spigell/adherence-scorer/internal/secrets"
	"github.com/spigell/adherence-scorer/internal/tabular"
	"github.com/spigell/adherence-scorer/internal/utils"
)

const (
	PromptExport       = "Export results to CSV"
	PromptShowTop      = "Show top candidates"
	PromptShowAll      = "Show all results"
	PromptDumpProfiles = "Dump profiles to file"
	PromptExit         = "Exit"

	reasonPreviewLength = 120
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptExport, PromptShowTop, PromptShowAll, PromptDumpProfiles, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score every candidate of the dataset against the job description",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", "", "CSV dataset with a slug column and an optional name column")
	runCmd.Flags().StringP("output", "o", "", "CSV file for the results (default is results.csv)")
	runCmd.Flags().BoolP("auto-approve", "y", false, "export results without asking what to do next")
	runCmd.Flags().String("education", "", "required education, e.g. \"Engenharia de Software\"")
	runCmd.Flags().String("mandatory", "", "comma separated mandatory skills")
	runCmd.Flags().String("desired", "", "comma separated desired skills")
	runCmd.Flags().String("experience", "", "required years of experience")
	runCmd.Flags().String("observations", "", "comma separated keywords looked up anywhere in the profile")
	runCmd.Flags().String("on-unauthorized", "", "what to do when the api key is rejected: abort, continue or ask")
	runCmd.Flags().Bool("mock", false, "serve a sample profile instead of calling the lookup API")

	for key, flag := range map[string]string{
		"input":                 "input",
		"output":                "output",
		"job.education":         "education",
		"job.mandatory-skills":  "mandatory",
		"job.desired-skills":    "desired",
		"job.experience-years":  "experience",
		"job.observations":      "observations",
		"batch.on-unauthorized": "on-unauthorized",
		"api.mock":              "mock",
	} {
		if err := viper.BindPFlag(key, runCmd.Flags().Lookup(flag)); err != nil {
			log.Fatalf("binding %s flag: %v", flag, err)
		}
	}
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(logger.Options{JSON: viper.GetBool("json"), Debug: viper.GetBool("debug")})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the adherence-scorer", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Metrics.Addr != "" {
		metrics.Serve(ctx, config.Metrics.Addr, logger)
	}

	candidates, err := tabular.LoadCandidates(config.Input)
	if err != nil {
		logger.Fatal("loading candidates", zap.Error(err), zap.String("input", config.Input))
	}

	if len(candidates) == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates with a slug in the dataset"))
		return
	}

	logger.Info("candidates loaded", zap.Int("count", len(candidates)))

	resolver, closeResolver, err := newResolver(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the profile resolver", zap.Error(err),
			zap.String("hint", "set api.api-key-file, api.api-key or the "+apiKeyEnv+" environment variable"),
		)
	}
	defer closeResolver()

	autoApprove := cmd.Flag("auto-approve").Value.String() == "true"
	orchestrator := newOrchestrator(ctx, config, resolver, logger, autoApprove)

	report, err := orchestrator.RunBatch(ctx, candidates, config.Job)
	if err != nil {
		logger.Warn("batch interrupted, keeping partial results", zap.Error(err))
	}

	printResults(cmd.OutOrStdout(), report.Top)

	if autoApprove || err != nil {
		if err := handleAction(PromptExport, cmd.OutOrStdout(), logger, config, report); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, cmd.OutOrStdout(), logger, config, report); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, out io.Writer, logger *zap.Logger, config *Config, report *batch.Report) error {
	switch action {
	case PromptExport:
		if err := tabular.SaveResults(config.Output, report.Results); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		logger.Info("results exported", zap.String("filename", config.Output), zap.Int("count", len(report.Results)))
		return nil
	case PromptShowTop:
		printResults(out, report.Top)
		printNotes(out, report.Top)
		return nil
	case PromptShowAll:
		printResults(out, report.Results)
		return nil
	case PromptDumpProfiles:
		filename := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.json", app, report.RunID))
		if err := tabular.DumpProfiles(filename, report); err != nil {
			return fmt.Errorf("dump profiles to file: %w", err)
		}
		logger.Info("dumping profiles to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// newResolver builds the profile source for the batch. The returned func
// releases whatever the resolver holds.
func newResolver(ctx context.Context, config *Config, logger *zap.Logger) (batch.Resolver, func(), error) {
	noop := func() {}

	if config.API.Mock {
		logger.Warn("mock mode is on, every candidate gets the same sample profile")
		return magicalapi.NewStaticResolver(), noop, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "magicalapi api key",
		Value: config.API.APIKey,
		File:  config.API.APIKeyFile,
		Env:   apiKeyEnv,
	})
	if err != nil {
		return nil, noop, err
	}

	client := magicalapi.New(logger, apiKey)
	client.Endpoint = config.API.Endpoint
	client.Timeout = config.API.Timeout

	resolver := magicalapi.NewResolver(client, logger)
	resolver.MaxAttempts = config.Poll.MaxAttempts
	resolver.Interval = config.Poll.Interval
	resolver.RateLimitBackoff = config.Poll.RateLimitBackoff

	if !config.Cache.Enabled {
		return resolver, noop, nil
	}

	redis := cache.NewRedis(config.Cache.Options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("profile cache is unreachable, resolving without it", zap.Error(err), zap.String("addr", config.Cache.Addr))
		_ = redis.Close()
		return resolver, noop, nil
	}

	cached := magicalapi.NewCachedResolver(resolver, redis, logger)
	cached.TTL = config.Cache.DefaultTTL

	return cached, func() { _ = redis.Close() }, nil
}

func newOrchestrator(ctx context.Context, config *Config, resolver batch.Resolver, log *zap.Logger, autoApprove bool) *batch.Orchestrator {
	o := batch.New(resolver, profile.NewEnricher(), log)
	o.MaxResolveAttempts = config.Batch.MaxResolveAttempts
	o.RetryDelay = config.Batch.RetryDelay
	o.CandidateDelay = config.Batch.CandidateDelay
	o.TopN = config.Batch.Top
	o.Observer = batch.LogObserver{Logger: log}

	// The config is validated, so the policy is known.
	o.OnUnauthorized, _ = batch.ParsePolicy(config.Batch.OnUnauthorized)
	if !autoApprove {
		o.Confirm = confirmContinue
	}

	reviewer, err := newReviewer(ctx, config.AI, log)
	if err != nil {
		log.Warn("skipping AI notes", zap.Error(err))
	} else if reviewer != nil {
		o.Reviewer = reviewer
	}

	return o
}

func newReviewer(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Reviewer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	aiLogger := logger.WithAIFields(log, "gemini", cfg.Gemini.Model)

	generator, err := gemini.NewGenerator(ctx, aiLogger, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries)
	if err != nil {
		return nil, err
	}

	return gemini.NewReviewer(generator, logger.WithAIFields(log, "gemini", generator.Model()), cfg.Gemini.MaxLogLength), nil
}

func confirmContinue(_ context.Context, c batch.Candidate) (bool, error) {
	confirm := promptui.Prompt{
		Label:     fmt.Sprintf("The api key was rejected while resolving %s. Continue with the remaining candidates", c),
		IsConfirm: true,
	}

	if _, err := confirm.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func printResults(out io.Writer, results []batch.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSLUG\tSCORE\tREASON")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Name, r.Slug,
			strconv.FormatFloat(r.Score, 'f', 1, 64), utils.TruncateForLog(r.Reason, reasonPreviewLength))
	}
	w.Flush()
}

func printNotes(out io.Writer, results []batch.Result) {
	for _, r := range results {
		if r.Note == nil {
			continue
		}
		fmt.Fprintf(out, "\n%s (%s)\n  %s\n", r.Name, r.Slug, r.Note.Summary)
		for _, s := range r.Note.Strengths {
			fmt.Fprintf(out, "  + %s\n", s)
		}
		for _, c := range r.Note.Concerns {
			fmt.Fprintf(out, "  - %s\n", c)
		}
		if r.Note.Interview != "" {
			fmt.Fprintf(out, "  ? %s\n", r.Note.Interview)
		}
	}
}
