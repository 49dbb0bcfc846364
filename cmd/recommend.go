package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/resume-matcher/internal/filtering"
	"github.com/spigell/resume-matcher/internal/jobsource"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/spigell/resume-matcher/internal/recommend"
	"github.com/spigell/resume-matcher/internal/secrets"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptBrowse           = "Browse recommendations"
	PromptExcludeAll       = "Append all recommendations to exclude file"
	PromptReportToFile     = "Dump report to file"
	PromptExit             = "Exit"
	PromptBack             = "back"
	PromptDetails          = "Show match details"
	PromptExcludeOne       = "Append to exclude file"
	excludedByPromptReason = "excluded from the interactive browser"
)

var errExit = errors.New("exit requested")

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank a job corpus against a résumé",
	Run: func(cmd *cobra.Command, _ []string) {
		runRecommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("resume", "r", "", "candidate profile file (json or yaml)")
	recommendCmd.Flags().String("jobs", "", "job corpus file; the configured feed is used when unset")
	recommendCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	recommendCmd.Flags().BoolP("interactive", "i", false, "browse the results in an interactive menu")

	recommendCmd.Flags().IntP("limit", "l", 0, "number of recommendations to return")
	recommendCmd.Flags().Int("min-score", 0, "drop jobs scoring below this value")
	recommendCmd.Flags().StringSlice("location", nil, "keep only jobs in these locations")
	recommendCmd.Flags().Bool("allow-remote", false, "keep remote jobs regardless of --location")
	recommendCmd.Flags().Int("min-salary", 0, "drop jobs whose known salary ends below this value")
	recommendCmd.Flags().Int("max-salary", 0, "drop jobs whose known salary starts above this value")
	recommendCmd.Flags().StringP("exclude-file", "e", "", "file with jobs to exclude. Default is unset.")
	recommendCmd.Flags().Int("workers", 0, "number of jobs scored concurrently")
	recommendCmd.Flags().Duration("timeout", 0, "overall deadline for scoring")

	recommendCmd.MarkFlagRequired("resume")

	for key, flag := range map[string]string{
		"recommend.limit":        "limit",
		"recommend.min-score":    "min-score",
		"recommend.locations":    "location",
		"recommend.allow-remote": "allow-remote",
		"recommend.min-salary":   "min-salary",
		"recommend.max-salary":   "max-salary",
		"recommend.exclude-file": "exclude-file",
		"recommend.workers":      "workers",
		"recommend.timeout":      "timeout",
	} {
		viper.BindPFlag(key, recommendCmd.Flags().Lookup(flag))
	}
}

func runRecommend(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := bootstrap(cmd.Name())

	resume, err := jobsource.LoadCandidate(cmd.Flag("resume").Value.String())
	if err != nil {
		logger.Fatal("loading the résumé", zap.Error(err))
	}

	jobs, err := loadCorpus(ctx, cmd, config, logger)
	if err != nil {
		logger.Fatal("loading jobs", zap.Error(err))
	}

	if len(jobs) == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs found"))
		return
	}

	caps, err := buildAI(ctx, config, logger)
	if err != nil {
		logger.Fatal("configuring ai", zap.Error(err))
	}

	engine, err := buildEngine(config, caps, logger)
	if err != nil {
		logger.Fatal("configuring the matching engine", zap.Error(err))
	}

	pipeline, err := buildPipeline(engine, config, logger)
	if err != nil {
		logger.Fatal("configuring the recommendation pipeline", zap.Error(err))
	}

	report, err := pipeline.Recommend(ctx, resume, jobs, config.Recommend)
	if err != nil {
		logger.Fatal("recommending jobs", zap.Error(err))
	}

	for _, warning := range report.Warnings {
		logger.Warn("recommendation degraded", zap.String("warning", warning))
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		if err := browse(report, config.Recommend.ExcludeFile, logger); err != nil && !errors.Is(err, errExit) {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	if err := writeJSON(cmd.Flag("output").Value.String(), report); err != nil {
		logger.Fatal("writing the report", zap.Error(err))
	}
}

// loadCorpus reads --jobs or, without it, fetches the configured feed.
func loadCorpus(ctx context.Context, cmd *cobra.Command, config *Config, logger *zap.Logger) ([]profile.JobDescription, error) {
	if path := cmd.Flag("jobs").Value.String(); path != "" {
		jobs, err := jobsource.LoadJobs(path)
		if err != nil {
			return nil, err
		}
		logger.Info("jobs loaded", zap.String("file", path), zap.Int("count", len(jobs)))
		return jobs, nil
	}

	if config.Feed == nil || config.Feed.URL == "" {
		return nil, errors.New("either --jobs or the feed.url config key is required")
	}

	token, err := resolveFeedToken(config.Feed)
	if err != nil {
		return nil, err
	}

	feed, err := jobsource.NewFeed(config.Feed.FeedConfig, token, logger)
	if err != nil {
		return nil, err
	}

	jobs, err := feed.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if err := profile.ValidateCorpus(jobs); err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	return jobs, nil
}

// resolveFeedToken returns an empty token for feeds that need none.
func resolveFeedToken(feed *FeedConfig) (string, error) {
	if strings.TrimSpace(feed.TokenFile) == "" && strings.TrimSpace(feed.TokenEnv) == "" {
		return "", nil
	}

	return secrets.Load(secrets.Source{
		Name: "feed token",
		File: feed.TokenFile,
		Env:  feed.TokenEnv,
	})
}

func browse(report *recommend.Report, excludeFile string, logger *zap.Logger) error {
	for {
		items := []string{PromptBrowse, PromptReportToFile}
		if excludeFile != "" && len(report.Items) != 0 {
			items = append(items, PromptExcludeAll)
		}

		prompt := promptui.Select{
			Label: fmt.Sprintf("%d recommendations. Next?", len(report.Items)),
			Items: append(items, PromptExit),
		}

		_, action, err := prompt.Run()
		if err != nil {
			return err
		}

		if err := handleAction(action, report, excludeFile, logger); err != nil {
			return err
		}
	}
}

func handleAction(action string, report *recommend.Report, excludeFile string, logger *zap.Logger) error {
	switch action {
	case PromptBrowse:
		return browseItems(report, excludeFile, logger)
	case PromptReportToFile:
		filename, err := dumpToTmpFile("recommendations_*.json", report)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptExcludeAll:
		jobs := make([]profile.JobDescription, 0, len(report.Items))
		for _, item := range report.Items {
			jobs = append(jobs, item.Job)
		}
		if err := filtering.AppendToFile(excludeFile, filtering.Exclude(excludedByPromptReason, jobs...)); err != nil {
			return err
		}
		logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.Int("count", len(jobs)))
		report.Items = nil
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func itemLabel(item recommend.Item) string {
	return fmt.Sprintf("%3d %s %s / %s / %s", item.Match.Score, item.Job.ID, item.Job.Title, item.Job.Company, item.Job.Location)
}

func browseItems(report *recommend.Report, excludeFile string, logger *zap.Logger) error {
	for {
		labels := make([]string, 0, len(report.Items)+1)
		for _, item := range report.Items {
			labels = append(labels, itemLabel(item))
		}

		jobPrompt := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: append(labels, PromptBack),
			Size:  10,
		}

		idx, selected, err := jobPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		removed, err := jobActions(report.Items[idx], excludeFile, logger)
		if err != nil {
			return err
		}
		if removed {
			report.Items = append(report.Items[:idx], report.Items[idx+1:]...)
		}
	}
}

// jobActions shows the menu for one job. It reports whether the job was
// moved to the exclude file.
func jobActions(item recommend.Item, excludeFile string, logger *zap.Logger) (bool, error) {
	items := []string{PromptDetails}
	if excludeFile != "" {
		items = append(items, PromptExcludeOne)
	}

	for {
		prompt := promptui.Select{
			Label: itemLabel(item),
			Items: append(items, PromptBack),
		}

		_, action, err := prompt.Run()
		if err != nil {
			return false, err
		}

		switch action {
		case PromptDetails:
			pretty, _ := json.MarshalIndent(item, "", "  ")
			logger.Info(string(pretty), zap.String("job_id", item.Job.ID))
		case PromptExcludeOne:
			if err := filtering.AppendToFile(excludeFile, filtering.Exclude(excludedByPromptReason, item.Job)); err != nil {
				return false, err
			}
			logger.Info("appended to exclude file", zap.String("filename", excludeFile), zap.String("job_id", item.Job.ID))
			return true, nil
		default:
			return false, nil
		}
	}
}
