package cmd

import (
	"context"
	"errors"

	"github.com/spigell/resume-matcher/internal/jobsource"
	"github.com/spigell/resume-matcher/internal/keywords"
	"github.com/spigell/resume-matcher/internal/profile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract categorized keywords from a job description or a résumé",
	Run: func(cmd *cobra.Command, _ []string) {
		extract(cmd)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("job", "J", "", "job description file")
	extractCmd.Flags().StringP("resume", "r", "", "candidate profile file")
	extractCmd.Flags().StringSlice("categories", nil, "categories to extract (default: config categories or all)")
	extractCmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")

	extractCmd.MarkFlagsMutuallyExclusive("job", "resume")
}

// extractSource loads the text and its kind from whichever flag is set.
func extractSource(cmd *cobra.Command) (string, keywords.SourceKind, error) {
	if path := cmd.Flag("job").Value.String(); path != "" {
		job, err := jobsource.LoadJob(path)
		if err != nil {
			return "", "", err
		}
		return profile.JobText(job), keywords.SourceJobDescription, nil
	}

	if path := cmd.Flag("resume").Value.String(); path != "" {
		resume, err := jobsource.LoadCandidate(path)
		if err != nil {
			return "", "", err
		}
		return profile.ResumeText(resume), keywords.SourceResume, nil
	}

	return "", "", errors.New("either --job or --resume is required")
}

func extract(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := bootstrap(cmd.Name())

	text, source, err := extractSource(cmd)
	if err != nil {
		logger.Fatal("loading the input", zap.Error(err))
	}

	names := config.Categories
	if cmd.Flags().Changed("categories") {
		names, _ = cmd.Flags().GetStringSlice("categories")
	}
	categories, err := keywords.ParseCategories(names)
	if err != nil {
		logger.Fatal("parsing categories", zap.Error(err))
	}

	caps, err := buildAI(ctx, config, logger)
	if err != nil {
		logger.Fatal("configuring ai", zap.Error(err))
	}

	extractor := keywords.NewExtractor(caps.generator, logger,
		keywords.WithTimeout(config.Timeouts.Extraction),
		keywords.WithMaxLogLength(maxLogLength(config)),
	)

	result := extractor.Extract(ctx, text, source, categories)
	if result.Warning != "" {
		logger.Warn("keyword extraction degraded", zap.String("method", string(result.Method)), zap.String("warning", result.Warning))
	}

	if err := writeJSON(cmd.Flag("output").Value.String(), result); err != nil {
		logger.Fatal("writing the result", zap.Error(err))
	}
}
