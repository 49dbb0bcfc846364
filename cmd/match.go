package cmd

import (
	"context"

	"github.com/spigell/resume-matcher/internal/jobsource"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score one résumé against one job description",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "candidate profile file (json or yaml)")
	matchCmd.Flags().StringP("job", "J", "", "job description file (json, yaml, txt or md)")
	matchCmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")

	matchCmd.MarkFlagRequired("resume")
	matchCmd.MarkFlagRequired("job")
}

func match(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := bootstrap(cmd.Name())

	resume, err := jobsource.LoadCandidate(cmd.Flag("resume").Value.String())
	if err != nil {
		logger.Fatal("loading the résumé", zap.Error(err))
	}

	job, err := jobsource.LoadJob(cmd.Flag("job").Value.String())
	if err != nil {
		logger.Fatal("loading the job description", zap.Error(err))
	}

	caps, err := buildAI(ctx, config, logger)
	if err != nil {
		logger.Fatal("configuring ai", zap.Error(err))
	}

	engine, err := buildEngine(config, caps, logger)
	if err != nil {
		logger.Fatal("configuring the matching engine", zap.Error(err))
	}

	result, err := engine.AnalyzeMatch(ctx, resume, job)
	if err != nil {
		logger.Fatal("analyzing the match", zap.Error(err))
	}

	logger.Info("match analyzed",
		zap.String("job_id", job.ID),
		zap.Int("score", result.Score),
		zap.Int("missing", result.MissingTotal),
		zap.Int("warnings", len(result.Warnings)),
	)

	if err := writeJSON(cmd.Flag("output").Value.String(), result); err != nil {
		logger.Fatal("writing the result", zap.Error(err))
	}
}
