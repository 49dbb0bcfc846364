package cmd

import (
	"context"

	"github.com/spigell/resume-matcher/internal/jobsource"
	"github.com/spigell/resume-matcher/internal/keywords"
	"github.com/spigell/resume-matcher/internal/profile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest-keywords",
	Short: "Suggest keywords a résumé should add for a target role",
	Run: func(cmd *cobra.Command, _ []string) {
		suggestKeywords(cmd)
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().StringP("resume", "r", "", "candidate profile file")
	suggestCmd.Flags().String("role", "", "target role, e.g. \"Senior Go Engineer\"")

	suggestCmd.MarkFlagRequired("resume")
	suggestCmd.MarkFlagRequired("role")
}

func suggestKeywords(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := bootstrap(cmd.Name())

	resume, err := jobsource.LoadCandidate(cmd.Flag("resume").Value.String())
	if err != nil {
		logger.Fatal("loading the résumé", zap.Error(err))
	}

	caps, err := buildAI(ctx, config, logger)
	if err != nil {
		logger.Fatal("configuring ai", zap.Error(err))
	}
	if caps.generator == nil {
		logger.Warn("ai is disabled; no suggestions can be made", zap.String("hint", "set ai.enabled in the config"))
	}

	extractor := keywords.NewExtractor(caps.generator, logger,
		keywords.WithTimeout(config.Timeouts.Extraction),
		keywords.WithMaxLogLength(maxLogLength(config)),
	)

	// the résumé's own keywords are not worth suggesting again; the
	// strongest skills lead the prompt
	current := resume.SkillNamesByLevel()
	extracted := extractor.Extract(ctx, profile.ResumeText(resume), keywords.SourceResume, keywords.AllCategories)
	current = append(current, extracted.Keywords.Flatten().Items()...)

	suggestions := extractor.Suggest(ctx, current, cmd.Flag("role").Value.String())
	logger.Info("keywords suggested", zap.Int("count", len(suggestions)))

	if err := writeJSON("", suggestions); err != nil {
		logger.Fatal("writing the result", zap.Error(err))
	}
}
