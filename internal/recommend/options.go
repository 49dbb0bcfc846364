package recommend

import (
	"fmt"
	"time"
)

const (
	DefaultLimit          = 10
	DefaultShortlistAbove = 100
	DefaultShortlistSize  = 50
	DefaultMaxCorpus      = 500
	DefaultWorkers        = 4
	DefaultTimeout        = 5 * time.Minute
)

// Options tune a single Recommend call. Zero values select the defaults
// above; the similarity threshold falls back to the index default.
type Options struct {
	Limit    int `mapstructure:"limit"`
	MinScore int `mapstructure:"min-score"`

	Locations   []string `mapstructure:"locations"`
	AllowRemote bool     `mapstructure:"allow-remote"`
	MinSalary   int      `mapstructure:"min-salary"`
	MaxSalary   int      `mapstructure:"max-salary"`
	ExcludeIDs  []string `mapstructure:"exclude-ids"`
	ExcludeFile string   `mapstructure:"exclude-file"`

	// Corpora larger than ShortlistAbove are narrowed to the ShortlistSize
	// jobs most similar to the résumé before full scoring.
	ShortlistAbove      int     `mapstructure:"shortlist-above"`
	ShortlistSize       int     `mapstructure:"shortlist-size"`
	SimilarityThreshold float64 `mapstructure:"similarity-threshold"`
	// MaxCorpus bounds the number of jobs scored synchronously.
	MaxCorpus int `mapstructure:"max-corpus"`

	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.ShortlistAbove <= 0 {
		o.ShortlistAbove = DefaultShortlistAbove
	}
	if o.ShortlistSize <= 0 {
		o.ShortlistSize = DefaultShortlistSize
	}
	if o.MaxCorpus <= 0 {
		o.MaxCorpus = DefaultMaxCorpus
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

func (o Options) validate() error {
	if o.MinScore < 0 || o.MinScore > 100 {
		return fmt.Errorf("min-score must be within [0, 100], got %d", o.MinScore)
	}
	if o.SimilarityThreshold < -1 || o.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity-threshold must be within [-1, 1], got %g", o.SimilarityThreshold)
	}
	return nil
}
