package jobsource

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/profile"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/resume-matcher"

	defaultPerPage  = 100
	defaultMaxPages = 20
)

// FeedConfig describes a paginated job feed.
type FeedConfig struct {
	URL string `mapstructure:"url"`
	// Query is merged into every page request, e.g. a search text.
	Query     map[string]string `mapstructure:"query"`
	PerPage   int               `mapstructure:"per-page"`
	MaxPages  int               `mapstructure:"max-pages"`
	UserAgent string            `mapstructure:"user-agent"`
	Timeout   time.Duration     `mapstructure:"timeout"`
}

// pageResponse is one page of the feed.
type pageResponse struct {
	Items   []profile.JobDescription `json:"items"`
	Found   int                      `json:"found"`
	Pages   int                      `json:"pages"`
	Page    int                      `json:"page"`
	PerPage int                      `json:"per_page"`
}

// Feed fetches jobs from an HTTP endpoint that pages its results with page
// and per_page query parameters, starting at page 0.
type Feed struct {
	cfg        FeedConfig
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
}

// NewFeed creates a feed client. token, when set, is sent as a bearer token.
func NewFeed(cfg FeedConfig, token string, log *zap.Logger) (*Feed, error) {
	if cfg.URL == "" {
		return nil, errors.New("feed url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Feed{
		cfg:        cfg,
		token:      token,
		logger:     logger.Named(log, "jobfeed"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Fetch returns the jobs from every page, up to MaxPages. Jobs without an id
// get a content-derived one.
func (f *Feed) Fetch(ctx context.Context) ([]profile.JobDescription, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	f.setHeaders(req)

	q := req.URL.Query()
	for k, v := range f.cfg.Query {
		q.Set(k, v)
	}
	q.Set("per_page", strconv.Itoa(f.cfg.PerPage))
	req.URL.RawQuery = q.Encode()

	var jobs []profile.JobDescription
	page := 0
	for {
		response, err := f.getPage(addPage(req, page))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		jobs = append(jobs, response.Items...)

		f.logger.Debug("got feed page",
			zap.Int("page", response.Page),
			zap.Int("pages", response.Pages),
			zap.Int("items", len(response.Items)),
		)

		if response.Page >= response.Pages-1 || len(response.Items) == 0 {
			break
		}
		if page+1 >= f.cfg.MaxPages {
			f.logger.Warn("feed has more pages than allowed; stopping",
				zap.Int("max_pages", f.cfg.MaxPages),
				zap.Int("pages", response.Pages),
			)
			break
		}
		page = response.Page + 1
	}

	for i := range jobs {
		AssignID(&jobs[i])
	}
	f.logger.Info("jobs fetched from feed", zap.Int("count", len(jobs)))
	return jobs, nil
}

func (f *Feed) getPage(req *http.Request) (*pageResponse, error) {
	f.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		body = gz
	}

	var response pageResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &response, nil
}

func (f *Feed) setHeaders(req *http.Request) {
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)
}

// addPage returns a copy of req asking for the given page.
func addPage(req *http.Request, page int) *http.Request {
	next := req.Clone(req.Context())
	q := next.URL.Query()
	q.Set("page", strconv.Itoa(page))
	next.URL.RawQuery = q.Encode()
	return next
}
