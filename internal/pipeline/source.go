package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store"
	"github.com/ppiankov/poldna/internal/util"
)

// Dataset is an import batch of chamber records
type Dataset struct {
	Legislators []model.Legislator        `yaml:"legislators"`
	Events      []model.VotingEvent       `yaml:"events"`
	Votes       []model.VoteCast          `yaml:"votes"`
	Responses   []model.CandidateResponse `yaml:"responses"`
}

// Validate rejects records the engine cannot interpret
func (d *Dataset) Validate() error {
	var errs []error
	for i, l := range d.Legislators {
		if l.ID == "" {
			errs = append(errs, fmt.Errorf("legislators[%d]: missing id", i))
		}
	}
	for i, e := range d.Events {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("events[%d]: missing id", i))
		}
		if e.AyeCount < 0 || e.NayCount < 0 {
			errs = append(errs, fmt.Errorf("events[%d] %s: negative tally", i, e.ID))
		}
		if e.Category != "" {
			if _, ok := model.ParseCategory(string(e.Category)); !ok {
				errs = append(errs, fmt.Errorf("events[%d] %s: unknown category %q", i, e.ID, e.Category))
			}
		}
		if e.Weight != nil && (*e.Weight < -1 || *e.Weight > 1) {
			errs = append(errs, fmt.Errorf("events[%d] %s: signed_weight outside [-1,1]", i, e.ID))
		}
	}
	for i, v := range d.Votes {
		switch v.Type {
		case model.VoteAye, model.VoteNay, model.VoteAbstain:
		default:
			errs = append(errs, fmt.Errorf("votes[%d]: unknown vote_type %q", i, v.Type))
		}
		if v.LegislatorID == "" || v.EventID == "" {
			errs = append(errs, fmt.Errorf("votes[%d]: missing legislator_id or event_id", i))
		}
	}
	for i, r := range d.Responses {
		if !r.Valid() {
			errs = append(errs, fmt.Errorf("responses[%d]: response_value %d outside 1..5", i, r.Value))
		}
		if _, ok := model.ParseCategory(string(r.Category)); !ok {
			errs = append(errs, fmt.Errorf("responses[%d]: unknown category %q", i, r.Category))
		}
	}
	return errors.Join(errs...)
}

// normalize canonicalizes category spellings
func (d *Dataset) normalize() {
	for i := range d.Events {
		if d.Events[i].Category == "" {
			continue
		}
		if c, ok := model.ParseCategory(string(d.Events[i].Category)); ok {
			d.Events[i].Category = c
		}
	}
	for i := range d.Responses {
		if c, ok := model.ParseCategory(string(d.Responses[i].Category)); ok {
			d.Responses[i].Category = c
		}
	}
}

// DecodeDataset parses a YAML dataset, rejecting unknown fields
func DecodeDataset(r io.Reader) (*Dataset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var ds Dataset
	if err := dec.Decode(&ds); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	ds.normalize()
	return &ds, nil
}

// Loader reads datasets from local files or http(s) URLs
type Loader struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithRobotsChecker makes remote loads honor the host's robots.txt
func WithRobotsChecker(rc *util.RobotsChecker) LoaderOption {
	return func(l *Loader) {
		l.robots = rc
	}
}

// NewLoader creates a new Loader with the given configuration
func NewLoader(timeout time.Duration, userAgent string, maxBytes int64, opts ...LoaderOption) *Loader {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	l := &Loader{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and decodes the dataset at location
func (l *Loader) Load(ctx context.Context, location string) (*Dataset, error) {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		body, err := l.fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		return DecodeDataset(bytes.NewReader(body))
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeDataset(io.LimitReader(f, l.maxBytes))
}

func (l *Loader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if l.robots != nil {
		if err := l.robots.Check(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "application/yaml, text/yaml;q=0.9, */*;q=0.5")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ImportSummary counts what an import wrote
type ImportSummary struct {
	Legislators int `json:"legislators"`
	Events      int `json:"events"`
	Votes       int `json:"votes"`
	Responses   int `json:"responses"`
}

// Import writes a dataset into the store. Votes already recorded for a
// (legislator, event) pair are left untouched.
func Import(ctx context.Context, st store.Store, ds *Dataset) (ImportSummary, error) {
	if err := st.UpsertLegislators(ctx, ds.Legislators); err != nil {
		return ImportSummary{}, fmt.Errorf("import legislators: %w", err)
	}
	if err := st.UpsertEvents(ctx, ds.Events); err != nil {
		return ImportSummary{}, fmt.Errorf("import events: %w", err)
	}
	if err := st.AppendVotes(ctx, ds.Votes); err != nil {
		return ImportSummary{}, fmt.Errorf("import votes: %w", err)
	}
	if err := st.UpsertResponses(ctx, ds.Responses); err != nil {
		return ImportSummary{}, fmt.Errorf("import responses: %w", err)
	}
	return ImportSummary{
		Legislators: len(ds.Legislators),
		Events:      len(ds.Events),
		Votes:       len(ds.Votes),
		Responses:   len(ds.Responses),
	}, nil
}
