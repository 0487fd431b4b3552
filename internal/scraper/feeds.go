package scraper

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"venue-discovery/internal/constants"
	"venue-discovery/internal/extractor"
	"venue-discovery/internal/models"
	"venue-discovery/pkg/circuit"
	errs "venue-discovery/pkg/errors"
	"venue-discovery/pkg/logging"
)

// QueryPlaceholder in a feed URL is replaced by the escaped destination.
const QueryPlaceholder = "{query}"

// recentWindow is how old a post may be to count as recent activity.
const recentWindow = 90 * 24 * time.Hour

// RawPost is one feed item reduced to plain text.
type RawPost struct {
	Feed      string
	Title     string
	Text      string
	Link      string
	Published time.Time
}

type FeedOptions struct {
	Name          string
	URLs          []string // may contain QueryPlaceholder
	MinConfidence float64
	MaxItems      int // per feed, 0 means all
	HTTPClient    *http.Client
	KnownVenues   []string
	Logger        *logging.ComponentLogger
}

// FeedSource turns RSS/Atom posts about a destination into venue mentions
// using the entity extractor.
type FeedSource struct {
	name    string
	urls    []string
	minConf float64
	max     int
	parser  *gofeed.Parser
	ext     *extractor.Extractor
	breaker *circuit.Breaker
	log     *logging.ComponentLogger
	now     func() time.Time
}

func NewFeedSource(opts FeedOptions) *FeedSource {
	if opts.Name == "" {
		opts.Name = "feeds"
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = constants.ExtractionMinConfidence
	}
	p := gofeed.NewParser()
	p.UserAgent = "venue-discovery/1.0"
	if opts.HTTPClient != nil {
		p.Client = opts.HTTPClient
	} else {
		p.Client = &http.Client{Timeout: constants.FeedFetchTimeout}
	}

	cfg := circuit.DefaultConfig("feed_" + opts.Name)
	cfg.OperationTimeout = constants.FeedFetchTimeout
	cfg.OpenFor = constants.FeedOpenFor
	return &FeedSource{
		name:    opts.Name,
		urls:    append([]string(nil), opts.URLs...),
		minConf: opts.MinConfidence,
		max:     opts.MaxItems,
		parser:  p,
		ext:     extractor.New(extractor.WithSourceType(models.SourceSocial), extractor.WithKnownVenues(opts.KnownVenues...)),
		breaker: circuit.New(cfg, opts.Logger.With(logging.String("breaker", cfg.Name))),
		log:     opts.Logger,
		now:     time.Now,
	}
}

func (s *FeedSource) Name() string            { return s.name }
func (s *FeedSource) Type() models.SourceType { return models.SourceSocial }
func (s *FeedSource) Priority() int           { return constants.PrioritySocial }

func (s *FeedSource) Breaker() *circuit.Breaker { return s.breaker }

// Fetch reads every configured feed for query. A feed that fails is logged
// and skipped; the error is returned only when all of them fail.
func (s *FeedSource) Fetch(ctx context.Context, query string) ([]RawPost, error) {
	if len(s.urls) == 0 {
		return nil, errs.NewValidation("scraper.Feed.Fetch", "no feed URLs configured", nil)
	}
	var (
		posts   []RawPost
		lastErr error
		failed  int
	)
	for _, tmpl := range s.urls {
		u := strings.ReplaceAll(tmpl, QueryPlaceholder, url.QueryEscape(query))
		feed, err := circuit.Execute(ctx, s.breaker, func(ctx context.Context) (*gofeed.Feed, error) {
			return s.parser.ParseURLWithContext(u, ctx)
		})
		if err != nil {
			failed++
			lastErr = err
			s.log.Warn("feed fetch failed", logging.String("url", u), logging.Error(err))
			continue
		}
		for i, item := range feed.Items {
			if s.max > 0 && i == s.max {
				break
			}
			posts = append(posts, toPost(feed.Title, item))
		}
	}
	if failed == len(s.urls) {
		return nil, errs.NewExternal("scraper.Feed.Fetch", "feed", "all feeds failed", lastErr)
	}
	return posts, nil
}

func toPost(feedTitle string, item *gofeed.Item) RawPost {
	body := item.Content
	if body == "" {
		body = item.Description
	}
	p := RawPost{
		Feed:  feedTitle,
		Title: strings.TrimSpace(item.Title),
		Text:  htmlText(body),
		Link:  item.Link,
	}
	switch {
	case item.PublishedParsed != nil:
		p.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		p.Published = *item.UpdatedParsed
	}
	return p
}

// htmlText strips markup, keeping block boundaries as sentence breaks.
func htmlText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style").Remove()
	var parts []string
	doc.Find("p, li, h1, h2, h3, h4, blockquote").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		parts = []string{doc.Text()}
	}
	return strings.Join(strings.Fields(strings.Join(parts, ". ")), " ")
}

type mention struct {
	cand      extractor.Candidate
	posts     int
	sentiment float64
	links     []string
	recent    bool
}

// Discover extracts venue names from posts about the destination. Each post
// counts at most once per venue.
func (s *FeedSource) Discover(ctx context.Context, req models.RequestContext) ([]*models.Venue, error) {
	posts, err := s.Fetch(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	byName := map[string]*mention{}
	now := s.now()
	for _, p := range posts {
		text := p.Text
		if p.Title != "" {
			text = p.Title + ". " + text
		}
		cands := extractor.FilterByConfidence(s.ext.Extract(text), s.minConf)
		for _, c := range cands {
			key := strings.ToLower(c.Name)
			m, ok := byName[key]
			if !ok {
				m = &mention{cand: c}
				byName[key] = m
			} else if c.Confidence > m.cand.Confidence {
				m.cand = c
			}
			m.posts++
			m.sentiment += extractor.Sentiment(c.Context)
			if p.Link != "" {
				m.links = append(m.links, p.Link)
			}
			if !p.Published.IsZero() && now.Sub(p.Published) <= recentWindow {
				m.recent = true
			}
		}
	}

	keys := make([]string, 0, len(byName))
	for k := range byName {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*models.Venue, 0, len(keys))
	for _, k := range keys {
		m := byName[k]
		cat := m.cand.Category
		if !cat.IsValid() {
			cat = models.CategoryAttraction
		}
		v := models.NewVenue(m.cand.Name, cat)
		v.Description = m.cand.Context
		v.AnalysisScore = m.cand.Confidence * 100
		v.Metadata["extraction_rule"] = m.cand.Rule
		v.AddSource(models.VenueSource{
			Type: models.SourceSocial,
			RawData: map[string]any{
				"feed":     s.name,
				"links":    m.links,
				"mentions": m.posts,
			},
			Timestamp: now,
		})
		avg := m.sentiment / float64(m.posts)
		v.UpdateSignals(func(qs *models.QualitySignals) {
			qs.MentionFrequency = m.posts
			qs.SentimentScore = avg
			qs.HasRecentActivity = m.recent
		})
		out = append(out, v)
	}
	s.log.Debug("feed discovery",
		logging.String("feed", s.name),
		logging.Int("posts", len(posts)),
		logging.Int("venues", len(out)))
	return out, nil
}
