// ABOUTME: News handler fetching live headlines from a Google News style RSS feed.
// ABOUTME: Extracts a topic from the message and apologises instead of failing when the feed is down.

package builtins

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/2389/jarvis-gateway/internal/plugins"
	"github.com/2389/jarvis-gateway/internal/ttlcache"
)

const (
	feedLocale    = "hl=en-IN&gl=IN&ceid=IN:en"
	feedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	feedUnavailable = "News feed temporarily unavailable, Sir. Please try again in a few minutes."

	defaultMaxHeadlines = 6
	defaultFeedTimeout  = 10 * time.Second
	defaultFeedCacheTTL = 5 * time.Minute

	// feedCacheSize caps distinct topics kept at once.
	feedCacheSize = 64
)

var newsVocabulary = plugins.NewVocabulary(
	"news", "headline", "headlines", "cricket", "football", "sports",
	"score", "scores", "match", "matches", "latest", "trending", "happening",
	"current events", "breaking", "ipl", "world cup", "premier league", "nba",
)

// sportTopics maps message keywords to feed search queries, checked in order.
var sportTopics = []struct {
	keywords plugins.Vocabulary
	topic    string
}{
	{plugins.NewVocabulary("cricket"), "cricket"},
	{plugins.NewVocabulary("ipl"), "IPL cricket"},
	{plugins.NewVocabulary("football"), "football soccer"},
	{plugins.NewVocabulary("premier league"), "Premier League"},
	{plugins.NewVocabulary("nba"), "NBA basketball"},
	{plugins.NewVocabulary("tennis"), "tennis"},
	{plugins.NewVocabulary("f1"), "Formula 1"},
	{plugins.NewVocabulary("world cup"), "World Cup"},
}

var topicStopwords = map[string]bool{
	"latest": true, "the": true, "me": true, "some": true,
	"get": true, "give": true, "show": true,
}

// Article is one headline parsed from the feed.
type Article struct {
	Title     string
	Source    string
	Published time.Time
}

// News answers news and sports questions from an RSS feed.
type News struct {
	client  *http.Client
	baseURL string
	max     int
	timeout time.Duration
	now     func() time.Time
	cache   *ttlcache.Cache[[]Article]
	logger  *slog.Logger
}

// NewNews creates a News handler from deps. It fails when the configured
// feed URL is unusable.
func NewNews(deps Deps) (*News, error) {
	deps = deps.withDefaults()
	base := strings.TrimRight(deps.News.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("news feed url %q is not absolute", deps.News.BaseURL)
	}
	n := &News{
		client:  deps.HTTPClient,
		baseURL: base,
		max:     deps.News.MaxHeadlines,
		timeout: deps.News.Timeout,
		now:     deps.Now,
		logger:  deps.Logger.With("component", "news"),
	}
	if n.max <= 0 {
		n.max = defaultMaxHeadlines
	}
	if n.timeout <= 0 {
		n.timeout = defaultFeedTimeout
	}
	ttl := deps.News.CacheTTL
	if ttl <= 0 {
		ttl = defaultFeedCacheTTL
	}
	n.cache = ttlcache.New[[]Article](ttl, feedCacheSize, ttlcache.WithClock(deps.Now))
	return n, nil
}

// OnUnload stops the headline cache sweeper.
func (n *News) OnUnload(context.Context) error {
	n.cache.Close()
	return nil
}

func (n *News) Info() plugins.Info {
	return plugins.Info{
		Name:        NameNews,
		Version:     plugins.DefaultVersion,
		Description: "Real-time news, sports scores, and headlines",
		Priority:    9,
		Commands: []string{
			"latest news",
			"cricket news",
			"sports news",
			"headlines",
			"what's happening",
		},
	}
}

func (n *News) CanHandle(_ context.Context, message string) (bool, error) {
	return newsVocabulary.Matches(message), nil
}

func (n *News) Handle(ctx context.Context, message string, _ plugins.HandleContext) (string, error) {
	topic := extractTopic(strings.ToLower(message))
	label := "Top"
	if topic != "" {
		label = titleCase(topic)
	}

	articles, err := n.Fetch(ctx, topic)
	if err != nil {
		n.logger.Warn("news feed fetch failed", "topic", topic, "error", err)
		return feedUnavailable, nil
	}
	if len(articles) == 0 {
		return fmt.Sprintf("I couldn't fetch live %s news at the moment, Sir. Please check your internet connection.", label), nil
	}

	lines := []string{fmt.Sprintf("Here are the latest %s headlines, Sir:\n", label)}
	for i, a := range articles[:min(len(articles), n.max)] {
		line := fmt.Sprintf("  %d. **%s**", i+1, a.Title)
		if a.Source != "" {
			line += " (" + a.Source + ")"
		}
		if when := relativeDate(a.Published, n.now()); when != "" {
			line += " - " + when
		}
		lines = append(lines, line)
	}
	lines = append(lines, "\nThis is live data, Sir. Shall I look into any of these in more detail?")
	return strings.Join(lines, "\n"), nil
}

// Fetch returns the feed's articles for topic, or the top headlines when
// topic is empty. Non-empty results are reused until the cache TTL passes.
func (n *News) Fetch(ctx context.Context, topic string) ([]Article, error) {
	key := strings.ToLower(topic)
	if articles, ok := n.cache.Get(key); ok {
		return articles, nil
	}
	articles, err := n.fetch(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(articles) > 0 {
		n.cache.Put(key, articles)
	}
	return articles, nil
}

func (n *News) fetch(ctx context.Context, topic string) ([]Article, error) {
	feedURL := n.baseURL + "?" + feedLocale
	if topic != "" {
		feedURL = n.baseURL + "/search?q=" + url.QueryEscape(topic) + "&" + feedLocale
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", feedUserAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	return parseFeed(resp.Body)
}

type rssDocument struct {
	Channel *struct {
		Items []struct {
			Title   *string `xml:"title"`
			Source  string  `xml:"source"`
			PubDate string  `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

var errMalformedFeed = errors.New("malformed feed")

func parseFeed(r io.Reader) ([]Article, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc rssDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedFeed, err)
	}
	if doc.Channel == nil {
		return nil, nil
	}

	articles := make([]Article, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		a := Article{Title: "No title", Source: strings.TrimSpace(item.Source)}
		if item.Title != nil {
			a.Title = strings.TrimSpace(*item.Title)
		}
		a.Published = parsePubDate(item.PubDate)
		articles = append(articles, a)
	}
	return articles, nil
}

func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// relativeDate renders recent times as "Xm ago" or "Xh ago" and older ones as
// "Jan 02". The zero time renders as "".
func relativeDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := max(now.Sub(t), 0)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return t.Format("Jan 02")
	}
}

// extractTopic finds a search topic in a lower-cased message: a known sport,
// the text after "about", or the word before "news". Returns "" for the
// top headlines.
func extractTopic(msg string) string {
	for _, s := range sportTopics {
		if s.keywords.Matches(msg) {
			return s.topic
		}
	}

	if _, after, ok := strings.Cut(msg, "about"); ok {
		if topic := strings.TrimRight(strings.TrimSpace(after), "?.!"); topic != "" {
			return topic
		}
	}

	words := strings.Fields(msg)
	for i, w := range words {
		if w == "news" {
			if i > 0 && !topicStopwords[words[i-1]] {
				return words[i-1]
			}
			break
		}
	}
	return ""
}
