// ABOUTME: Tests for the news handler against an httptest RSS feed.

package builtins

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/jarvis-gateway/internal/config"
)

var newsNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Top stories</title>
<item><title>Stark Industries unveils arc reactor</title><source url="https://example.com">Daily Bugle</source><pubDate>Wed, 04 Mar 2026 11:30:00 GMT</pubDate></item>
<item><title>India win the series</title><source url="https://example.com">Sports Desk</source><pubDate>Wed, 04 Mar 2026 09:00:00 GMT</pubDate></item>
<item><title>Markets steady</title><pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate></item>
<item><title>Undated story</title></item>
</channel></rss>`

type feedServer struct {
	*httptest.Server

	mu      sync.Mutex
	path    string
	query   string
	agent   string
	status  int
	payload string
	hits    int
}

func (fs *feedServer) Hits() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits
}

func newFeedServer(t *testing.T, payload string) *feedServer {
	t.Helper()
	fs := &feedServer{status: http.StatusOK, payload: payload}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits++
		fs.path = r.URL.Path
		fs.query = r.URL.Query().Get("q")
		fs.agent = r.Header.Get("User-Agent")
		status, body := fs.status, fs.payload
		fs.mu.Unlock()

		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func newTestNews(t *testing.T, baseURL string, maxHeadlines int) *News {
	t.Helper()
	n, err := NewNews(Deps{
		News:   config.NewsConfig{BaseURL: baseURL, MaxHeadlines: maxHeadlines, Timeout: 2 * time.Second},
		Probe:  stubProbe{},
		Now:    func() time.Time { return newsNow },
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.OnUnload(context.Background()) })
	return n
}

func TestNews_TopHeadlines(t *testing.T) {
	fs := newFeedServer(t, sampleFeed)
	n := newTestNews(t, fs.URL+"/rss", 3)

	reply := ask(t, n, "What's the latest news?")

	assert.Equal(t, "Here are the latest Top headlines, Sir:\n\n"+
		"  1. **Stark Industries unveils arc reactor** (Daily Bugle) - 30m ago\n"+
		"  2. **India win the series** (Sports Desk) - 3h ago\n"+
		"  3. **Markets steady** - Mar 02\n"+
		"\nThis is live data, Sir. Shall I look into any of these in more detail?", reply)
	assert.Equal(t, "/rss", fs.path)
	assert.Equal(t, feedUserAgent, fs.agent)
}

func TestNews_TopicSearch(t *testing.T) {
	fs := newFeedServer(t, sampleFeed)
	n := newTestNews(t, fs.URL+"/rss", 1)

	reply := ask(t, n, "any IPL scores?")

	assert.Contains(t, reply, "Here are the latest Ipl Cricket headlines, Sir:")
	assert.Equal(t, "/rss/search", fs.path)
	assert.Equal(t, "IPL cricket", fs.query)
}

func TestNews_FeedFailureApologises(t *testing.T) {
	fs := newFeedServer(t, "")
	fs.status = http.StatusBadGateway
	n := newTestNews(t, fs.URL, 6)

	reply := ask(t, n, "breaking news")

	assert.Equal(t, feedUnavailable, reply)
	assert.NotContains(t, reply, fs.URL)
	assert.NotContains(t, reply, "502")
}

func TestNews_TransportErrorIsNotLeaked(t *testing.T) {
	fs := newFeedServer(t, sampleFeed)
	base := fs.URL + "/rss"
	fs.Close()
	n := newTestNews(t, base, 6)

	reply := ask(t, n, "breaking news")

	assert.Equal(t, feedUnavailable, reply)
	assert.NotContains(t, reply, base)
	assert.NotContains(t, reply, "connect")
}

func TestNews_EmptyFeed(t *testing.T) {
	fs := newFeedServer(t, `<rss><channel><title>nothing</title></channel></rss>`)
	n := newTestNews(t, fs.URL, 6)

	reply := ask(t, n, "headlines please")

	assert.Equal(t, "I couldn't fetch live Top news at the moment, Sir. Please check your internet connection.", reply)
}

func TestNews_Latin1Feed(t *testing.T) {
	feed := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>" +
		"<rss><channel><item><title>Caf\xe9 opens</title></item></channel></rss>"
	fs := newFeedServer(t, feed)
	n := newTestNews(t, fs.URL, 6)

	reply := ask(t, n, "news")

	assert.Contains(t, reply, "**Café opens**")
}

func TestNews_CachesPerTopic(t *testing.T) {
	fs := newFeedServer(t, sampleFeed)
	n := newTestNews(t, fs.URL, 6)

	first := ask(t, n, "latest news")
	second := ask(t, n, "headlines")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fs.Hits(), "top headlines are served from cache")

	ask(t, n, "cricket news")
	ask(t, n, "CRICKET news")
	assert.Equal(t, 2, fs.Hits(), "a new topic fetches once")
}

func TestNews_FailuresAreNotCached(t *testing.T) {
	fs := newFeedServer(t, sampleFeed)
	fs.status = http.StatusServiceUnavailable
	n := newTestNews(t, fs.URL, 6)

	assert.Contains(t, ask(t, n, "news"), "temporarily unavailable")

	fs.mu.Lock()
	fs.status = http.StatusOK
	fs.mu.Unlock()

	assert.Contains(t, ask(t, n, "news"), "Stark Industries")
	assert.Equal(t, 2, fs.Hits())
}

func TestNewNews_RejectsRelativeURL(t *testing.T) {
	_, err := NewNews(Deps{News: config.NewsConfig{BaseURL: "news.google.com/rss"}, Probe: stubProbe{}})
	assert.Error(t, err)
}

func TestExtractTopic(t *testing.T) {
	tests := []struct {
		msg, want string
	}{
		{"cricket news", "cricket"},
		{"how did the nba finals go", "NBA basketball"},
		{"any f1 results", "Formula 1"},
		{"news about quantum computing?", "quantum computing"},
		{"tech news", "tech"},
		{"show me the latest news", ""},
		{"give news", ""},
		{"news", ""},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTopic(tt.msg))
		})
	}
}

func TestRelativeDate(t *testing.T) {
	assert.Equal(t, "", relativeDate(time.Time{}, newsNow))
	assert.Equal(t, "0m ago", relativeDate(newsNow.Add(time.Minute), newsNow))
	assert.Equal(t, "59m ago", relativeDate(newsNow.Add(-59*time.Minute), newsNow))
	assert.Equal(t, "23h ago", relativeDate(newsNow.Add(-23*time.Hour), newsNow))
	assert.Equal(t, "Mar 01", relativeDate(newsNow.Add(-72*time.Hour), newsNow))
}
