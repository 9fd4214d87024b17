package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/retry"
)

// FeedConfig describes one central-bank RSS/Atom feed.
type FeedConfig struct {
	Name       string
	URL        string
	Region     core.Region
	EventType  core.EventType
	Importance core.Importance
	Ticker     string
}

// CentralBankFeeds is the default feed set.
var CentralBankFeeds = []FeedConfig{
	{
		Name:       "fed_press",
		URL:        "https://www.federalreserve.gov/feeds/press_all.xml",
		Region:     core.RegionUSA,
		EventType:  core.EventFOMCStatement,
		Importance: core.ImportanceHigh,
		Ticker:     core.TickerUSMacro,
	},
	{
		Name:       "fed_speeches",
		URL:        "https://www.federalreserve.gov/feeds/speeches.xml",
		Region:     core.RegionUSA,
		EventType:  core.EventFOMCSpeech,
		Importance: core.ImportanceHigh,
		Ticker:     core.TickerUSMacro,
	},
	{
		Name:       "fed_monetary",
		URL:        "https://www.federalreserve.gov/feeds/press_monetary.xml",
		Region:     core.RegionUSA,
		EventType:  core.EventFOMCStatement,
		Importance: core.ImportanceHigh,
		Ticker:     core.TickerUSMacro,
	},
	{
		Name:       "boe_news",
		URL:        "https://www.bankofengland.co.uk/rss/news",
		Region:     core.RegionUK,
		EventType:  core.EventBOEStatement,
		Importance: core.ImportanceHigh,
		Ticker:     core.TickerMacro,
	},
	{
		Name:       "ecb_press",
		URL:        "https://www.ecb.europa.eu/rss/press.html",
		Region:     core.RegionEU,
		EventType:  core.EventECBStatement,
		Importance: core.ImportanceHigh,
		Ticker:     core.TickerMacro,
	},
	{
		Name:       "boj_news",
		URL:        "https://www.boj.or.jp/en/rss/whatsnew.xml",
		Region:     core.RegionJapan,
		EventType:  core.EventBOJStatement,
		Importance: core.ImportanceHigh,
		Ticker:     core.TickerMacro,
	},
}

// RSSFetcher pulls one RSS or Atom feed and maps items to macro KB entries.
type RSSFetcher struct {
	feed   FeedConfig
	client *http.Client
}

// NewRSSFetcher creates a fetcher for one feed.
func NewRSSFetcher(feed FeedConfig) *RSSFetcher {
	return &RSSFetcher{
		feed:   feed,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewCentralBankFetchers creates fetchers for the default feed set.
func NewCentralBankFetchers() []Fetcher {
	out := make([]Fetcher, 0, len(CentralBankFeeds))
	for _, f := range CentralBankFeeds {
		out = append(out, NewRSSFetcher(f))
	}
	return out
}

func (r *RSSFetcher) Name() string { return "rss:" + r.feed.Name }

// Fetch downloads and parses the feed. Transient feed failures are retried
// with backoff before the fetcher reports into the pipeline summary.
func (r *RSSFetcher) Fetch(ctx context.Context) ([]core.KBEntry, error) {
	var body []byte
	err := retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feed.URL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; lse-trading)")

		resp, err := r.client.Do(req)
		if err != nil {
			return core.WrapError(core.ErrProviderFailed, fmt.Errorf("fetching feed: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retry.StatusError(resp.StatusCode,
				fmt.Errorf("unexpected status %d for %s", resp.StatusCode, r.feed.URL))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return core.WrapError(core.ErrProviderFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items, err := ParseFeed(body)
	if err != nil {
		return nil, err
	}

	entries := make([]core.KBEntry, 0, len(items))
	for _, item := range items {
		content := item.Title
		if item.Summary != "" {
			content += ". " + item.Summary
		}
		entries = append(entries, core.KBEntry{
			TS:         item.Published,
			Ticker:     r.feed.Ticker,
			Source:     r.Name(),
			Content:    content,
			EventType:  r.feed.EventType,
			Importance: r.feed.Importance,
			Region:     r.feed.Region,
			Link:       item.Link,
		})
	}
	return entries, nil
}

// FeedItem is one parsed feed entry.
type FeedItem struct {
	Title     string
	Summary   string
	Link      string
	Published time.Time
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
}

type atomDocument struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
}

// ParseFeed decodes RSS 2.0 or Atom bytes into feed items. Items without a
// parsable timestamp fall back to the current time.
func ParseFeed(data []byte) ([]FeedItem, error) {
	var rss rssDocument
	if err := xml.Unmarshal(data, &rss); err == nil && len(rss.Channel.Items) > 0 {
		items := make([]FeedItem, 0, len(rss.Channel.Items))
		for _, it := range rss.Channel.Items {
			items = append(items, FeedItem{
				Title:     strings.TrimSpace(it.Title),
				Summary:   strings.TrimSpace(stripTags(it.Description)),
				Link:      strings.TrimSpace(it.Link),
				Published: parseFeedTime(it.PubDate),
			})
		}
		return items, nil
	}

	var atom atomDocument
	if err := xml.Unmarshal(data, &atom); err == nil && len(atom.Entries) > 0 {
		items := make([]FeedItem, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			link := ""
			for _, l := range e.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			published := e.Published
			if published == "" {
				published = e.Updated
			}
			items = append(items, FeedItem{
				Title:     strings.TrimSpace(e.Title),
				Summary:   strings.TrimSpace(stripTags(e.Summary)),
				Link:      link,
				Published: parseFeedTime(published),
			})
		}
		return items, nil
	}

	return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("unrecognized feed format"))
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
