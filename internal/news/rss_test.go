package news

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Press Releases</title>
    <item>
      <title>Federal Reserve issues FOMC statement</title>
      <description>&lt;p&gt;The Committee decided to maintain the target range.&lt;/p&gt;</description>
      <link>https://www.federalreserve.gov/newsevents/pressreleases/monetary20250319a.htm</link>
      <pubDate>Wed, 19 Mar 2025 18:00:00 -0400</pubDate>
    </item>
    <item>
      <title>Speech by Chair</title>
      <description>Remarks on the economic outlook</description>
      <link>https://www.federalreserve.gov/newsevents/speech/a.htm</link>
      <pubDate>Tue, 18 Mar 2025 10:00:00 -0400</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>News</title>
  <entry>
    <title>Monetary Policy Summary</title>
    <summary>Bank Rate maintained at 4.5%</summary>
    <link rel="alternate" href="https://www.bankofengland.co.uk/monetary-policy-summary"/>
    <published>2025-03-20T12:00:00Z</published>
  </entry>
</feed>`

func TestParseFeed_RSS(t *testing.T) {
	items, err := ParseFeed([]byte(sampleRSS))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Federal Reserve issues FOMC statement", items[0].Title)
	assert.Equal(t, "The Committee decided to maintain the target range.", items[0].Summary)
	assert.Equal(t, "https://www.federalreserve.gov/newsevents/pressreleases/monetary20250319a.htm", items[0].Link)
	assert.Equal(t, time.Date(2025, 3, 19, 22, 0, 0, 0, time.UTC), items[0].Published)
}

func TestParseFeed_Atom(t *testing.T) {
	items, err := ParseFeed([]byte(sampleAtom))
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Monetary Policy Summary", items[0].Title)
	assert.Equal(t, "https://www.bankofengland.co.uk/monetary-policy-summary", items[0].Link)
}

func TestParseFeed_Garbage(t *testing.T) {
	_, err := ParseFeed([]byte("this is not xml"))
	assert.Error(t, err)
}

func TestCentralBankFeeds_Mapping(t *testing.T) {
	// Every feed must target a macro sentinel with HIGH importance.
	for _, f := range CentralBankFeeds {
		assert.True(t, f.Ticker == "MACRO" || f.Ticker == "US_MACRO", f.Name)
		assert.Equal(t, "HIGH", string(f.Importance), f.Name)
		assert.NotEmpty(t, f.URL, f.Name)
	}
	assert.Len(t, NewCentralBankFetchers(), len(CentralBankFeeds))
}
