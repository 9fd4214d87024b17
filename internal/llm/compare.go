package llm

import (
	"context"
	"sync"
)

// CompareResult is one side-channel reply from a comparison provider.
type CompareResult struct {
	Provider string
	Model    string
	Content  string
	Err      error
}

// Comparator fans the same request out to a primary provider and a set of
// comparison providers. The primary reply drives decisions; the others are
// recorded for offline comparison only, and a provider failure is captured
// per entry rather than failing the request.
type Comparator struct {
	Primary Provider
	Others  []Provider
}

// Chat queries the primary and all comparison providers concurrently.
func (c *Comparator) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, []CompareResult, error) {
	results := make([]CompareResult, len(c.Others))

	var wg sync.WaitGroup
	for i, p := range c.Others {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			resp, err := p.Chat(ctx, req)
			results[i] = CompareResult{Provider: p.Name(), Err: err}
			if resp != nil {
				results[i].Model = resp.Model
				results[i].Content = resp.Content
			}
		}(i, p)
	}

	primary, err := c.Primary.Chat(ctx, req)
	wg.Wait()

	if err != nil {
		return nil, results, err
	}
	return primary, results, nil
}
