package gitlab

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
	"sync"
)

type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
}

// Walk requests numbered pages of path starting at 1 until a page comes back
// empty. The API has no last-page flag, so a short or full final page is
// always followed by one more request. If a page fails, the sequence ends
// early and the returned func reports a *WalkError; it returns nil after a
// walk that reached the empty page. Each range over the sequence starts a
// fresh walk. Ranges may run concurrently; the func then reports whichever
// walk finished last.
func Walk[T any](ctx context.Context, g Getter, path string, perPage int, query url.Values) (iter.Seq[T], func() error) {
	var (
		mu            sync.Mutex
		capturedError error
	)

	walk := func(yield func(T) bool) error {
		yielded := 0
		for page := 1; ; page++ {
			q := url.Values{}
			for k, v := range query {
				q[k] = append([]string(nil), v...)
			}
			q.Set("per_page", strconv.Itoa(perPage))
			q.Set("page", strconv.Itoa(page))

			raw, err := g.Get(ctx, path, q)
			if err != nil {
				return &WalkError{Path: path, Page: page, Items: yielded, Err: err}
			}

			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return &WalkError{Path: path, Page: page, Items: yielded, Err: &FetchError{
					Kind: FailureDecode,
					URL:  path,
					Err:  err,
				}}
			}

			if len(items) == 0 {
				return nil
			}

			for _, item := range items {
				if !yield(item) {
					return nil
				}
				yielded++
			}
		}
	}

	return iter.Seq[T](func(yield func(T) bool) {
			err := walk(yield)
			mu.Lock()
			capturedError = err
			mu.Unlock()
		}), func() error {
			mu.Lock()
			defer mu.Unlock()
			return capturedError
		}
}
