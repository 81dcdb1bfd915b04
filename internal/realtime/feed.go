package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type feedDoc struct {
	Items []json.RawMessage `json:"items"`
}

type feedItemID struct {
	ID string `json:"id"`
}

// AppendFeed prepends item to the capped feed at key. Items are JSON objects
// carrying an "id"; an item whose id is already present is not added again.
func AppendFeed(ctx context.Context, s Store, key string, item json.RawMessage, limit, attempts int) (Entry, error) {
	var probe feedItemID
	if err := json.Unmarshal(item, &probe); err != nil {
		return Entry{}, fmt.Errorf("decode feed item: %w", err)
	}
	if probe.ID == "" {
		return Entry{}, errors.New("feed item has no id")
	}
	if limit < 1 {
		limit = 1
	}
	return Mutate(ctx, s, key, attempts, func(current []byte, found bool) ([]byte, error) {
		var doc feedDoc
		if found && len(current) > 0 {
			if err := json.Unmarshal(current, &doc); err != nil {
				// A corrupt feed is advisory data; start it over.
				doc = feedDoc{}
			}
		}
		for _, existing := range doc.Items {
			var id feedItemID
			if json.Unmarshal(existing, &id) == nil && id.ID == probe.ID {
				return current, nil
			}
		}
		items := make([]json.RawMessage, 0, len(doc.Items)+1)
		items = append(items, item)
		items = append(items, doc.Items...)
		if len(items) > limit {
			items = items[:limit]
		}
		return json.Marshal(feedDoc{Items: items})
	})
}

// ReadFeed returns the feed items newest first. A missing feed is empty.
func ReadFeed(ctx context.Context, s Store, key string) ([]json.RawMessage, error) {
	e, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc feedDoc
	if err := json.Unmarshal(e.Value, &doc); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", key, err)
	}
	if doc.Items == nil {
		doc.Items = []json.RawMessage{}
	}
	return doc.Items, nil
}
