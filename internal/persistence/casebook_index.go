package persistence

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/triage-service/internal/domain"
)

const (
	casebookEntryKeyPrefix   = "casebook:entry:"
	casebookKeywordKeyPrefix = "casebook:kw:"
)

// CasebookIndex maintains a keyword inverted index over casebook entries in
// Redis. It is a hot lookup only, never authoritative: the workflow engine's
// in-memory corpus is the source of truth and the index is rebuilt from it.
type CasebookIndex struct {
	client *redis.Client
}

// NewCasebookIndex wraps the shared Redis client.
func NewCasebookIndex(r *Redis) *CasebookIndex {
	if r == nil || r.Client == nil {
		return nil
	}
	return &CasebookIndex{client: r.Client}
}

// Index stores the entry and adds its id to every keyword set.
func (i *CasebookIndex) Index(ctx context.Context, entry domain.CasebookEntry) error {
	if i == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := i.client.Pipeline()
	pipe.Set(ctx, casebookEntryKeyPrefix+entry.ID, data, 0)
	for _, keyword := range entry.Keywords {
		pipe.SAdd(ctx, casebookKeywordKeyPrefix+keyword, entry.ID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Remove deletes the entry and unlinks it from every keyword set.
func (i *CasebookIndex) Remove(ctx context.Context, entry domain.CasebookEntry) error {
	if i == nil {
		return nil
	}
	pipe := i.client.Pipeline()
	pipe.Del(ctx, casebookEntryKeyPrefix+entry.ID)
	for _, keyword := range entry.Keywords {
		pipe.SRem(ctx, casebookKeywordKeyPrefix+keyword, entry.ID)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// LookupByKeyword returns entries indexed under a keyword.
func (i *CasebookIndex) LookupByKeyword(ctx context.Context, keyword string) ([]domain.CasebookEntry, error) {
	if i == nil {
		return nil, nil
	}
	ids, err := i.client.SMembers(ctx, casebookKeywordKeyPrefix+keyword).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.CasebookEntry, 0, len(ids))
	for _, id := range ids {
		data, err := i.client.Get(ctx, casebookEntryKeyPrefix+id).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, err
		}
		var entry domain.CasebookEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
