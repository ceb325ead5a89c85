// Package search keeps a hashtag index of post captions outside the
// transactional store. Indexing is best effort and happens after commit.
package search

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Document is the indexed view of a post.
type Document struct {
	PostID    uint
	AuthorID  uint
	Caption   string
	CreatedAt time.Time
}

type Indexer interface {
	IndexPost(ctx context.Context, doc Document) error
	RemovePosts(ctx context.Context, postIDs []uint) error
	// SearchHashtag returns post IDs tagged with tag, newest first.
	SearchHashtag(ctx context.Context, tag string, limit int) ([]uint, error)
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]{1,100})`)

// ExtractHashtags returns the distinct lower-cased tags of text in order of
// first appearance.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := lo.Map(matches, func(m []string, _ int) string { return strings.ToLower(m[1]) })
	return lo.Uniq(tags)
}

// NormalizeTag strips a leading '#' and lower-cases the tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}

// NopIndexer is used when no search backend is configured.
type NopIndexer struct{}

func (NopIndexer) IndexPost(context.Context, Document) error { return nil }

func (NopIndexer) RemovePosts(context.Context, []uint) error { return nil }

func (NopIndexer) SearchHashtag(context.Context, string, int) ([]uint, error) { return nil, nil }

// MemoryIndexer keeps the index in process. It backs tests and single node
// development setups.
type MemoryIndexer struct {
	mu   sync.RWMutex
	docs map[uint]memoryDoc
}

type memoryDoc struct {
	createdAt time.Time
	tags      []string
}

func NewMemoryIndexer() *MemoryIndexer {
	return &MemoryIndexer{docs: make(map[uint]memoryDoc)}
}

func (m *MemoryIndexer) IndexPost(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tags := ExtractHashtags(doc.Caption)
	if len(tags) == 0 {
		delete(m.docs, doc.PostID)
		return nil
	}
	m.docs[doc.PostID] = memoryDoc{createdAt: doc.CreatedAt, tags: tags}
	return nil
}

func (m *MemoryIndexer) RemovePosts(_ context.Context, postIDs []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range postIDs {
		delete(m.docs, id)
	}
	return nil
}

func (m *MemoryIndexer) SearchHashtag(_ context.Context, tag string, limit int) ([]uint, error) {
	tag = NormalizeTag(tag)
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := lo.Filter(lo.Keys(m.docs), func(id uint, _ int) bool {
		return lo.Contains(m.docs[id].tags, tag)
	})
	sortNewestFirst(ids, func(id uint) time.Time { return m.docs[id].createdAt })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func sortNewestFirst(ids []uint, createdAt func(uint) time.Time) {
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := createdAt(ids[i]), createdAt(ids[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return ids[i] > ids[j]
	})
}
