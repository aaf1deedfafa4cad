package fakestore

import (
	"context"
	"sync"
	"time"

	"github.com/Nixie-Tech-LLC/premiere/internal/content"
	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// Item is the fake view of one content row.
type Item struct {
	Published   bool
	PublishedAt *time.Time
	Strategy    model.PublishStrategy
	Publishes   int
}

// Content is an in-memory content.Repository for one content type.
type Content struct {
	mu    sync.Mutex
	items map[int64]*Item
	fail  map[int64]error
	delay time.Duration
}

var _ content.Repository = (*Content)(nil)

func NewContent(ids ...int64) *Content {
	c := &Content{items: map[int64]*Item{}, fail: map[int64]error{}}
	for _, id := range ids {
		c.items[id] = &Item{}
	}
	return c
}

// Add registers more content ids.
func (c *Content) Add(ids ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, ok := c.items[id]; !ok {
			c.items[id] = &Item{}
		}
	}
}

// FailWith makes every publish of id return err.
func (c *Content) FailWith(id int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[id] = err
}

// SlowDown makes every publish wait d or until the context ends.
func (c *Content) SlowDown(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// Get returns a copy of the item state.
func (c *Content) Get(id int64) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

func (c *Content) Exists(_ context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok, nil
}

func (c *Content) Publish(ctx context.Context, id int64, strategy model.PublishStrategy) error {
	c.mu.Lock()
	delay := c.delay
	c.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "publish %d", id)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail[id]; err != nil {
		return err
	}
	it, ok := c.items[id]
	if !ok {
		return errors.NotFoundf("content %d no longer exists", id)
	}
	it.Publishes++
	it.Published = true
	it.Strategy = strategy
	if it.PublishedAt == nil {
		now := time.Now()
		it.PublishedAt = &now
	}
	return nil
}

// Registry builds a content.Registry where every content type is served by
// its own fake; the fakes are returned for inspection.
func Registry(ids ...int64) (*content.Registry, map[model.ContentType]*Content) {
	fakes := make(map[model.ContentType]*Content, len(model.ContentTypes))
	repos := make(map[model.ContentType]content.Repository, len(model.ContentTypes))
	for _, ct := range model.ContentTypes {
		c := NewContent(ids...)
		fakes[ct] = c
		repos[ct] = c
	}
	reg, err := content.NewRegistry(repos)
	if err != nil {
		panic(err)
	}
	return reg, fakes
}
