// Package content defines the capability the scheduler needs from each
// content repository and the registry that maps content types onto them.
package content

import (
	"context"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// Repository is implemented once per content type.
type Repository interface {
	Exists(ctx context.Context, id int64) (bool, error)
	Publish(ctx context.Context, id int64, strategy model.PublishStrategy) error
}

// Registry dispatches by content type. It is complete by construction:
// NewRegistry refuses a mapping that leaves a content type uncovered.
type Registry struct {
	repos map[model.ContentType]Repository
}

func NewRegistry(repos map[model.ContentType]Repository) (*Registry, error) {
	r := &Registry{repos: make(map[model.ContentType]Repository, len(model.ContentTypes))}
	for _, ct := range model.ContentTypes {
		repo, ok := repos[ct]
		if !ok || repo == nil {
			return nil, errors.Newf("content: no repository registered for %s", ct)
		}
		r.repos[ct] = repo
	}
	for ct := range repos {
		if _, ok := r.repos[ct]; !ok {
			return nil, errors.Newf("content: unknown content type %q", ct)
		}
	}
	return r, nil
}

// For returns the repository of ct.
func (r *Registry) For(ct model.ContentType) (Repository, error) {
	repo, ok := r.repos[ct]
	if !ok {
		return nil, errors.Validationf("unknown content type %q", ct)
	}
	return repo, nil
}

// Exists reports whether the content item exists.
func (r *Registry) Exists(ctx context.Context, ct model.ContentType, id int64) (bool, error) {
	repo, err := r.For(ct)
	if err != nil {
		return false, err
	}
	return repo.Exists(ctx, id)
}

// Publish publishes the content item with the given strategy.
func (r *Registry) Publish(ctx context.Context, ct model.ContentType, id int64, strategy model.PublishStrategy) error {
	repo, err := r.For(ct)
	if err != nil {
		return err
	}
	return repo.Publish(ctx, id, strategy)
}
