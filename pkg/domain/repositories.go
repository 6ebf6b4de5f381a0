package domain

import (
	"context"
)

// Repository is an image repository of the platform, addressed as
// "owner/name". Like users, repositories are owned by the main application
// and are read-only here.
type Repository struct {
	Id       int64
	OwnerId  int64
	Owner    string
	Name     string
	Public   bool
	Official bool
}

func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Tag is one entry of the tag catalog. Timestamps are epoch milliseconds:
// CreatedAt is set once when the tag is first observed, PushedAt moves
// forward on every applied push event.
type Tag struct {
	Id           int64
	RepositoryId int64
	Name         string
	Digest       string
	Size         int64
	CreatedAt    int64
	PushedAt     int64
}

type RepositoryRepository interface {
	FindByOwnerAndName(ctx context.Context, owner, name string) (*Repository, error)
}

// TagRepository is the tag catalog store. Save has upsert semantics keyed by
// (RepositoryId, Name): an existing row keeps its Id and CreatedAt, every
// other column is overwritten. Implementations must make Save atomic with
// respect to concurrent saves of the same key.
type TagRepository interface {
	FindByRepositoryAndName(ctx context.Context, repositoryId int64, name string) (*Tag, error)
	FindByRepository(ctx context.Context, repositoryId int64) ([]Tag, error)
	Save(ctx context.Context, tag *Tag) error
}

// Cache is the invalidation surface for derived repository/tag views. The
// tag sync path clears it wholesale after every applied event.
type Cache interface {
	ClearAll()
}
