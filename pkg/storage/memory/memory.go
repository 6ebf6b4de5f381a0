// Package memory provides config-seeded in-memory implementations of the
// catalog stores. The user and repository directories are read-only
// snapshots; the tag store is mutable and safe for concurrent use.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dockerplatform/registry-gate/pkg/domain"
)

type UserRepository struct {
	users map[string]domain.User
}

func NewUserRepository(users []domain.User) *UserRepository {
	byUsername := make(map[string]domain.User, len(users))
	for _, user := range users {
		byUsername[user.Username] = user
	}
	return &UserRepository{users: byUsername}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, found := r.users[username]
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, username)
	}
	return &user, nil
}

type RepositoryRepository struct {
	repositories map[string]domain.Repository
}

func NewRepositoryRepository(repositories []domain.Repository) *RepositoryRepository {
	byFullName := make(map[string]domain.Repository, len(repositories))
	for _, repo := range repositories {
		byFullName[repo.FullName()] = repo
	}
	return &RepositoryRepository{repositories: byFullName}
}

func (r *RepositoryRepository) FindByOwnerAndName(ctx context.Context, owner, name string) (*domain.Repository, error) {
	repo, found := r.repositories[owner+"/"+name]
	if !found {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRepositoryNotFound, owner, name)
	}
	return &repo, nil
}

type TagRepository struct {
	mu     sync.Mutex
	nextId int64
	tags   map[tagKey]domain.Tag
}

type tagKey struct {
	repositoryId int64
	name         string
}

func NewTagRepository() *TagRepository {
	return &TagRepository{tags: make(map[tagKey]domain.Tag)}
}

func (r *TagRepository) FindByRepositoryAndName(ctx context.Context, repositoryId int64, name string) (*domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag, found := r.tags[tagKey{repositoryId, name}]
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrTagNotFound, name)
	}
	return &tag, nil
}

func (r *TagRepository) FindByRepository(ctx context.Context, repositoryId int64) ([]domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tags []domain.Tag
	for key, tag := range r.tags {
		if key.repositoryId == repositoryId {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

// Save upserts by (RepositoryId, Name) under a single lock. An existing
// entry keeps its Id and CreatedAt even when the caller raced another
// delivery into the create branch.
func (r *TagRepository) Save(ctx context.Context, tag *domain.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := tagKey{tag.RepositoryId, tag.Name}

	if existing, found := r.tags[key]; found {
		tag.Id = existing.Id
		tag.CreatedAt = existing.CreatedAt
	} else {
		r.nextId++
		tag.Id = r.nextId
	}

	r.tags[key] = *tag
	return nil
}
