// Package sync keeps the tag catalog consistent with push notifications
// delivered by the registry.
package sync

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dockerplatform/registry-gate/pkg"
	"github.com/dockerplatform/registry-gate/pkg/domain"
	"github.com/dockerplatform/registry-gate/pkg/registry"
)

type Service struct {
	repositories domain.RepositoryRepository
	tags         domain.TagRepository
	cache        domain.Cache
}

func NewService(repositories domain.RepositoryRepository, tags domain.TagRepository, cache domain.Cache) *Service {
	return &Service{
		repositories: repositories,
		tags:         tags,
		cache:        cache,
	}
}

// HandleNotification applies every applicable event of the batch to the tag
// catalog. Events are processed sequentially and independently: a failing
// event is logged and dropped, the rest of the batch still runs. All events
// of one batch share a single observation timestamp.
func (s *Service) HandleNotification(ctx context.Context, notification *registry.Notification) error {
	if notification == nil || len(notification.Events) == 0 {
		return nil
	}

	logger := pkg.LoggerFromContext(ctx)
	now := time.Now().UnixMilli()

	for _, event := range notification.Events {
		// skip deletes, pulls, untagged blob events and anything else that
		// is not a complete tag push
		if !event.IsTagPush() {
			continue
		}

		err := s.UpdateTag(ctx, event.Target.Repository, event.Target.Tag, event.Target.Digest, event.Target.Length, now)
		if err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"repository": event.Target.Repository,
				"tag":        event.Target.Tag,
			}).Error("Unable to apply registry event to tag catalog")
		}
	}

	return nil
}

// UpdateTag creates or updates the catalog entry for (repository, tag).
// CreatedAt is set only when the tag is first observed; Digest, Size and
// PushedAt follow every applied event. A malformed repository name or an
// unknown repository makes the call a silent no-op: webhook delivery is
// fire-and-forget and must never bounce the HTTP response to the registry.
func (s *Service) UpdateTag(ctx context.Context, repositoryFullName, tagName, digest string, length int64, observedAt int64) error {
	logger := pkg.LoggerFromContext(ctx)

	ref, err := domain.ParseReference(repositoryFullName)
	if err != nil {
		logger.Debugf("Dropping event for unparseable repository name '%s'", repositoryFullName)
		return nil
	}

	repo, err := s.repositories.FindByOwnerAndName(ctx, ref.Owner, ref.Name)
	if err != nil {
		logger.Debugf("Dropping event for unknown repository '%s'", repositoryFullName)
		return nil
	}

	tag, err := s.tags.FindByRepositoryAndName(ctx, repo.Id, tagName)
	if err != nil {
		tag = &domain.Tag{
			RepositoryId: repo.Id,
			Name:         tagName,
			CreatedAt:    observedAt,
		}
	}

	tag.Digest = digest
	tag.PushedAt = observedAt
	if length > 0 {
		tag.Size = length
	} else {
		tag.Size = 0
	}

	if err := s.tags.Save(ctx, tag); err != nil {
		return err
	}

	// Coarse on purpose: derived repository/tag views may be cached under
	// keys this service cannot enumerate, so every applied event clears
	// everything.
	s.cache.ClearAll()

	logger.WithFields(log.Fields{
		"repository": repositoryFullName,
		"tag":        tagName,
		"digest":     digest,
	}).Info("Tag catalog updated")

	return nil
}
