package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dockerplatform/registry-gate/pkg"
	"github.com/dockerplatform/registry-gate/pkg/cache"
	"github.com/dockerplatform/registry-gate/pkg/domain"
)

type tagView struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"createdAt"`
	PushedAt  int64  `json:"pushedAt"`
}

type tagsHandler struct {
	repositories domain.RepositoryRepository
	tags         domain.TagRepository
	listings     *cache.ListingCache
}

func NewTagsHandler(repositories domain.RepositoryRepository, tags domain.TagRepository, listings *cache.ListingCache) *tagsHandler {
	return &tagsHandler{
		repositories: repositories,
		tags:         tags,
		listings:     listings,
	}
}

// ServeHTTP lists the tags of one repository, read-through cached. The tag
// sync path flushes the cache on every applied event, so listings are never
// staler than the last push plus the cache TTL.
func (h *tagsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := pkg.LoggerFromContext(r.Context())

	vars := mux.Vars(r)
	owner, name := vars["owner"], vars["name"]

	repo, err := h.repositories.FindByOwnerAndName(r.Context(), owner, name)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if tags, found := h.listings.GetTags(repo.FullName()); found {
		writeJson(w, http.StatusOK, toTagViews(tags))
		return
	}

	tags, err := h.tags.FindByRepository(r.Context(), repo.Id)
	if err != nil {
		logger.WithError(err).Error("Unable to list tags")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.listings.SetTags(repo.FullName(), tags)

	writeJson(w, http.StatusOK, toTagViews(tags))
}

func toTagViews(tags []domain.Tag) []tagView {
	views := make([]tagView, 0, len(tags))
	for _, tag := range tags {
		views = append(views, tagView{
			Name:      tag.Name,
			Digest:    tag.Digest,
			Size:      tag.Size,
			CreatedAt: tag.CreatedAt,
			PushedAt:  tag.PushedAt,
		})
	}
	return views
}
