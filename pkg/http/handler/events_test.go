package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockerplatform/registry-gate/pkg/domain"
	domainsync "github.com/dockerplatform/registry-gate/pkg/domain/sync"
	"github.com/dockerplatform/registry-gate/pkg/storage/memory"
)

type noopCache struct{}

func (noopCache) ClearAll() {}

func newEventsHandlerFixture() (http.Handler, *memory.TagRepository) {
	repositories := memory.NewRepositoryRepository([]domain.Repository{
		{Id: 10, OwnerId: 1, Owner: "alice", Name: "webapp"},
	})
	tags := memory.NewTagRepository()

	return NewEventsHandler(domainsync.NewService(repositories, tags, noopCache{})), tags
}

func postEvents(h http.Handler, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/registry/events", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/vnd.docker.distribution.events.v1+json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestEventsEndpointAppliesPush(t *testing.T) {
	h, tags := newEventsHandlerFixture()

	w := postEvents(h, `{
		"events": [{
			"action": "manifest.push",
			"target": {"repository": "alice/webapp", "tag": "v2", "digest": "sha256:deadbeef", "length": 2048}
		}]
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	tag, err := tags.FindByRepositoryAndName(context.Background(), 10, "v2")
	require.NoError(t, err)
	assert.Equal(t, "sha256:deadbeef", tag.Digest)
	assert.Equal(t, int64(2048), tag.Size)
}

func TestEventsEndpointAlwaysRespondsOk(t *testing.T) {
	h, tags := newEventsHandlerFixture()

	// malformed body must not surface an error status: the registry would
	// retry the delivery
	assert.Equal(t, http.StatusOK, postEvents(h, `{not json`).Code)
	assert.Equal(t, http.StatusOK, postEvents(h, ``).Code)

	// events for unknown repositories are dropped, still 200
	assert.Equal(t, http.StatusOK, postEvents(h, `{
		"events": [{
			"action": "push",
			"target": {"repository": "ghost/webapp", "tag": "v1", "digest": "sha256:aaa"}
		}]
	}`).Code)

	all, err := tags.FindByRepository(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEventsEndpointIgnoresPulls(t *testing.T) {
	h, tags := newEventsHandlerFixture()

	w := postEvents(h, `{
		"events": [{
			"action": "pull",
			"target": {"repository": "alice/webapp", "tag": "v1", "digest": "sha256:aaa"}
		}]
	}`)

	assert.Equal(t, http.StatusOK, w.Code)

	all, err := tags.FindByRepository(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
