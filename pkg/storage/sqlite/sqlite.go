// Package sqlite implements the tag catalog on SQLite via database/sql and
// the cgo-free modernc.org driver. The user and repository directories stay
// with the main application; only tags are persisted here.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dockerplatform/registry-gate/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tags (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	repository_id INTEGER NOT NULL,
	name          TEXT    NOT NULL,
	digest        TEXT    NOT NULL,
	size          INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	pushed_at     INTEGER NOT NULL,
	UNIQUE (repository_id, name)
);
`

// Open opens (creating if necessary) the catalog database at path and
// applies the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database %s: %w", path, err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY on concurrent webhook deliveries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	return db, nil
}

type TagRepository struct {
	db *sql.DB
}

func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

func (r *TagRepository) FindByRepositoryAndName(ctx context.Context, repositoryId int64, name string) (*domain.Tag, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, repository_id, name, digest, size, created_at, pushed_at
		FROM tags WHERE repository_id = ? AND name = ?`,
		repositoryId, name,
	)

	var tag domain.Tag
	err := row.Scan(&tag.Id, &tag.RepositoryId, &tag.Name, &tag.Digest, &tag.Size, &tag.CreatedAt, &tag.PushedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTagNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	return &tag, nil
}

func (r *TagRepository) FindByRepository(ctx context.Context, repositoryId int64) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, repository_id, name, digest, size, created_at, pushed_at
		FROM tags WHERE repository_id = ? ORDER BY name`,
		repositoryId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.Id, &tag.RepositoryId, &tag.Name, &tag.Digest, &tag.Size, &tag.CreatedAt, &tag.PushedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	return tags, rows.Err()
}

// Save upserts by (repository_id, name) in a single statement, which is the
// critical section the sync path relies on: two concurrent deliveries for
// the same tag cannot create two rows, and the loser of the race keeps the
// winner's created_at.
func (r *TagRepository) Save(ctx context.Context, tag *domain.Tag) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO tags (repository_id, name, digest, size, created_at, pushed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (repository_id, name) DO UPDATE SET
			digest = excluded.digest,
			size = excluded.size,
			pushed_at = excluded.pushed_at
		RETURNING id, created_at`,
		tag.RepositoryId, tag.Name, tag.Digest, tag.Size, tag.CreatedAt, tag.PushedAt,
	)

	return row.Scan(&tag.Id, &tag.CreatedAt)
}
