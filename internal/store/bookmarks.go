package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/p-blackswan/tabpile/internal/tabs"
)

// Bookmarks is the SQLite-backed bookmark/archive store.
type Bookmarks struct {
	s *Store
}

// Bookmarks returns the bookmark store backed by this database.
func (s *Store) Bookmarks() *Bookmarks {
	return &Bookmarks{s: s}
}

// Search returns bookmarks whose title matches exactly, oldest first.
func (b *Bookmarks) Search(ctx context.Context, title string) ([]tabs.Bookmark, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	rows, err := b.s.db.QueryContext(ctx, `
	SELECT id, COALESCE(parent_id, ''), title, COALESCE(url, ''), folder, created_at
	FROM bookmarks
	WHERE title = ?
	ORDER BY created_at, id
	`, title)
	if err != nil {
		return nil, fmt.Errorf("failed to search bookmarks: %w", err)
	}
	return scanBookmarks(rows)
}

// CreateFolder creates a top-level folder.
func (b *Bookmarks) CreateFolder(ctx context.Context, title string) (tabs.Bookmark, error) {
	return b.insert(ctx, tabs.Bookmark{Title: title, Folder: true})
}

// CreateEntry creates an archive entry inside e.ParentID.
func (b *Bookmarks) CreateEntry(ctx context.Context, e tabs.Entry) (tabs.Bookmark, error) {
	if e.ParentID == "" {
		return tabs.Bookmark{}, fmt.Errorf("bookmark entry requires a parent folder")
	}
	if e.URL == "" {
		return tabs.Bookmark{}, fmt.Errorf("bookmark entry requires a url")
	}
	return b.insert(ctx, tabs.Bookmark{ParentID: e.ParentID, Title: e.Title, URL: e.URL})
}

// List returns the children of a folder, newest first.
func (b *Bookmarks) List(ctx context.Context, parentID string, limit int) ([]tabs.Bookmark, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := b.s.db.QueryContext(ctx, `
	SELECT id, COALESCE(parent_id, ''), title, COALESCE(url, ''), folder, created_at
	FROM bookmarks
	WHERE parent_id = ?
	ORDER BY created_at DESC, id
	LIMIT ?
	`, parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return scanBookmarks(rows)
}

func (b *Bookmarks) insert(ctx context.Context, bm tabs.Bookmark) (tabs.Bookmark, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	bm.ID = uuid.New().String()
	bm.CreatedAt = time.Now().UTC()

	var parent, url any
	if bm.ParentID != "" {
		parent = bm.ParentID
	}
	if bm.URL != "" {
		url = bm.URL
	}

	_, err := b.s.db.ExecContext(ctx, `
	INSERT INTO bookmarks (id, parent_id, title, url, folder, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`, bm.ID, parent, bm.Title, url, bm.Folder, bm.CreatedAt.UnixMilli())
	if err != nil {
		return tabs.Bookmark{}, fmt.Errorf("failed to create bookmark: %w", err)
	}
	return bm, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanBookmarks(rows rowScanner) ([]tabs.Bookmark, error) {
	defer rows.Close()

	var out []tabs.Bookmark
	for rows.Next() {
		var (
			bm        tabs.Bookmark
			createdAt int64
		)
		if err := rows.Scan(&bm.ID, &bm.ParentID, &bm.Title, &bm.URL, &bm.Folder, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bm.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, bm)
	}
	return out, rows.Err()
}
