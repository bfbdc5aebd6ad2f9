// Package export builds the flat public feed consumed by the community website.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sutnist/internal/models"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// DefaultLimit caps the number of posts written when the caller passes no limit.
const DefaultLimit = 100

// FeedItem is one approved post in the website feed.
type FeedItem struct {
	ID          uint      `db:"id" json:"id"`
	Server      string    `db:"server" json:"server"`
	Text        string    `db:"text" json:"text"`
	UserID      uint      `db:"user_id" json:"user_id"`
	Username    string    `db:"username" json:"username"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ChannelLink string    `db:"-" json:"channel_link"`
}

// FeedExporter reads approved posts with plain SQL.
type FeedExporter struct {
	db      *sqlx.DB
	baseURL string
}

// NewFeedExporter wraps db. baseURL prefixes the channel_link of every item.
func NewFeedExporter(db *sqlx.DB, baseURL string) *FeedExporter {
	return &FeedExporter{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

const approvedFeedQuery = `
SELECT p.id, p.server, p.text, p.author_id AS user_id, u.username, p.created_at
FROM posts p
JOIN users u ON u.id = p.author_id
WHERE p.status = ?`

// Approved lists approved posts newest first. A server filter keeps posts tagged with that
// server or with ALL.
func (e *FeedExporter) Approved(ctx context.Context, server models.ServerTag, limit int) ([]FeedItem, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := approvedFeedQuery
	args := []interface{}{string(models.PostStatusApproved)}
	if server != "" && server != models.ServerAll {
		query += ` AND p.server IN (?, ?)`
		args = append(args, string(server), string(models.ServerAll))
	}
	query += ` ORDER BY p.created_at DESC, p.id DESC LIMIT ?`
	args = append(args, limit)

	items := []FeedItem{}
	if err := e.db.SelectContext(ctx, &items, e.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select approved feed: %w", err)
	}
	for i := range items {
		items[i].ChannelLink = e.channelLink(items[i].ID)
	}
	return items, nil
}

func (e *FeedExporter) channelLink(id uint) string {
	return e.baseURL + "/posts/" + strconv.FormatUint(uint64(id), 10)
}

// WriteJSON encodes the feed to w.
func (e *FeedExporter) WriteJSON(ctx context.Context, w io.Writer, server models.ServerTag, limit int) (int, error) {
	items, err := e.Approved(ctx, server, limit)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return 0, fmt.Errorf("encode feed: %w", err)
	}
	return len(items), nil
}

// WriteFile replaces path with the current feed. The file is written next to path first and
// renamed, so readers never see a partial document.
func (e *FeedExporter) WriteFile(ctx context.Context, path string, server models.ServerTag, limit int) (int, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create export dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".feed-*.json")
	if err != nil {
		return 0, fmt.Errorf("create temp feed: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := e.WriteJSON(ctx, tmp, server, limit)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close temp feed: %w", closeErr)
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("publish feed: %w", err)
	}
	return n, nil
}

// FromGorm shares the pool of an open gorm connection with sqlx.
func FromGorm(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	driver := "postgres"
	if db.Dialector.Name() == "sqlite" {
		driver = "sqlite3"
	}
	return sqlx.NewDb(sqlDB, driver), nil
}
