// Package analytics records page views with campaign attribution and
// aggregates them for the admin summary endpoint.
package analytics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/skyroutes/flightdeck/internal/db"
	"github.com/skyroutes/flightdeck/internal/model"
)

var analyticsLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	analyticsLogger = l
}

// ParseUTM extracts the campaign attribution parameters from a query
// string. Unknown parameters are ignored.
func ParseUTM(query url.Values) model.UTM {
	return model.UTM{
		Source:   query.Get("utm_source"),
		Medium:   query.Get("utm_medium"),
		Campaign: query.Get("utm_campaign"),
		Term:     query.Get("utm_term"),
		Content:  query.Get("utm_content"),
	}
}

// Publisher forwards recorded page views to an external stream.
// The Kafka implementation lives in kafka.go.
type Publisher interface {
	Publish(ctx context.Context, pv model.PageView) error
}

// Store persists page views and serves aggregations over them.
type Store struct {
	db        db.DB
	publisher Publisher
}

func NewStore(database db.DB) *Store {
	return &Store{db: database}
}

// SetPublisher attaches an optional downstream publisher. Publishing is
// best effort: a failed publish never fails the recording.
func (st *Store) SetPublisher(p Publisher) {
	st.publisher = p
}

// Record validates and persists a page view, then forwards it to the
// publisher if one is attached.
func (st *Store) Record(ctx context.Context, pv model.PageView) error {
	pv.Path = strings.TrimSpace(pv.Path)
	if pv.SessionID == "" {
		return fmt.Errorf("validation: session id is required")
	}
	if !strings.HasPrefix(pv.Path, "/") {
		return fmt.Errorf("validation: path must be an absolute local path")
	}
	if pv.Timestamp.IsZero() {
		pv.Timestamp = time.Now().UTC()
	}

	_, err := st.db.Exec(`INSERT INTO page_views
		(session_id, path, referrer, utm_source, utm_medium, utm_campaign, utm_term, utm_content, viewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pv.SessionID, pv.Path, pv.Referrer,
		pv.UTM.Source, pv.UTM.Medium, pv.UTM.Campaign, pv.UTM.Term, pv.UTM.Content,
		pv.Timestamp)
	if err != nil {
		return fmt.Errorf("error recording page view: %w", err)
	}

	if st.publisher != nil {
		if err := st.publisher.Publish(ctx, pv); err != nil {
			analyticsLogger.Warn().Err(err).Str("path", pv.Path).Msg("Error publishing page view")
		}
	}
	return nil
}

// PathCount is a per-path view count in a summary.
type PathCount struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// SourceCount is a per-utm_source view count in a summary.
type SourceCount struct {
	Source string `json:"source"`
	Views  int    `json:"views"`
}

// Summary aggregates page views over a window.
type Summary struct {
	Since          time.Time     `json:"since"`
	TotalViews     int           `json:"totalViews"`
	UniqueSessions int           `json:"uniqueSessions"`
	TopPaths       []PathCount   `json:"topPaths"`
	TopSources     []SourceCount `json:"topSources,omitempty"`
}

const summaryTopN = 10

// Summarize aggregates all page views recorded since the given time.
func (st *Store) Summarize(since time.Time) (*Summary, error) {
	summary := &Summary{Since: since}

	row := st.db.Get().QueryRow(`SELECT COUNT(*), COUNT(DISTINCT session_id)
		FROM page_views WHERE viewed_at >= ?`, since)
	if err := row.Scan(&summary.TotalViews, &summary.UniqueSessions); err != nil {
		return nil, fmt.Errorf("error counting page views: %w", err)
	}

	rows, err := st.db.Query(`SELECT path, COUNT(*) AS views FROM page_views
		WHERE viewed_at >= ? GROUP BY path ORDER BY views DESC, path LIMIT ?`, since, summaryTopN)
	if err != nil {
		return nil, fmt.Errorf("error aggregating paths: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pc PathCount
		if err := rows.Scan(&pc.Path, &pc.Views); err != nil {
			return nil, fmt.Errorf("error scanning path count: %w", err)
		}
		summary.TopPaths = append(summary.TopPaths, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srcRows, err := st.db.Query(`SELECT utm_source, COUNT(*) AS views FROM page_views
		WHERE viewed_at >= ? AND utm_source != '' GROUP BY utm_source
		ORDER BY views DESC, utm_source LIMIT ?`, since, summaryTopN)
	if err != nil {
		return nil, fmt.Errorf("error aggregating sources: %w", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var sc SourceCount
		if err := srcRows.Scan(&sc.Source, &sc.Views); err != nil {
			return nil, fmt.Errorf("error scanning source count: %w", err)
		}
		summary.TopSources = append(summary.TopSources, sc)
	}
	return summary, srcRows.Err()
}
