// Package library owns the per-user game collection: CRUD over the
// user_games table and synchronization from the caller's Steam library.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Yunichie/Play-This-Next/internal/db"
)

var ErrNotFound = errors.New("library: game not found")

// Valid lifecycle states for a library entry.
var validStatuses = map[string]bool{
	"backlog":   true,
	"playing":   true,
	"completed": true,
	"dropped":   true,
	"shelved":   true,
}

type Game struct {
	ID              string     `json:"id"`
	AppID           int64      `json:"appid"`
	Name            string     `json:"name"`
	ImgURL          string     `json:"img_url,omitempty"`
	PlaytimeForever int        `json:"playtime_forever"`
	Playtime2Weeks  int        `json:"playtime_2weeks"`
	LastPlayed      *time.Time `json:"last_played,omitempty"`
	Status          string     `json:"status"`
	IsFavorite      bool       `json:"is_favorite"`
	UserRating      *int       `json:"user_rating,omitempty"`
	UserReview      *string    `json:"user_review,omitempty"`
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Status       string
	FavoriteOnly bool
	Search       string
}

// Update carries the mutable per-user fields; nil means "leave as is".
type Update struct {
	Status     *string
	IsFavorite *bool
	UserRating *int
	UserReview *string
}

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

const gameColumns = `
	id, appid, name, COALESCE(img_url, ''), playtime_forever, playtime_2weeks,
	last_played, status, is_favorite, user_rating, user_review
`

func scanGame(row interface{ Scan(...any) error }) (Game, error) {
	var g Game
	err := row.Scan(
		&g.ID, &g.AppID, &g.Name, &g.ImgURL, &g.PlaytimeForever,
		&g.Playtime2Weeks, &g.LastPlayed, &g.Status, &g.IsFavorite,
		&g.UserRating, &g.UserReview,
	)
	return g, err
}

func (s *Service) List(ctx context.Context, userID string, f Filter) ([]Game, error) {
	query := `SELECT ` + gameColumns + ` FROM user_games WHERE user_id = $1`
	args := []any{userID}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.FavoriteOnly {
		query += " AND is_favorite"
	}
	if f.Search != "" {
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	query += " ORDER BY playtime_forever DESC, name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("library: list: %w", err)
	}
	defer rows.Close()

	games := []Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("library: scan: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *Service) Get(ctx context.Context, userID, gameID string) (Game, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+gameColumns+` FROM user_games
		WHERE user_id = $1 AND id = $2
	`, userID, gameID)

	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, fmt.Errorf("library: get: %w", err)
	}
	return g, nil
}

func (s *Service) Apply(ctx context.Context, userID, gameID string, u Update) (Game, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{userID, gameID}

	if u.Status != nil {
		if !validStatuses[*u.Status] {
			return Game{}, fmt.Errorf("library: invalid status %q", *u.Status)
		}
		args = append(args, *u.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if u.IsFavorite != nil {
		args = append(args, *u.IsFavorite)
		sets = append(sets, fmt.Sprintf("is_favorite = $%d", len(args)))
	}
	if u.UserRating != nil {
		if *u.UserRating < 1 || *u.UserRating > 10 {
			return Game{}, fmt.Errorf("library: rating out of range")
		}
		args = append(args, *u.UserRating)
		sets = append(sets, fmt.Sprintf("user_rating = $%d", len(args)))
	}
	if u.UserReview != nil {
		args = append(args, *u.UserReview)
		sets = append(sets, fmt.Sprintf("user_review = $%d", len(args)))
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE user_games SET `+strings.Join(sets, ", ")+`
		WHERE user_id = $1 AND id = $2
		RETURNING `+gameColumns, args...)

	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, fmt.Errorf("library: update: %w", err)
	}
	return g, nil
}

func (s *Service) Delete(ctx context.Context, userID, gameID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_games WHERE user_id = $1 AND id = $2
	`, userID, gameID)
	if err != nil {
		return fmt.Errorf("library: delete: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("library: delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
