// Package stats aggregates the library into the numbers the dashboard
// charts render. Read-only; all math happens in SQL.
package stats

import (
	"context"
	"fmt"

	"github.com/Yunichie/Play-This-Next/internal/db"
)

type Summary struct {
	TotalGames    int `json:"total_games"`
	TotalPlaytime int `json:"total_playtime"` // minutes
	Completed     int `json:"completed"`
	Backlog       int `json:"backlog"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type TopGame struct {
	Name            string `json:"name"`
	AppID           int64  `json:"appid"`
	PlaytimeForever int    `json:"playtime_forever"`
}

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	var out Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(playtime_forever), 0),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'backlog')
		FROM user_games
		WHERE user_id = $1
	`, userID).Scan(&out.TotalGames, &out.TotalPlaytime, &out.Completed, &out.Backlog)
	if err != nil {
		return Summary{}, fmt.Errorf("stats: summary: %w", err)
	}
	return out, nil
}

func (s *Service) StatusBreakdown(ctx context.Context, userID string) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM user_games
		WHERE user_id = $1
		GROUP BY status
		ORDER BY COUNT(*) DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("stats: status breakdown: %w", err)
	}
	defer rows.Close()

	out := []StatusCount{}
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, fmt.Errorf("stats: scan: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Service) TopGames(ctx context.Context, userID string, limit int) ([]TopGame, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, appid, playtime_forever
		FROM user_games
		WHERE user_id = $1 AND playtime_forever > 0
		ORDER BY playtime_forever DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("stats: top games: %w", err)
	}
	defer rows.Close()

	out := []TopGame{}
	for rows.Next() {
		var tg TopGame
		if err := rows.Scan(&tg.Name, &tg.AppID, &tg.PlaytimeForever); err != nil {
			return nil, fmt.Errorf("stats: scan: %w", err)
		}
		out = append(out, tg)
	}
	return out, rows.Err()
}
