package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Yunichie/Play-This-Next/internal/auth/steam"
	"github.com/Yunichie/Play-This-Next/internal/directory"
)

// ErrSteamNotLinked means the caller has no Steam ID to sync from.
var ErrSteamNotLinked = errors.New("library: steam account not linked")

// GamesReader is the slice of the Steam Web API the sync needs.
// Satisfied by *steam.WebAPI.
type GamesReader interface {
	GetOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error)
}

// Syncer pulls the caller's owned games from Steam and upserts them into
// the library. Existing per-user fields (status, rating, review,
// favorite) are preserved; only playtime and metadata refresh.
type Syncer struct {
	svc   *Service
	dir   directory.Directory
	games GamesReader
}

func NewSyncer(svc *Service, dir directory.Directory, games GamesReader) *Syncer {
	return &Syncer{svc: svc, dir: dir, games: games}
}

func (s *Syncer) Sync(ctx context.Context, userID string) (int, error) {
	user, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil || user.SteamID == "" {
		return 0, ErrSteamNotLinked
	}

	owned, err := s.games.GetOwnedGames(ctx, user.SteamID)
	if err != nil {
		return 0, fmt.Errorf("library: fetch owned games: %w", err)
	}

	totalPlaytime := 0
	for _, g := range owned {
		if err := s.upsert(ctx, userID, g); err != nil {
			return 0, err
		}
		totalPlaytime += g.PlaytimeForever
	}

	if err := s.dir.UpdateAggregates(ctx, userID, len(owned), totalPlaytime); err != nil {
		return 0, err
	}

	return len(owned), nil
}

func (s *Syncer) upsert(ctx context.Context, userID string, g steam.OwnedGame) error {
	var lastPlayed *time.Time
	if g.RTimeLastPlayed > 0 {
		t := time.Unix(g.RTimeLastPlayed, 0).UTC()
		lastPlayed = &t
	}

	_, err := s.svc.db.ExecContext(ctx, `
		INSERT INTO user_games
			(user_id, appid, name, img_url, playtime_forever, playtime_2weeks, last_played)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, appid) DO UPDATE SET
			name = EXCLUDED.name,
			img_url = EXCLUDED.img_url,
			playtime_forever = EXCLUDED.playtime_forever,
			playtime_2weeks = EXCLUDED.playtime_2weeks,
			last_played = COALESCE(EXCLUDED.last_played, user_games.last_played),
			updated_at = NOW()
	`, userID, g.AppID, g.Name, steam.ImageURL(g.AppID),
		g.PlaytimeForever, g.Playtime2Weeks, lastPlayed)
	if err != nil {
		return fmt.Errorf("library: upsert appid %d: %w", g.AppID, err)
	}
	return nil
}
