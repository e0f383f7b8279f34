package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Yunichie/Play-This-Next/internal/library"
	"github.com/Yunichie/Play-This-Next/internal/logger"
)

// cacheTTL bounds how long a recommendation set is reused. The cache is
// the owner of this lifetime; nothing else holds computed results.
const cacheTTL = 30 * time.Minute

var ErrEmptyLibrary = errors.New("recommend: no games in library")

// Recommendation is one suggested backlog game.
type Recommendation struct {
	AppID      int64  `json:"appid"`
	Name       string `json:"name"`
	Reasoning  string `json:"reasoning"`
	MatchScore int    `json:"match_score"`
}

// Generator produces model output for a prompt. Satisfied by *GeminiClient.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GamesLister is the slice of the library the recommender reads.
// Satisfied by *library.Service.
type GamesLister interface {
	List(ctx context.Context, userID string, f library.Filter) ([]library.Game, error)
}

type Service struct {
	generator Generator
	libSvc    GamesLister
	cache     *goredis.Client
}

func NewService(generator Generator, libSvc GamesLister, cache *goredis.Client) *Service {
	return &Service{generator: generator, libSvc: libSvc, cache: cache}
}

func cacheKey(userID, query string) string {
	sum := sha256.Sum256([]byte(query))
	return "rec:" + userID + ":" + hex.EncodeToString(sum[:8])
}

func (s *Service) Recommend(ctx context.Context, userID, query string) ([]Recommendation, error) {
	if query == "" {
		query = "What should I play next?"
	}

	key := cacheKey(userID, query)
	if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
		var recs []Recommendation
		if json.Unmarshal([]byte(cached), &recs) == nil {
			return recs, nil
		}
		// poisoned entry; drop it and regenerate
		_ = s.cache.Del(ctx, key).Err()
	}

	games, err := s.libSvc.List(ctx, userID, library.Filter{})
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, ErrEmptyLibrary
	}

	raw, err := s.generator.Generate(ctx, buildPrompt(query, games))
	if err != nil {
		return nil, err
	}

	recs, err := parseRecommendations(raw)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(recs); err == nil {
		if err := s.cache.Set(ctx, key, data, cacheTTL).Err(); err != nil {
			logger.Warn("failed to cache recommendations", map[string]any{"error": err.Error()})
		}
	}

	return recs, nil
}

func buildPrompt(query string, games []library.Game) string {
	sorted := make([]library.Game, len(games))
	copy(sorted, games)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PlaytimeForever > sorted[j].PlaytimeForever
	})

	var mostPlayed []string
	for _, g := range sorted {
		if len(mostPlayed) == 10 {
			break
		}
		if g.PlaytimeForever == 0 {
			continue
		}
		entry := fmt.Sprintf("%s (%dh played", g.Name, g.PlaytimeForever/60)
		if g.UserRating != nil {
			entry += fmt.Sprintf(", rated %d/10", *g.UserRating)
		}
		mostPlayed = append(mostPlayed, entry+")")
	}

	var backlog []string
	for _, g := range sorted {
		if len(backlog) == 20 {
			break
		}
		if g.Status == "backlog" || g.PlaytimeForever < 60 {
			backlog = append(backlog, fmt.Sprintf("- %s (ID: %d, %dh played)",
				g.Name, g.AppID, g.PlaytimeForever/60))
		}
	}

	var b strings.Builder
	b.WriteString("You are a game recommendation assistant. ")
	b.WriteString("Analyze the user's gaming profile and recommend games from their backlog.\n\n")
	fmt.Fprintf(&b, "USER PROFILE:\n- Most Played: %s\n- Total Games: %d\n\n",
		strings.Join(mostPlayed, ", "), len(games))
	fmt.Fprintf(&b, "USER REQUEST: %q\n\n", query)
	fmt.Fprintf(&b, "AVAILABLE BACKLOG:\n%s\n\n", strings.Join(backlog, "\n"))
	b.WriteString("Recommend 3-5 games from the backlog that match the request. ")
	b.WriteString(`Respond with a JSON array of objects with keys "appid" (number), ` +
		`"name" (string), "reasoning" (string), "match_score" (0-100 number).`)

	return b.String()
}

func parseRecommendations(raw string) ([]Recommendation, error) {
	// Some models wrap JSON in a markdown fence despite the mime type.
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var recs []Recommendation
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &recs); err != nil {
		return nil, fmt.Errorf("recommend: parse model output: %w", err)
	}
	return recs, nil
}
