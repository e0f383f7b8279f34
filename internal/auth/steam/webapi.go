package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const webAPIBase = "https://api.steampowered.com"

// Player is the subset of GetPlayerSummaries the app consumes.
type Player struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
	AvatarFull  string `json:"avatarfull"`
	ProfileURL  string `json:"profileurl"`
}

// OwnedGame is one row of GetOwnedGames / GetRecentlyPlayedGames.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
	Playtime2Weeks  int    `json:"playtime_2weeks"`
	ImgIconURL      string `json:"img_icon_url"`
	RTimeLastPlayed int64  `json:"rtime_last_played"`
}

// WebAPI reads Steam's published Web API. All calls are best-effort,
// read-only, and bounded by the client timeout.
type WebAPI struct {
	base   string
	apiKey string
	http   *http.Client
}

func NewWebAPI(apiKey string) *WebAPI {
	return &WebAPI{
		base:   webAPIBase,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWebAPIWithBase exists for tests that stand in for Steam.
func NewWebAPIWithBase(base, apiKey string, client *http.Client) *WebAPI {
	return &WebAPI{base: base, apiKey: apiKey, http: client}
}

// GetPlayerSummary resolves a Steam ID to its public persona. The
// handshake fails rather than proceed with an unknown display name, so a
// missing player is an error here, not a nil result.
func (w *WebAPI) GetPlayerSummary(ctx context.Context, steamID string) (*Player, error) {
	var out struct {
		Response struct {
			Players []Player `json:"players"`
		} `json:"response"`
	}

	err := w.get(ctx, "/ISteamUser/GetPlayerSummaries/v2/", url.Values{
		"steamids": {steamID},
	}, &out)
	if err != nil {
		return nil, err
	}

	if len(out.Response.Players) == 0 {
		return nil, ErrProfileUnavailable
	}
	return &out.Response.Players[0], nil
}

func (w *WebAPI) GetOwnedGames(ctx context.Context, steamID string) ([]OwnedGame, error) {
	var out struct {
		Response struct {
			Games []OwnedGame `json:"games"`
		} `json:"response"`
	}

	err := w.get(ctx, "/IPlayerService/GetOwnedGames/v1/", url.Values{
		"steamid":                   {steamID},
		"include_appinfo":           {"true"},
		"include_played_free_games": {"true"},
	}, &out)
	if err != nil {
		return nil, err
	}

	return out.Response.Games, nil
}

func (w *WebAPI) GetRecentlyPlayedGames(ctx context.Context, steamID string) ([]OwnedGame, error) {
	var out struct {
		Response struct {
			Games []OwnedGame `json:"games"`
		} `json:"response"`
	}

	err := w.get(ctx, "/IPlayerService/GetRecentlyPlayedGames/v1/", url.Values{
		"steamid": {steamID},
		"count":   {"10"},
	}, &out)
	if err != nil {
		return nil, err
	}

	return out.Response.Games, nil
}

func (w *WebAPI) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", w.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		w.base+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("steam: build request: %w", err)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return ErrNetworkFailure
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("steam: web api status %d: %w", resp.StatusCode, ErrProfileUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("steam: decode response: %w", err)
	}
	return nil
}

// ImageURL returns the CDN header image for an app.
func ImageURL(appID int64) string {
	return fmt.Sprintf("https://cdn.cloudflare.steamstatic.com/steam/apps/%d/header.jpg", appID)
}
