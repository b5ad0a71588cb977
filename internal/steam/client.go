// Package steam implements the owned-games lookup against the Steam Web API.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"steam-party-bot/pkg/partybot"
)

const (
	defaultBaseURL        = "https://api.steampowered.com"
	ownedGamesPath        = "/IPlayerService/GetOwnedGames/v1/"
	defaultRequestTimeout = 30 * time.Second
)

// Client resolves owned games through IPlayerService/GetOwnedGames.
//
// The API returns an empty response object for private profiles; the client
// surfaces that as partybot.ErrLookupFailed so callers need no HTTP knowledge.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option mutates client construction configuration.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger configures request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Steam Web API client.
func NewClient(apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("new steam client: empty api key")
	}

	client := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(client)
	}

	return client, nil
}

type ownedGamesResponse struct {
	Response *ownedGamesBody `json:"response"`
}

type ownedGamesBody struct {
	GameCount *int             `json:"game_count"`
	Games     []ownedGameEntry `json:"games"`
}

type ownedGameEntry struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

// OwnedGames fetches the owned-games payload for one Steam identity.
func (c *Client) OwnedGames(ctx context.Context, steamID string) (partybot.OwnedGames, error) {
	if steamID == "" {
		return partybot.OwnedGames{}, fmt.Errorf("owned games: empty steam id")
	}

	requestURL, err := c.ownedGamesURL(steamID)
	if err != nil {
		return partybot.OwnedGames{}, fmt.Errorf("owned games %s: %w", steamID, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return partybot.OwnedGames{}, fmt.Errorf("owned games %s: build request: %w", steamID, err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return partybot.OwnedGames{}, fmt.Errorf("owned games %s: %w: %w", steamID, partybot.ErrLookupFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return partybot.OwnedGames{}, fmt.Errorf(
			"owned games %s: %w: unexpected status %d",
			steamID,
			partybot.ErrLookupFailed,
			response.StatusCode,
		)
	}

	var parsed ownedGamesResponse
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return partybot.OwnedGames{}, fmt.Errorf("owned games %s: %w: decode: %w", steamID, partybot.ErrLookupFailed, err)
	}

	// Private profiles yield {"response": {}} with no game_count field.
	if parsed.Response == nil || parsed.Response.GameCount == nil {
		return partybot.OwnedGames{}, fmt.Errorf("owned games %s: %w: empty response", steamID, partybot.ErrLookupFailed)
	}

	games := make([]partybot.Game, 0, len(parsed.Response.Games))
	for _, entry := range parsed.Response.Games {
		games = append(games, partybot.Game{AppID: entry.AppID, Name: entry.Name})
	}

	c.logger.Debug("owned games fetched", "steam_id", steamID, "count", *parsed.Response.GameCount)

	return partybot.OwnedGames{
		Games: games,
		Count: *parsed.Response.GameCount,
	}, nil
}

// ownedGamesURL builds the request URL including app metadata flags.
func (c *Client) ownedGamesURL(steamID string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	endpoint := base.JoinPath(ownedGamesPath)

	query := url.Values{}
	query.Set("key", c.apiKey)
	query.Set("steamid", steamID)
	query.Set("include_appinfo", "1")
	query.Set("include_played_free_games", "1")
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}

var _ partybot.GameLibrary = (*Client)(nil)
