// Package apifootball provides a client for the API-Football v3 endpoints
// used by the daily pipeline: fixtures by date and pre-match odds by fixture.
// Responses are converted into internal models at the boundary.
package apifootball

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mrenaud/footoracle/internal/logger"
	"github.com/mrenaud/footoracle/internal/models"
)

// Client provides access to the API-Football v3 API.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new API-Football client.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// fixtureResponse mirrors the relevant parts of the /fixtures payload.
type fixtureResponse struct {
	Response []struct {
		Fixture struct {
			ID     int64  `json:"id"`
			Date   string `json:"date"`
			Status struct {
				Short string `json:"short"`
			} `json:"status"`
		} `json:"fixture"`
		League struct {
			ID     int    `json:"id"`
			Name   string `json:"name"`
			Season int    `json:"season"`
		} `json:"league"`
		Teams struct {
			Home struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"home"`
			Away struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"away"`
		} `json:"teams"`
		Goals struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"goals"`
	} `json:"response"`
}

// oddsResponse mirrors the relevant parts of the /odds payload.
type oddsResponse struct {
	Response []struct {
		Bookmakers []struct {
			Name string `json:"name"`
			Bets []struct {
				Name   string `json:"name"`
				Values []struct {
					Value string `json:"value"`
					Odd   string `json:"odd"`
				} `json:"values"`
			} `json:"bets"`
		} `json:"bookmakers"`
	} `json:"response"`
}

// betNames maps API-Football bet names onto internal market identifiers.
var betNames = map[string]string{
	"Match Winner":     models.Market1X2,
	"Goals Over/Under": models.MarketOU25,
	"Both Teams Score": models.MarketBTTS,
}

// selectionNames maps API-Football value labels onto internal selections, per
// market. Over/Under lines other than 2.5 are skipped.
var selectionNames = map[string]map[string]string{
	models.Market1X2: {
		"Home": models.SelectionHome,
		"Draw": models.SelectionDraw,
		"Away": models.SelectionAway,
	},
	models.MarketOU25: {
		"Over 2.5":  models.SelectionOver,
		"Under 2.5": models.SelectionUnder,
	},
	models.MarketBTTS: {
		"Yes": models.SelectionYes,
		"No":  models.SelectionNo,
	},
}

// statusNames collapses API-Football short statuses onto the stored set.
// In-play statuses map to scheduled until the final whistle.
var statusNames = map[string]string{
	"NS":   models.StatusScheduled,
	"TBD":  models.StatusScheduled,
	"1H":   models.StatusScheduled,
	"HT":   models.StatusScheduled,
	"2H":   models.StatusScheduled,
	"ET":   models.StatusScheduled,
	"P":    models.StatusScheduled,
	"FT":   models.StatusFinished,
	"AET":  models.StatusFinished,
	"PEN":  models.StatusFinished,
	"PST":  models.StatusPostponed,
	"CANC": models.StatusCancelled,
	"ABD":  models.StatusCancelled,
	"WO":   models.StatusCancelled,
}

// FetchFixtures retrieves fixtures for one calendar day across the configured
// leagues. An empty league list fetches all leagues for the day in one call.
func (c *Client) FetchFixtures(ctx context.Context, day time.Time, leagueIDs []int) ([]models.Match, error) {
	urls := []string{fmt.Sprintf("%s/fixtures?date=%s", c.baseURL, day.UTC().Format("2006-01-02"))}
	if len(leagueIDs) > 0 {
		urls = urls[:0]
		for _, id := range leagueIDs {
			urls = append(urls, fmt.Sprintf("%s/fixtures?date=%s&league=%d&season=%d",
				c.baseURL, day.UTC().Format("2006-01-02"), id, seasonFor(day)))
		}
	}

	var matches []models.Match
	for _, url := range urls {
		resp, err := c.doRequest(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch fixtures: %w", err)
		}

		var payload fixtureResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode fixtures: %w", err)
		}

		for _, item := range payload.Response {
			kickoff, err := time.Parse(time.RFC3339, item.Fixture.Date)
			if err != nil {
				logger.Warn("skipping fixture %d with unparseable kickoff %q", item.Fixture.ID, item.Fixture.Date)
				continue
			}
			status, ok := statusNames[item.Fixture.Status.Short]
			if !ok {
				status = models.StatusScheduled
			}
			m := models.Match{
				FixtureID:  strconv.FormatInt(item.Fixture.ID, 10),
				Date:       kickoff,
				League:     item.League.Name,
				Season:     strconv.Itoa(item.League.Season),
				HomeTeamID: strconv.FormatInt(item.Teams.Home.ID, 10),
				AwayTeamID: strconv.FormatInt(item.Teams.Away.ID, 10),
				HomeTeam:   item.Teams.Home.Name,
				AwayTeam:   item.Teams.Away.Name,
				HomeGoals:  item.Goals.Home,
				AwayGoals:  item.Goals.Away,
				Status:     status,
			}
			if status == models.StatusFinished {
				m.Result = m.DeriveResult()
			}
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// FetchOdds retrieves all bookmaker quotes for one fixture on the supported
// markets. Unknown bets, unknown selections and unparseable prices are
// skipped, not errors.
func (c *Client) FetchOdds(ctx context.Context, fixtureID string) ([]models.OddsQuote, error) {
	url := fmt.Sprintf("%s/odds?fixture=%s", c.baseURL, fixtureID)

	resp, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch odds: %w", err)
	}
	defer resp.Body.Close()

	var payload oddsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode odds: %w", err)
	}

	observed := time.Now().UTC()
	var quotes []models.OddsQuote
	for _, item := range payload.Response {
		for _, bookmaker := range item.Bookmakers {
			for _, bet := range bookmaker.Bets {
				market, ok := betNames[bet.Name]
				if !ok {
					continue
				}
				for _, value := range bet.Values {
					selection, ok := selectionNames[market][value.Value]
					if !ok {
						continue
					}
					price, err := strconv.ParseFloat(value.Odd, 64)
					if err != nil || price < 1.0 {
						logger.Warn("skipping quote %s/%s/%s with price %q",
							bookmaker.Name, market, selection, value.Odd)
						continue
					}
					quotes = append(quotes, models.OddsQuote{
						FixtureID:  fixtureID,
						Bookmaker:  bookmaker.Name,
						Market:     market,
						Selection:  selection,
						Price:      price,
						ObservedAt: observed,
					})
				}
			}
		}
	}
	return quotes, nil
}

// seasonFor maps a calendar day to the European season year (a July rollover).
func seasonFor(day time.Time) int {
	if day.Month() >= time.July {
		return day.Year()
	}
	return day.Year() - 1
}

// doRequest performs an HTTP request with retry logic.
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("x-apisports-key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
