// Package storage persists teams, matches, odds, rating history, predictions
// and clone pairs in a single SQLite database.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mrenaud/footoracle/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	league TEXT
);

CREATE TABLE IF NOT EXISTS matches (
	fixture_id   TEXT PRIMARY KEY,
	date         TEXT NOT NULL,
	league       TEXT,
	season       TEXT,
	home_team_id TEXT NOT NULL,
	away_team_id TEXT NOT NULL,
	home_team    TEXT NOT NULL,
	away_team    TEXT NOT NULL,
	home_goals   INTEGER,
	away_goals   INTEGER,
	status       TEXT NOT NULL,
	result       TEXT
);
CREATE INDEX IF NOT EXISTS idx_matches_date  ON matches(date);
CREATE INDEX IF NOT EXISTS idx_matches_home  ON matches(home_team_id);
CREATE INDEX IF NOT EXISTS idx_matches_away  ON matches(away_team_id);

CREATE TABLE IF NOT EXISTS rating_history (
	team_id    TEXT NOT NULL,
	fixture_id TEXT NOT NULL,
	as_of      TEXT NOT NULL,
	rating     REAL NOT NULL,
	PRIMARY KEY (team_id, fixture_id)
);
CREATE INDEX IF NOT EXISTS idx_rating_history_team ON rating_history(team_id, as_of);

CREATE TABLE IF NOT EXISTS odds (
	fixture_id  TEXT NOT NULL,
	bookmaker   TEXT NOT NULL,
	market      TEXT NOT NULL,
	selection   TEXT NOT NULL,
	price       REAL NOT NULL,
	observed_at TEXT NOT NULL,
	PRIMARY KEY (fixture_id, bookmaker, market, selection)
);

CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT PRIMARY KEY,
	fixture_id   TEXT NOT NULL,
	date         TEXT NOT NULL,
	day          TEXT NOT NULL,
	league       TEXT,
	home_team    TEXT NOT NULL,
	away_team    TEXT NOT NULL,
	method       TEXT NOT NULL,
	market       TEXT NOT NULL,
	selection    TEXT NOT NULL,
	prob         REAL NOT NULL,
	odd          REAL,
	value        REAL,
	generated_at TEXT NOT NULL,
	UNIQUE (fixture_id, method, market, selection, day)
);

CREATE TABLE IF NOT EXISTS clone_pairs (
	fixture_a        TEXT NOT NULL,
	fixture_b        TEXT NOT NULL,
	day              TEXT NOT NULL,
	label_a          TEXT NOT NULL,
	label_b          TEXT NOT NULL,
	similarity       REAL NOT NULL,
	sim_rating_gap   REAL NOT NULL,
	sim_odds_shape   REAL NOT NULL,
	sim_recent_form  REAL NOT NULL,
	sim_league       REAL NOT NULL,
	sim_head_to_head REAL NOT NULL,
	recommendation   TEXT NOT NULL,
	detected_at      TEXT NOT NULL,
	PRIMARY KEY (fixture_a, fixture_b, day)
);
`

// Storage wraps the SQLite handle. Safe for concurrent use; writes are
// serialized through a single connection to keep the driver lock-free.
type Storage struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

const timeLayout = time.RFC3339
const dayLayout = "2006-01-02"

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", raw, err)
	}
	return t, nil
}

// UpsertTeam inserts or refreshes a team row.
func (s *Storage) UpsertTeam(team models.Team) error {
	if err := team.Validate(); err != nil {
		return fmt.Errorf("invalid team: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO teams (id, name, league) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, league = excluded.league`,
		team.ID, team.Name, team.League)
	if err != nil {
		return fmt.Errorf("upserting team %s: %w", team.ID, err)
	}
	return nil
}

// UpsertMatch inserts or updates a fixture. The result column is derived from
// the score for finished matches.
func (s *Storage) UpsertMatch(m models.Match) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid match: %w", err)
	}
	result := m.Result
	if m.Finished() {
		result = m.DeriveResult()
	}

	var homeGoals, awayGoals any
	if m.HomeGoals != nil {
		homeGoals = *m.HomeGoals
	}
	if m.AwayGoals != nil {
		awayGoals = *m.AwayGoals
	}

	_, err := s.db.Exec(`
		INSERT INTO matches (fixture_id, date, league, season, home_team_id, away_team_id,
			home_team, away_team, home_goals, away_goals, status, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fixture_id) DO UPDATE SET
			date = excluded.date, league = excluded.league, season = excluded.season,
			home_team_id = excluded.home_team_id, away_team_id = excluded.away_team_id,
			home_team = excluded.home_team, away_team = excluded.away_team,
			home_goals = excluded.home_goals, away_goals = excluded.away_goals,
			status = excluded.status, result = excluded.result`,
		m.FixtureID, m.Date.UTC().Format(timeLayout), m.League, m.Season,
		m.HomeTeamID, m.AwayTeamID, m.HomeTeam, m.AwayTeam,
		homeGoals, awayGoals, m.Status, result)
	if err != nil {
		return fmt.Errorf("upserting match %s: %w", m.FixtureID, err)
	}
	return nil
}

const matchColumns = `fixture_id, date, league, season, home_team_id, away_team_id,
	home_team, away_team, home_goals, away_goals, status, result`

func scanMatch(rows *sql.Rows) (models.Match, error) {
	var m models.Match
	var date string
	var homeGoals, awayGoals sql.NullInt64
	var league, season, result sql.NullString
	err := rows.Scan(&m.FixtureID, &date, &league, &season, &m.HomeTeamID, &m.AwayTeamID,
		&m.HomeTeam, &m.AwayTeam, &homeGoals, &awayGoals, &m.Status, &result)
	if err != nil {
		return models.Match{}, fmt.Errorf("scanning match row: %w", err)
	}
	if m.Date, err = parseTime(date); err != nil {
		return models.Match{}, err
	}
	m.League = league.String
	m.Season = season.String
	m.Result = result.String
	if homeGoals.Valid {
		v := int(homeGoals.Int64)
		m.HomeGoals = &v
	}
	if awayGoals.Valid {
		v := int(awayGoals.Int64)
		m.AwayGoals = &v
	}
	return m, nil
}

func (s *Storage) queryMatches(query string, args ...any) ([]models.Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// FinishedMatchesAsc returns all finished matches in strict chronological
// order, ties broken by fixture ID so rating rebuilds are reproducible.
func (s *Storage) FinishedMatchesAsc() ([]models.Match, error) {
	return s.queryMatches(`
		SELECT `+matchColumns+` FROM matches
		WHERE status = ? ORDER BY date ASC, fixture_id ASC`, models.StatusFinished)
}

// FixturesOn returns the scheduled fixtures for the given calendar day (UTC).
func (s *Storage) FixturesOn(day time.Time) ([]models.Match, error) {
	return s.queryMatches(`
		SELECT `+matchColumns+` FROM matches
		WHERE date(date) = ? AND status = ? ORDER BY date ASC, fixture_id ASC`,
		day.UTC().Format(dayLayout), models.StatusScheduled)
}

// SaveOdds stores the latest quote per (fixture, bookmaker, market, selection).
// A stored quote is only overwritten by one observed at the same time or later.
func (s *Storage) SaveOdds(quotes []models.OddsQuote) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning odds transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO odds (fixture_id, bookmaker, market, selection, price, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fixture_id, bookmaker, market, selection) DO UPDATE SET
			price = excluded.price, observed_at = excluded.observed_at
		WHERE excluded.observed_at >= odds.observed_at`)
	if err != nil {
		return fmt.Errorf("preparing odds upsert: %w", err)
	}
	defer stmt.Close()

	for _, q := range quotes {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("invalid quote for fixture %s: %w", q.FixtureID, err)
		}
		if _, err := stmt.Exec(q.FixtureID, q.Bookmaker, q.Market, q.Selection,
			q.Price, q.ObservedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("saving quote for fixture %s: %w", q.FixtureID, err)
		}
	}
	return tx.Commit()
}

// QuotesForFixture returns all stored quotes for one fixture.
func (s *Storage) QuotesForFixture(fixtureID string) ([]models.OddsQuote, error) {
	rows, err := s.db.Query(`
		SELECT fixture_id, bookmaker, market, selection, price, observed_at
		FROM odds WHERE fixture_id = ?
		ORDER BY market, selection, bookmaker`, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("querying quotes for fixture %s: %w", fixtureID, err)
	}
	defer rows.Close()

	var quotes []models.OddsQuote
	for rows.Next() {
		var q models.OddsQuote
		var observed string
		if err := rows.Scan(&q.FixtureID, &q.Bookmaker, &q.Market, &q.Selection, &q.Price, &observed); err != nil {
			return nil, fmt.Errorf("scanning quote row: %w", err)
		}
		if q.ObservedAt, err = parseTime(observed); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// AppendRating records a team's post-match rating.
func (s *Storage) AppendRating(teamID, fixtureID string, asOf time.Time, rating float64) error {
	_, err := s.db.Exec(`
		INSERT INTO rating_history (team_id, fixture_id, as_of, rating)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(team_id, fixture_id) DO UPDATE SET
			as_of = excluded.as_of, rating = excluded.rating`,
		teamID, fixtureID, asOf.UTC().Format(timeLayout), rating)
	if err != nil {
		return fmt.Errorf("appending rating for team %s: %w", teamID, err)
	}
	return nil
}

// ClearRatingHistory wipes the rating history ahead of a full rebuild.
func (s *Storage) ClearRatingHistory() error {
	if _, err := s.db.Exec(`DELETE FROM rating_history`); err != nil {
		return fmt.Errorf("clearing rating history: %w", err)
	}
	return nil
}

// CurrentRatings returns the most recent stored rating per team.
func (s *Storage) CurrentRatings() (map[string]float64, error) {
	rows, err := s.db.Query(`
		SELECT team_id, rating FROM (
			SELECT team_id, rating,
				ROW_NUMBER() OVER (PARTITION BY team_id ORDER BY as_of DESC, rowid DESC) AS rn
			FROM rating_history
		) WHERE rn = 1`)
	if err != nil {
		return nil, fmt.Errorf("querying current ratings: %w", err)
	}
	defer rows.Close()

	ratings := make(map[string]float64)
	for rows.Next() {
		var teamID string
		var rating float64
		if err := rows.Scan(&teamID, &rating); err != nil {
			return nil, fmt.Errorf("scanning rating row: %w", err)
		}
		ratings[teamID] = rating
	}
	return ratings, rows.Err()
}

// TeamRating pairs a team with its current rating for display.
type TeamRating struct {
	TeamID string  `json:"team_id"`
	Name   string  `json:"name"`
	League string  `json:"league,omitempty"`
	Rating float64 `json:"rating"`
}

// TopRatings returns the n highest-rated teams with their names.
func (s *Storage) TopRatings(n int) ([]TeamRating, error) {
	rows, err := s.db.Query(`
		SELECT r.team_id, COALESCE(t.name, r.team_id), COALESCE(t.league, ''), r.rating
		FROM (
			SELECT team_id, rating,
				ROW_NUMBER() OVER (PARTITION BY team_id ORDER BY as_of DESC, rowid DESC) AS rn
			FROM rating_history
		) r LEFT JOIN teams t ON t.id = r.team_id
		WHERE r.rn = 1
		ORDER BY r.rating DESC, r.team_id ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying top ratings: %w", err)
	}
	defer rows.Close()

	var out []TeamRating
	for rows.Next() {
		var tr TeamRating
		if err := rows.Scan(&tr.TeamID, &tr.Name, &tr.League, &tr.Rating); err != nil {
			return nil, fmt.Errorf("scanning top rating row: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// SavePredictions upserts prediction records on their logical key
// (fixture, method, market, selection, day), so re-running a day is
// idempotent. The first stored record keeps its ID.
func (s *Storage) SavePredictions(preds []models.Prediction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning predictions transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO predictions (id, fixture_id, date, day, league, home_team, away_team,
			method, market, selection, prob, odd, value, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fixture_id, method, market, selection, day) DO UPDATE SET
			date = excluded.date, league = excluded.league,
			home_team = excluded.home_team, away_team = excluded.away_team,
			prob = excluded.prob, odd = excluded.odd, value = excluded.value,
			generated_at = excluded.generated_at`)
	if err != nil {
		return fmt.Errorf("preparing predictions upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range preds {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid prediction for fixture %s: %w", p.FixtureID, err)
		}
		var odd, value any
		if p.Odd != nil {
			odd = *p.Odd
		}
		if p.Value != nil {
			value = *p.Value
		}
		_, err := stmt.Exec(p.ID, p.FixtureID,
			p.Date.UTC().Format(timeLayout), p.Date.UTC().Format(dayLayout),
			p.League, p.HomeTeam, p.AwayTeam, p.Method, p.Market, p.Selection,
			p.Prob, odd, value, p.GeneratedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("saving prediction for fixture %s: %w", p.FixtureID, err)
		}
	}
	return tx.Commit()
}

// PredictionsOn returns all prediction records for one calendar day (UTC).
func (s *Storage) PredictionsOn(day time.Time) ([]models.Prediction, error) {
	rows, err := s.db.Query(`
		SELECT id, fixture_id, date, league, home_team, away_team,
			method, market, selection, prob, odd, value, generated_at
		FROM predictions WHERE day = ?
		ORDER BY fixture_id, market, selection`, day.UTC().Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var p models.Prediction
		var date, generated string
		var league sql.NullString
		var odd, value sql.NullFloat64
		err := rows.Scan(&p.ID, &p.FixtureID, &date, &league, &p.HomeTeam, &p.AwayTeam,
			&p.Method, &p.Market, &p.Selection, &p.Prob, &odd, &value, &generated)
		if err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		if p.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if p.GeneratedAt, err = parseTime(generated); err != nil {
			return nil, err
		}
		p.League = league.String
		if odd.Valid {
			v := odd.Float64
			p.Odd = &v
		}
		if value.Valid {
			v := value.Float64
			p.Value = &v
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// SaveClonePairs upserts the clone pairs detected for a day.
func (s *Storage) SaveClonePairs(pairs []models.ClonePair) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning clone pairs transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO clone_pairs (fixture_a, fixture_b, day, label_a, label_b, similarity,
			sim_rating_gap, sim_odds_shape, sim_recent_form, sim_league, sim_head_to_head,
			recommendation, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fixture_a, fixture_b, day) DO UPDATE SET
			label_a = excluded.label_a, label_b = excluded.label_b,
			similarity = excluded.similarity,
			sim_rating_gap = excluded.sim_rating_gap, sim_odds_shape = excluded.sim_odds_shape,
			sim_recent_form = excluded.sim_recent_form, sim_league = excluded.sim_league,
			sim_head_to_head = excluded.sim_head_to_head,
			recommendation = excluded.recommendation, detected_at = excluded.detected_at`)
	if err != nil {
		return fmt.Errorf("preparing clone pairs upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pairs {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid clone pair (%s, %s): %w", p.FixtureA, p.FixtureB, err)
		}
		_, err := stmt.Exec(p.FixtureA, p.FixtureB, p.DetectedAt.UTC().Format(dayLayout),
			p.LabelA, p.LabelB, p.Similarity,
			p.Breakdown.RatingGap, p.Breakdown.OddsShape, p.Breakdown.RecentForm,
			p.Breakdown.League, p.Breakdown.HeadToHead,
			p.Recommendation, p.DetectedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("saving clone pair (%s, %s): %w", p.FixtureA, p.FixtureB, err)
		}
	}
	return tx.Commit()
}

// ClonePairsOn returns the clone pairs detected on one calendar day (UTC),
// strongest first.
func (s *Storage) ClonePairsOn(day time.Time) ([]models.ClonePair, error) {
	rows, err := s.db.Query(`
		SELECT fixture_a, fixture_b, label_a, label_b, similarity,
			sim_rating_gap, sim_odds_shape, sim_recent_form, sim_league, sim_head_to_head,
			recommendation, detected_at
		FROM clone_pairs WHERE day = ?
		ORDER BY similarity DESC, fixture_a ASC, fixture_b ASC`, day.UTC().Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("querying clone pairs: %w", err)
	}
	defer rows.Close()

	var pairs []models.ClonePair
	for rows.Next() {
		var p models.ClonePair
		var detected string
		err := rows.Scan(&p.FixtureA, &p.FixtureB, &p.LabelA, &p.LabelB, &p.Similarity,
			&p.Breakdown.RatingGap, &p.Breakdown.OddsShape, &p.Breakdown.RecentForm,
			&p.Breakdown.League, &p.Breakdown.HeadToHead,
			&p.Recommendation, &detected)
		if err != nil {
			return nil, fmt.Errorf("scanning clone pair row: %w", err)
		}
		if p.DetectedAt, err = parseTime(detected); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// RecentForm returns the trailing points-per-game for a team over its last n
// finished matches and how many of those matches exist. Zero played means no
// form signal.
func (s *Storage) RecentForm(teamID string, n int) (float64, int, error) {
	rows, err := s.db.Query(`
		SELECT home_team_id, result FROM matches
		WHERE status = ? AND (home_team_id = ? OR away_team_id = ?)
		ORDER BY date DESC, fixture_id DESC LIMIT ?`,
		models.StatusFinished, teamID, teamID, n)
	if err != nil {
		return 0, 0, fmt.Errorf("querying form for team %s: %w", teamID, err)
	}
	defer rows.Close()

	points, played := 0, 0
	for rows.Next() {
		var homeID, result string
		if err := rows.Scan(&homeID, &result); err != nil {
			return 0, 0, fmt.Errorf("scanning form row: %w", err)
		}
		played++
		switch {
		case result == "D":
			points++
		case result == "H" && homeID == teamID:
			points += 3
		case result == "A" && homeID != teamID:
			points += 3
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if played == 0 {
		return 0, 0, nil
	}
	return float64(points) / float64(played), played, nil
}

// HeadToHead returns the outcome distribution (win/draw/loss from teamA's
// perspective) over the last limit finished meetings in either venue, and how
// many meetings were found.
func (s *Storage) HeadToHead(teamA, teamB string, limit int) ([3]float64, int, error) {
	rows, err := s.db.Query(`
		SELECT home_team_id, result FROM matches
		WHERE status = ?
			AND ((home_team_id = ? AND away_team_id = ?) OR (home_team_id = ? AND away_team_id = ?))
		ORDER BY date DESC, fixture_id DESC LIMIT ?`,
		models.StatusFinished, teamA, teamB, teamB, teamA, limit)
	if err != nil {
		return [3]float64{}, 0, fmt.Errorf("querying head-to-head %s vs %s: %w", teamA, teamB, err)
	}
	defer rows.Close()

	var counts [3]int // wins, draws, losses for teamA
	total := 0
	for rows.Next() {
		var homeID, result string
		if err := rows.Scan(&homeID, &result); err != nil {
			return [3]float64{}, 0, fmt.Errorf("scanning head-to-head row: %w", err)
		}
		total++
		switch {
		case result == "D":
			counts[1]++
		case (result == "H") == (homeID == teamA):
			counts[0]++
		default:
			counts[2]++
		}
	}
	if err := rows.Err(); err != nil {
		return [3]float64{}, 0, err
	}
	var dist [3]float64
	if total > 0 {
		for i, c := range counts {
			dist[i] = float64(c) / float64(total)
		}
	}
	return dist, total, nil
}
