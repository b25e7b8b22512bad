// Package ingest loads historical results from football-data.co.uk CSV files
// into storage. One file covers one league season; the classic Div-based
// layout (with or without a Time column) and the extra-leagues layout
// (Country/League/Home/Away/HG/AG) are both handled via the header row.
package ingest

import (
	"encoding/csv"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mrenaud/footoracle/internal/logger"
	"github.com/mrenaud/footoracle/internal/models"
)

// RowError is a per-row parse failure collected during an ingest run. The run
// continues past these.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result summarizes one ingest run.
type Result struct {
	Matches []models.Match
	Quotes  []models.OddsQuote
	Teams   []models.Team
	Errors  []RowError
}

// oddsColumns maps CSV odds columns onto (bookmaker, market, selection).
// PS/P columns are Pinnacle, B365 columns are Bet365; the extra-leagues
// layout abbreviates Pinnacle to PH/PD/PA.
var oddsColumns = []struct {
	column    string
	bookmaker string
	market    string
	selection string
}{
	{"PSH", "Pinnacle", models.Market1X2, models.SelectionHome},
	{"PSD", "Pinnacle", models.Market1X2, models.SelectionDraw},
	{"PSA", "Pinnacle", models.Market1X2, models.SelectionAway},
	{"PH", "Pinnacle", models.Market1X2, models.SelectionHome},
	{"PD", "Pinnacle", models.Market1X2, models.SelectionDraw},
	{"PA", "Pinnacle", models.Market1X2, models.SelectionAway},
	{"B365H", "Bet365", models.Market1X2, models.SelectionHome},
	{"B365D", "Bet365", models.Market1X2, models.SelectionDraw},
	{"B365A", "Bet365", models.Market1X2, models.SelectionAway},
	{"B365>2.5", "Bet365", models.MarketOU25, models.SelectionOver},
	{"B365<2.5", "Bet365", models.MarketOU25, models.SelectionUnder},
}

// columnAliases maps each logical field to its possible header names: the
// classic layout first, the extra-leagues layout second.
var columnAliases = map[string][]string{
	"div":  {"Div", "League"},
	"home": {"HomeTeam", "Home"},
	"away": {"AwayTeam", "Away"},
	"hg":   {"FTHG", "HG"},
	"ag":   {"FTAG", "AG"},
}

// TeamID derives a stable team identifier from the league code and team name.
func TeamID(div, name string) string {
	return fmt.Sprintf("fd-%08x", crc32.ChecksumIEEE([]byte(div+"|"+name)))
}

// fixtureID derives a stable fixture identifier from the row's natural key.
func fixtureID(div, date, home, away string) string {
	return fmt.Sprintf("fd-%08x", crc32.ChecksumIEEE([]byte(div+"|"+date+"|"+home+"|"+away)))
}

// parseDate accepts the two date formats the files use, dd/mm/yy and
// dd/mm/yyyy.
func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{"02/01/2006", "02/01/06"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ReadResults parses one results CSV. Rows missing a final score or with an
// unparseable date are reported in Result.Errors and skipped; malformed odds
// cells are ignored since the score columns are the payload.
func ReadResults(r io.Reader, season string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // trailing columns vary between files

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	resolved := make(map[string]string, len(columnAliases))
	for logical, names := range columnAliases {
		for _, name := range names {
			if _, ok := col[name]; ok {
				resolved[logical] = name
				break
			}
		}
		if _, ok := resolved[logical]; !ok {
			return nil, fmt.Errorf("missing required column (one of %v)", names)
		}
	}
	if _, ok := col["Date"]; !ok {
		return nil, fmt.Errorf("missing required column %q", "Date")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	logical := func(record []string, name string) string {
		return field(record, resolved[name])
	}

	result := &Result{}
	seenTeams := make(map[string]bool)
	line := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Err: err})
			continue
		}
		if len(record) == 0 || logical(record, "div") == "" {
			continue // blank trailing rows are common in these files
		}

		div := logical(record, "div")
		home := logical(record, "home")
		away := logical(record, "away")
		if home == "" || away == "" {
			result.Errors = append(result.Errors, RowError{Line: line, Err: fmt.Errorf("missing team name")})
			continue
		}

		date, err := parseDate(field(record, "Date"))
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Err: err})
			continue
		}
		if raw := field(record, "Time"); raw != "" {
			if kickoff, err := time.Parse("15:04", raw); err == nil {
				date = date.Add(time.Duration(kickoff.Hour())*time.Hour + time.Duration(kickoff.Minute())*time.Minute)
			}
		}

		homeGoals, err1 := strconv.Atoi(logical(record, "hg"))
		awayGoals, err2 := strconv.Atoi(logical(record, "ag"))
		if err1 != nil || err2 != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Err: fmt.Errorf("missing final score")})
			continue
		}

		match := models.Match{
			FixtureID:  fixtureID(div, field(record, "Date"), home, away),
			Date:       date,
			League:     div,
			Season:     season,
			HomeTeamID: TeamID(div, home),
			AwayTeamID: TeamID(div, away),
			HomeTeam:   home,
			AwayTeam:   away,
			HomeGoals:  &homeGoals,
			AwayGoals:  &awayGoals,
			Status:     models.StatusFinished,
		}
		match.Result = match.DeriveResult()
		if err := match.Validate(); err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Err: err})
			continue
		}
		result.Matches = append(result.Matches, match)

		for _, side := range []struct{ id, name string }{
			{match.HomeTeamID, home}, {match.AwayTeamID, away},
		} {
			if !seenTeams[side.id] {
				seenTeams[side.id] = true
				result.Teams = append(result.Teams, models.Team{ID: side.id, Name: side.name, League: div})
			}
		}

		for _, oc := range oddsColumns {
			raw := field(record, oc.column)
			if raw == "" {
				continue
			}
			price, err := strconv.ParseFloat(raw, 64)
			if err != nil || price < 1.0 {
				continue
			}
			result.Quotes = append(result.Quotes, models.OddsQuote{
				FixtureID:  match.FixtureID,
				Bookmaker:  oc.bookmaker,
				Market:     oc.market,
				Selection:  oc.selection,
				Price:      price,
				ObservedAt: date,
			})
		}
	}

	if len(result.Errors) > 0 {
		logger.Warn("ingest: %d rows skipped out of %d parsed", len(result.Errors), len(result.Matches)+len(result.Errors))
	}
	return result, nil
}

// MatchStore is the subset of storage the loader writes to.
type MatchStore interface {
	UpsertTeam(models.Team) error
	UpsertMatch(models.Match) error
	SaveOdds([]models.OddsQuote) error
}

// Load parses a results CSV and persists its teams, matches and odds.
func Load(r io.Reader, season string, store MatchStore) (*Result, error) {
	result, err := ReadResults(r, season)
	if err != nil {
		return nil, err
	}
	for _, team := range result.Teams {
		if err := store.UpsertTeam(team); err != nil {
			return nil, err
		}
	}
	for _, match := range result.Matches {
		if err := store.UpsertMatch(match); err != nil {
			return nil, err
		}
	}
	if err := store.SaveOdds(result.Quotes); err != nil {
		return nil, err
	}
	return result, nil
}
