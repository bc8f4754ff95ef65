package simulate

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/domain/model"
	excelize "github.com/xuri/excelize/v2"
)

const (
	standingsSheet = "Standings"
	matchesSheet   = "Matches"
)

// RenderStandings writes the standings as a table, flagging rows that differ
// from the replay when l is not nil.
func RenderStandings(w io.Writer, rows []SeasonStanding, l *Ledger) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	header := table.Row{"Rank", "Player", "Score"}
	if l != nil {
		header = append(header, "Replayed")
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := table.Row{r.Rank, r.Name, r.Score}
		if l != nil {
			want, _ := l.Score(r.SeasonPlayerID)
			mark := strconv.Itoa(want)
			if want != r.Score {
				mark += " !"
			}
			row = append(row, mark)
		}
		t.AppendRow(row)
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// RenderStats writes the run summary as a two-column table.
func RenderStats(w io.Writer, s *Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Matches submitted", s.MatchesSubmitted},
		{"Matches reverted", s.MatchesReverted},
		{"Teams created", s.TeamsCreated},
		{"Mismatches", s.Mismatches},
		{"Mean score", fmt.Sprintf("%0.2f", s.MeanScore)},
		{"Score std. dev.", fmt.Sprintf("%0.2f", s.StdDevScore)},
		{"Mean abs. delta", fmt.Sprintf("%0.2f", s.MeanAbsDelta)},
		{"Duration", s.Duration.String()},
	})
	t.SetStyle(table.StyleLight)
	t.Render()
}

// WriteWorkbook builds an xlsx report with a standings sheet and a match
// log sheet. names maps season player ids to display names.
func WriteWorkbook(season model.Season, rows []SeasonStanding, matches []model.Match, names map[string]string) (*excelize.File, error) {
	xl := excelize.NewFile()
	first := xl.GetSheetName(xl.GetActiveSheetIndex())
	if err := xl.SetSheetName(first, standingsSheet); err != nil {
		return nil, err
	}
	if _, err := xl.NewSheet(matchesSheet); err != nil {
		return nil, err
	}

	if err := setRow(xl, standingsSheet, 0, "Season", season.Name, string(season.ScoreType)); err != nil {
		return nil, err
	}
	if err := setRow(xl, standingsSheet, 1, "Rank", "Player", "Score"); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if err := setRow(xl, standingsSheet, i+2, r.Rank, r.Name, r.Score); err != nil {
			return nil, err
		}
	}

	if err := setRow(xl, matchesSheet, 0, "Seq", "Home", "Away", "Home score", "Away score", "Home odds", "Away odds", "Created"); err != nil {
		return nil, err
	}
	for i, m := range matches {
		err := setRow(xl, matchesSheet, i+1,
			m.Seq, joinNames(m.HomePlayerIDs, names), joinNames(m.AwayPlayerIDs, names),
			m.HomeScore, m.AwayScore, m.HomeExpected, m.AwayExpected, m.CreatedAt)
		if err != nil {
			return nil, err
		}
	}
	return xl, nil
}

func setRow(xl *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row+1)
		if err != nil {
			return err
		}
		if err := xl.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func joinNames(ids []string, names map[string]string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " & "
		}
		if n, ok := names[id]; ok {
			out += n
		} else {
			out += id
		}
	}
	return out
}
