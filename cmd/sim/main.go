// Command sim drives a running scorebrawl server with a random season and
// exports season reports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/internal/simulate"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/logger"
)

type globals struct {
	URL       string        `help:"Base URL of the service." default:"http://localhost:8080" env:"SCOREBRAWL_SIM_URL"`
	User      string        `help:"Acting user id sent on writes." default:"simulator" env:"SCOREBRAWL_SIM_USER"`
	Timeout   time.Duration `help:"HTTP request timeout." default:"10s"`
	LogFormat string        `help:"Log format." enum:"text,json" default:"text"`
	Verbose   bool          `help:"Enable debug logging." short:"v"`
}

type runCmd struct {
	Players    int    `help:"Players joining the season." default:"12"`
	Matches    int    `help:"Matches to settle." default:"200"`
	SideSize   int    `help:"Largest side of a match." default:"2"`
	MaxGoals   int    `help:"Largest final score of a side." default:"10"`
	ScoreType  string `help:"Scoring mode." enum:"elo,elo-individual-vs-team,3-1-0" default:"elo"`
	Seed       uint64 `help:"Seed of the match generator." default:"1"`
	Revert     int    `help:"Latest matches to remove after settling." default:"0"`
	NoProgress bool   `help:"Hide the progress bar."`
	Output     string `help:"Write an xlsx report to this path." type:"path"`
}

func (c *runCmd) Run(ctx context.Context, g *globals) error {
	_, err := simulate.Run(ctx, &simulate.Config{
		BaseURL:     g.URL,
		UserID:      g.User,
		Players:     c.Players,
		Matches:     c.Matches,
		MaxSideSize: c.SideSize,
		MaxGoals:    c.MaxGoals,
		ScoreType:   c.ScoreType,
		Seed:        c.Seed,
		Revert:      c.Revert,
		Timeout:     g.Timeout,
		NoProgress:  c.NoProgress,
		Output:      c.Output,
	}, os.Stdout)
	return err
}

type exportCmd struct {
	Season string `arg:"" help:"Season id."`
	Output string `arg:"" help:"Path of the xlsx report." type:"path"`
	Limit  int    `help:"Standings rows to export." default:"100"`
}

func (c *exportCmd) Run(ctx context.Context, g *globals) error {
	client := simulate.NewClient(g.URL, g.User, g.Timeout)
	return simulate.Export(ctx, client, c.Season, c.Output, c.Limit)
}

var cli struct {
	globals

	Run    runCmd    `cmd:"" help:"Simulate a season against the server and verify standings."`
	Export exportCmd `cmd:"" help:"Export a season's standings and match log to xlsx."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("sim"),
		kong.Description("Scorebrawl season simulator."),
		kong.UsageOnError())

	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(cli.LogFormat)); err != nil {
		kctx.FatalIfErrorf(err)
	}
	if cli.Verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run(&cli.globals)
	stop()
	kctx.FatalIfErrorf(err)
}
