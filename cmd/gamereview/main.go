package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boardwise/movecoach/internal/builder"
	appcfg "github.com/boardwise/movecoach/internal/config"
	"github.com/boardwise/movecoach/internal/domain"
	"github.com/boardwise/movecoach/internal/report"
	"github.com/boardwise/movecoach/internal/service/review"
)

// gamereview runs one review from the command line: it reads an
// engine-analyzed game as JSON, asks the model about the moves worth
// explaining, and prints the finished report. Progress goes to stderr
// so stdout stays a clean report.
func main() {
	var (
		file      = flag.String("file", "", "analysis JSON file, - for stdin")
		gameID    = flag.String("game", "", "override the game id in the file")
		excellent = flag.Bool("excellent", false, "also explain excellent moves")
		opening   = flag.Bool("opening", false, "also explain book moves")
		minChange = flag.Float64("min-change", 0, "eval swing threshold in percent")
		width     = flag.Int("concurrency", 0, "explanations requested at once")
		timeout   = flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	)
	flag.Parse()

	if strings.TrimSpace(*file) == "" {
		log.Fatal("usage: gamereview -file analysis.json [-game id]")
	}
	analysis, err := readAnalysis(*file)
	if err != nil {
		log.Fatalf("read analysis: %v", err)
	}
	if strings.TrimSpace(*gameID) != "" {
		analysis.GameID = strings.TrimSpace(*gameID)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	deps, err := builder.New(cfg, zap.NewNop())
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer deps.Close()

	// Only flags the user actually set override the environment config.
	var opts []review.RunOption
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "excellent":
			opts = append(opts, review.WithExplainExcellent(*excellent))
		case "opening":
			opts = append(opts, review.WithExplainOpening(*opening))
		case "min-change":
			opts = append(opts, review.WithMinEvalChange(*minChange))
		case "concurrency":
			opts = append(opts, review.WithConcurrency(*width))
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	svc := deps.Reviews
	reporter := report.NewFormatter()

	runID, err := svc.StartReview(analysis, opts...)
	if err != nil {
		log.Fatalf("start review: %v", err)
	}
	fmt.Fprintf(os.Stderr, "review %s started (run %s)\n", analysis.GameID, runID)

	// The background run does not inherit ctx, so a signal or timeout
	// has to cancel it explicitly.
	if ch, stopSub, subErr := svc.Subscribe(analysis.GameID); subErr == nil {
		defer stopSub()
	stream:
		for {
			select {
			case <-ctx.Done():
				_ = svc.CancelReview(analysis.GameID)
				log.Fatalf("review canceled: %v", ctx.Err())
			case p, ok := <-ch:
				if !ok {
					break stream
				}
				fmt.Fprintln(os.Stderr, reporter.Progress(p))
			}
		}
	}

	ge, err := svc.Explanations(context.Background(), analysis.GameID)
	if err != nil {
		log.Fatalf("fetch review: %v", err)
	}
	fmt.Println(reporter.Game(ge, analysis))
}

func readAnalysis(path string) (*domain.GameAnalysis, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var analysis domain.GameAnalysis
	if err := json.NewDecoder(r).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if strings.TrimSpace(analysis.GameID) == "" {
		analysis.GameID = "local"
	}
	return &analysis, nil
}
