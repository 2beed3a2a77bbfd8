package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/vibereco/internal/app"
	"github.com/ewilliams-labs/vibereco/internal/core/domain"
)

type options struct {
	limit  int
	k      int
	asJSON bool
}

type env struct {
	app  *app.App
	args []string
	opts options
	in   io.Reader
	out  io.Writer
}

func (e *env) query() string {
	return strings.TrimSpace(strings.Join(e.args, " "))
}

type command struct {
	live     bool
	needsArg bool
	flags    func(fs *flag.FlagSet) func() options
	run      func(ctx context.Context, e *env) error
}

func noFlags(*flag.FlagSet) func() options { return func() options { return options{} } }

func limitFlags(def int, withJSON bool) func(fs *flag.FlagSet) func() options {
	return func(fs *flag.FlagSet) func() options {
		limit := fs.Int("limit", def, "candidate tracks to fetch (0 uses the configured limit)")
		asJSON := new(bool)
		if withJSON {
			asJSON = fs.Bool("json", false, "print the full run result as JSON")
		}
		return func() options { return options{limit: *limit, asJSON: *asJSON} }
	}
}

var commands = map[string]command{
	"run":               {live: true, needsArg: true, flags: limitFlags(0, true), run: runPipeline},
	"abtest":            {live: true, needsArg: true, flags: limitFlags(0, false), run: runABTest},
	"pairs":             {live: true, flags: limitFlags(10, false), run: runPairs},
	"catalog-build":     {flags: noFlags, run: runCatalogBuild},
	"catalog-recommend": {needsArg: true, flags: kFlags, run: runCatalogRecommend},
	"stats":             {flags: noFlags, run: runStats},
}

func kFlags(fs *flag.FlagSet) func() options {
	k := fs.Int("k", 5, "number of recommendations")
	return func() options { return options{k: *k} }
}

func (e *env) limit() int {
	if e.opts.limit > 0 {
		return e.opts.limit
	}
	return e.app.Config.Pipeline.Limit
}

func runPipeline(ctx context.Context, e *env) error {
	res := e.app.Orchestrator.Run(ctx, e.query(), e.limit())
	if e.opts.asJSON {
		return printJSON(e.out, res)
	}
	if !res.OK {
		return fmt.Errorf("run stopped at %s: %s", res.Stage, res.Message)
	}
	seed, _ := res.Seed()
	fmt.Fprintf(e.out, "\nRecommendations for %s:\n", seed.Label())
	for i, n := range res.Ranked {
		fmt.Fprintf(e.out, "%d. %s (similarity %.4f)\n", i+1, n.Track.Label(), n.Score)
	}
	return nil
}

func runABTest(ctx context.Context, e *env) error {
	query := e.query()
	res := e.app.Orchestrator.Run(ctx, query, e.limit())
	if !res.OK {
		return fmt.Errorf("run stopped at %s: %s", res.Stage, res.Message)
	}
	catalog, reranked := res.Orderings()
	setup := e.app.ABTests.PrepareBlindTest(query, catalog, reranked)

	printPlaylist(e.out, "A", setup.A)
	printPlaylist(e.out, "B", setup.B)

	choice, scores, err := readVote(e.in, e.out)
	if err != nil {
		return err
	}
	rec, err := e.app.ABTests.SaveVote(ctx, setup, choice, scores, query)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "\nThanks! Playlist %s was the %s ordering.\n", rec.ChosenLabel, rec.WinnerSource)
	return nil
}

func runPairs(ctx context.Context, e *env) error {
	seeds := domain.BenchmarkSeeds()
	doc, err := e.app.Pairs.Generate(ctx, seeds, e.opts.limit)
	if err != nil {
		return err
	}
	done := 0
	for _, s := range seeds {
		if doc.Done(s) {
			done++
		}
	}
	fmt.Fprintf(e.out, "%d/%d seeds have playlist pairs (%s)\n", done, len(seeds), e.app.Config.Pipeline.PairsPath)
	return nil
}

func runCatalogBuild(ctx context.Context, e *env) error {
	n, err := e.app.Catalog.Rebuild(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "indexed %d tracks\n", n)
	return nil
}

func runCatalogRecommend(ctx context.Context, e *env) error {
	title := e.query()
	neighbors, err := e.app.Catalog.RecommendByTitle(ctx, title, e.opts.k)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Recommendations for %q:\n", title)
	for i, n := range neighbors {
		fmt.Fprintf(e.out, "%d. %s (similarity %.4f)\n", i+1, n.Track.Label(), n.Score)
	}
	return nil
}

func runStats(ctx context.Context, e *env) error {
	stats, err := e.app.ABTests.GetStats(ctx)
	if err != nil {
		return err
	}
	if stats == nil {
		fmt.Fprintln(e.out, "no votes recorded yet")
		return nil
	}
	return printJSON(e.out, stats)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPlaylist(w io.Writer, label string, tracks []domain.Track) {
	fmt.Fprintf(w, "\nPlaylist %s\n", label)
	for i, t := range tracks {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, t.Label())
	}
}

// readVote prompts for a label and the three 1..5 scores, re-asking on bad
// input until the reader runs dry.
func readVote(in io.Reader, out io.Writer) (domain.Label, domain.Scores, error) {
	sc := bufio.NewScanner(in)
	ask := func(prompt string, ok func(string) bool) (string, error) {
		for {
			fmt.Fprint(out, prompt)
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return "", err
				}
				return "", io.ErrUnexpectedEOF
			}
			answer := strings.TrimSpace(sc.Text())
			if ok(answer) {
				return answer, nil
			}
		}
	}

	choice, err := ask("\nWhich playlist do you prefer? [A/B]: ", func(s string) bool {
		return domain.Label(strings.ToUpper(s)).Valid()
	})
	if err != nil {
		return "", nil, err
	}

	scores := make(domain.Scores, len(domain.Criteria))
	for _, c := range domain.Criteria {
		answer, err := ask(fmt.Sprintf("Rate %s (1-5): ", c), func(s string) bool {
			n, err := strconv.Atoi(s)
			return err == nil && n >= 1 && n <= 5
		})
		if err != nil {
			return "", nil, err
		}
		scores[c], _ = strconv.Atoi(answer)
	}
	return domain.Label(strings.ToUpper(choice)), scores, nil
}
