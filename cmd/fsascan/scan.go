package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/go-text/typesetting/language"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/fsa/graph"
	"github.com/gogpu/fsa/internal/metrics"
	"github.com/gogpu/fsa/textbuf"
)

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan AUTOMATON FILE...",
		Short: "Report every position of each file where the automaton matches",
		Long: `Scan loads an automaton (binary .fsa or YAML description) and evaluates it
at every code point of each file. Each match prints one line:

	FILE:POSITION	LENGTH	SCRIPT	MATCH

POSITION counts code points from 0. SCRIPT is the Unicode script of the
first matched code point.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scan(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], args[1:])
		},
	}
	f := cmd.Flags()
	f.Int("jobs", 4, "files scanned concurrently")
	f.String("encoding", "", "input encoding (IANA name); empty is UTF-8 with BOM detection")
	f.String("normalize", "", "normalize input (nfc, nfd, nfkc, nfkd)")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the scan")
	f.Bool("trace", false, "export run spans to stderr")
	return cmd
}

// fileResult is the outcome of one scanned file.
type fileResult struct {
	name    string
	text    []rune
	lengths []uint32
}

func (a *app) scan(ctx context.Context, stdout, stderr io.Writer, automatonPath string, files []string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.cfg.Trace {
		shutdown, terr := installTracer(stderr)
		if terr != nil {
			return terr
		}
		defer func() {
			if serr := shutdown(context.Background()); serr != nil && err == nil {
				err = serr
			}
		}()
	}
	if a.cfg.MetricsFile != "" {
		defer func() {
			if merr := metrics.WriteTextfile(a.cfg.MetricsFile); merr != nil && err == nil {
				err = fmt.Errorf("fsascan: metrics: %w", merr)
			}
		}()
	}

	automaton, err := graph.Load(automatonPath)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	engine, cleanup, err := a.engine()
	if err != nil {
		return err
	}
	defer cleanup()

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Jobs)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := textbuf.LoadFile(name, a.cfg.TextOptions())
			if err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			lengths, err := engine.RunContext(gctx, automaton, text)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = fileResult{name: name, text: text, lengths: lengths}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	for _, r := range results {
		report(w, r)
	}
	return w.Flush()
}

// report writes one line per position with a non-empty match.
func report(w io.Writer, r fileResult) {
	for pos, n := range r.lengths {
		if n == 0 {
			continue
		}
		end := min(pos+int(n), len(r.text))
		script := language.LookupScript(r.text[pos])
		fmt.Fprintf(w, "%s:%d\t%d\t%s\t%q\n", r.name, pos, n, script, string(r.text[pos:end]))
	}
}

// installTracer routes spans to w through a batching stdout exporter.
func installTracer(w io.Writer) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("fsascan: trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

