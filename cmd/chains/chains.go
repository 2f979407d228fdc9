// Package chains contains the command that prints the longest relation chain
// starting at each of the given entities.
package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wdgraph/wdgraph/cmd/run"
	"github.com/wdgraph/wdgraph/cmd/util"
	"github.com/wdgraph/wdgraph/pkg/chain"
	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/loader"
	"github.com/wdgraph/wdgraph/pkg/storage"
)

const (
	relationsFlag = "relations"
	maxDepthFlag  = "max-depth"
	outputFlag    = "output"
)

var outputFormats = []string{"text", "json"}

// NewChainCommand returns the command that loads the given entities along the
// requested relations and prints the longest chain from each of them.
func NewChainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain ID...",
		Short: "Print the longest chain of relations starting at each entity",
		Long: `Print the longest chain of relations starting at each entity.

The entities are loaded following --relations until nothing new is found or --max-depth hops
were made. The longest path that never visits an entity twice is then printed for each of them.`,
		Example: `  wdgraph chain Q5 --relations P279
  wdgraph chain Q42 Q1 --relations P31,P279 --max-depth 5 --output json`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			run.BindConfigFlags(cmd.Flags())
			output, _ := cmd.Flags().GetString(outputFlag)
			if !util.Contains(outputFormats, output) {
				return fmt.Errorf("flag '--%s' must be one of %v, got %q", outputFlag, outputFormats, output)
			}
			return nil
		},
		RunE: chains,
	}

	flags := cmd.Flags()
	run.AddConfigFlags(flags)

	flags.StringSlice(relationsFlag, nil, "the relations a chain may use")
	flags.Int(maxDepthFlag, -1, "the number of hops to load; a negative value loads until nothing new is found")
	flags.StringP(outputFlag, "o", "text", "the output format, one of text or json")

	if err := cmd.MarkFlagRequired(relationsFlag); err != nil {
		panic(err)
	}

	return cmd
}

// Result is the longest chain found from Start.
type Result struct {
	Start entity.ID   `json:"start"`
	Chain []entity.ID `json:"chain"`
}

func chains(cmd *cobra.Command, args []string) error {
	cfg, err := run.ReadConfig()
	if err != nil {
		return err
	}

	rc, err := run.NewContext(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			rc.Logger.Error("failed to shut down cleanly", zap.Error(err))
		}
	}()

	flags := cmd.Flags()
	relations, _ := flags.GetStringSlice(relationsFlag)
	maxDepth, _ := flags.GetInt(maxDepthFlag)
	output, _ := flags.GetString(outputFlag)

	loaderCfg := loader.Config{
		Follow:    relations,
		Languages: cfg.Source.Languages,
	}
	if maxDepth >= 0 {
		loaderCfg.MaxDepth = loader.Depth(maxDepth)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rc.Run(ctx, func(ctx context.Context) error {
		s, err := rc.Loader.Load(ctx, args, loaderCfg)
		if err != nil {
			return err
		}

		starts, err := entity.CanonicalizeMany(args, entity.TypeItem)
		if err != nil {
			return err
		}

		results := Longest(rc.Store, starts, s.Follow(), runtime.GOMAXPROCS(0))
		return Write(cmd.OutOrStdout(), output, results)
	})
}

// Longest computes the chain of every start with at most workers searches at
// a time. Results keep the order of starts.
func Longest(store storage.Reader, starts, relations []entity.ID, workers int) []Result {
	results := make([]Result, len(starts))

	p := pool.New().WithMaxGoroutines(max(workers, 1))
	for i, start := range starts {
		p.Go(func() {
			results[i] = Result{
				Start: start,
				Chain: chain.Follow(store, start, relations),
			}
		})
	}
	p.Wait()

	return results
}

// Write prints results as text, one chain per line, or as a JSON array.
func Write(w io.Writer, format string, results []Result) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, r := range results {
		hops := make([]string, 0, len(r.Chain))
		for _, id := range r.Chain {
			hops = append(hops, string(id))
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", r.Start, strings.Join(hops, " -> ")); err != nil {
			return err
		}
	}
	return nil
}
