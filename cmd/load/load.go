// Package load contains the command that loads entities and prints them.
package load

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/wdgraph/wdgraph/cmd/run"
	"github.com/wdgraph/wdgraph/cmd/util"
	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/entitygraph"
	"github.com/wdgraph/wdgraph/pkg/loader"
	"github.com/wdgraph/wdgraph/pkg/storage"
)

const (
	followFlag            = "follow"
	preloadFlag           = "preload"
	preloadAllForRootFlag = "preload-all-for-root"
	maxDepthFlag          = "max-depth"
	timeoutFlag           = "timeout"
	outputFlag            = "output"

	defaultMaxDepth = 1
)

var outputFormats = []string{"json", "yaml", "dot"}

// NewLoadCommand returns the command that loads the given entities, follows the
// requested relations and prints the result.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load ID...",
		Short: "Load entities and the entities they link to",
		Long: `Load entities and the entities they link to.

Numeric IDs are read as items, so '42' loads Q42. Relations named with --follow are fetched
round by round up to --max-depth hops; relations named with --preload, together with every
property and qualifier seen, are fetched once at the end without following them further.`,
		Example: `  wdgraph load Q42 --follow P31,P279 --max-depth 2
  wdgraph load Q42 --preload-all-for-root --output yaml
  wdgraph load Q5 --follow P279 --max-depth -1 --output dot | dot -Tsvg > q5.svg`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			run.BindConfigFlags(cmd.Flags())
			output, _ := cmd.Flags().GetString(outputFlag)
			if !util.Contains(outputFormats, output) {
				return fmt.Errorf("flag '--%s' must be one of %v, got %q", outputFlag, outputFormats, output)
			}
			return nil
		},
		RunE: load,
	}

	flags := cmd.Flags()
	run.AddConfigFlags(flags)

	flags.StringSlice(followFlag, nil, "relations whose item targets are loaded in the following rounds")
	flags.StringSlice(preloadFlag, nil, "relations whose item targets are loaded once at the end")
	flags.Bool(preloadAllForRootFlag, false, "preload the targets of every relation of the given entities instead of --preload")
	flags.Int(maxDepthFlag, defaultMaxDepth, "the number of hops to follow; a negative value follows until nothing new is found")
	flags.Duration(timeoutFlag, 0, "give up waiting for the load after this long (0 waits until it finishes)")
	flags.StringP(outputFlag, "o", "json", "the output format, one of json, yaml or dot")

	return cmd
}

// Output is the document printed by the json and yaml formats.
type Output struct {
	Session       string           `json:"session"`
	Requested     int              `json:"requested"`
	Loaded        int              `json:"loaded"`
	FailedBatches int              `json:"failedBatches"`
	Entities      []*entity.Entity `json:"entities"`
}

func load(cmd *cobra.Command, args []string) error {
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

	loaderCfg, err := LoaderConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	loaderCfg.Languages = cfg.Source.Languages
	loaderCfg.OnStatus = func(s *loader.Session) {
		rc.Logger.Debug("load progress",
			zap.String("session_id", s.ID()),
			zap.Int("running", s.Running()),
			zap.Int("requested", s.Requested()),
			zap.Int("loaded", s.Loaded()),
		)
	}

	output, _ := cmd.Flags().GetString(outputFlag)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rc.Run(ctx, func(ctx context.Context) error {
		if timeout, _ := cmd.Flags().GetDuration(timeoutFlag); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		s, err := rc.Loader.Load(ctx, args, loaderCfg)
		if err != nil {
			return err
		}

		return Write(cmd.OutOrStdout(), output, rc.Store, s, cfg.Source.Languages)
	})
}

// LoaderConfigFromFlags reads the load session flags of cmd.
func LoaderConfigFromFlags(cmd *cobra.Command) (loader.Config, error) {
	flags := cmd.Flags()

	follow, err := flags.GetStringSlice(followFlag)
	if err != nil {
		return loader.Config{}, err
	}
	preload, err := flags.GetStringSlice(preloadFlag)
	if err != nil {
		return loader.Config{}, err
	}
	preloadAll, err := flags.GetBool(preloadAllForRootFlag)
	if err != nil {
		return loader.Config{}, err
	}
	maxDepth, err := flags.GetInt(maxDepthFlag)
	if err != nil {
		return loader.Config{}, err
	}

	cfg := loader.Config{
		Follow:            follow,
		Preload:           preload,
		PreloadAllForRoot: preloadAll,
	}
	if maxDepth >= 0 {
		cfg.MaxDepth = loader.Depth(maxDepth)
	}

	return cfg, nil
}

// Write prints the entities of store in the given format. The dot format draws
// the followed relations of s, or every relation when none was followed.
func Write(w io.Writer, format string, store storage.Reader, s *loader.Session, languages []string) error {
	if format == "dot" {
		labels := languages
		if len(labels) == 0 {
			labels = []string{"en"}
		}
		_, err := fmt.Fprintln(w, entitygraph.New(store, s.Follow(), labels...).GetDOT())
		return err
	}

	out := Output{
		Session:       s.ID(),
		Requested:     s.Requested(),
		Loaded:        s.Loaded(),
		FailedBatches: s.FailedBatches(),
		Entities:      []*entity.Entity{},
	}
	for _, id := range store.IDs() {
		if e, ok := store.Get(id); ok {
			out.Entities = append(out.Entities, e)
		}
	}

	var (
		body []byte
		err  error
	)
	switch format {
	case "yaml":
		body, err = yaml.Marshal(out)
	default:
		body, err = json.MarshalIndent(out, "", "  ")
		body = append(body, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = w.Write(body)
	return err
}
