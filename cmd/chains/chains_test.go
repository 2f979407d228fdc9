package chains

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wdgraph/wdgraph/cmd"
	"github.com/wdgraph/wdgraph/cmd/util"
	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/storage/memory"
	"github.com/wdgraph/wdgraph/pkg/testutils"
)

func newGraph() *testutils.Graph {
	return testutils.NewGraph(
		testutils.ItemPayload("Q1", testutils.Link{Property: "P1", Target: "Q2"}),
		testutils.ItemPayload("Q2",
			testutils.Link{Property: "P1", Target: "Q3"},
			testutils.Link{Property: "P2", Target: "Q4"},
		),
		testutils.ItemPayload("Q3", testutils.Link{Property: "P1", Target: "Q1"}),
		testutils.ItemPayload("Q4", testutils.Link{Property: "P2", Target: "Q5"}),
		testutils.ItemPayload("Q5"),
	)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	util.PrepareTempConfigDir(t)
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(NewChainCommand())
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"chain"}, args...))

	err := rootCmd.Execute()
	return out.String(), err
}

func TestChainCommand(t *testing.T) {
	srv := testutils.NewWikibaseServer(t, newGraph())

	stdout, err := execute(t, "Q1", "3",
		"--relations", "P1",
		"--source-endpoint", srv.URL,
		"--log-level", "none",
	)
	require.NoError(t, err)
	require.Equal(t, "Q1: Q1 -> Q2 -> Q3\nQ3: Q3 -> Q1 -> Q2\n", stdout)
}

func TestChainCommandSeveralRelations(t *testing.T) {
	srv := testutils.NewWikibaseServer(t, newGraph())

	stdout, err := execute(t, "Q1",
		"--relations", "P1,2",
		"--output", "json",
		"--source-endpoint", srv.URL,
		"--log-level", "none",
	)
	require.NoError(t, err)

	var results []Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Equal(t, []Result{{Start: "Q1", Chain: []entity.ID{"Q1", "Q2", "Q4", "Q5"}}}, results)
}

func TestChainCommandMaxDepth(t *testing.T) {
	graph := newGraph()
	srv := testutils.NewWikibaseServer(t, graph)

	stdout, err := execute(t, "Q1",
		"--relations", "P1",
		"--max-depth", "1",
		"--source-endpoint", srv.URL,
		"--log-level", "none",
	)
	require.NoError(t, err)
	require.Equal(t, "Q1: Q1 -> Q2\n", stdout)
	require.Zero(t, graph.FetchCount("Q3"))
}

func TestChainCommandErrors(t *testing.T) {
	t.Run("missing_relations", func(t *testing.T) {
		_, err := execute(t, "Q1")
		require.ErrorContains(t, err, `required flag(s) "relations" not set`)
	})

	t.Run("unknown_output", func(t *testing.T) {
		_, err := execute(t, "Q1", "--relations", "P1", "--output", "dot")
		require.EqualError(t, err, `flag '--output' must be one of [text json], got "dot"`)
	})
}

func TestLongest(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := memory.New()
	for _, p := range []*entity.Payload{
		testutils.ItemPayload("Q1", testutils.Link{Property: "P1", Target: "Q2"}),
		testutils.ItemPayload("Q2", testutils.Link{Property: "P1", Target: "Q1"}),
		testutils.ItemPayload("Q3"),
	} {
		store.PutLoaded(p.ID, p)
	}

	results := Longest(store, []entity.ID{"Q1", "Q2", "Q3", "Q9"}, []entity.ID{"P1"}, 0)
	require.Equal(t, []Result{
		{Start: "Q1", Chain: []entity.ID{"Q1", "Q2"}},
		{Start: "Q2", Chain: []entity.ID{"Q2", "Q1"}},
		{Start: "Q3", Chain: []entity.ID{"Q3"}},
		{Start: "Q9", Chain: []entity.ID{"Q9"}},
	}, results)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "text", []Result{
		{Start: "Q1", Chain: []entity.ID{"Q1", "Q2"}},
		{Start: "Q7", Chain: []entity.ID{"Q7"}},
	}))
	require.Equal(t, "Q1: Q1 -> Q2\nQ7: Q7\n", buf.String())
}
