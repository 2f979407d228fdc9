// Package entitygraph renders the loaded part of an entity store as a directed
// multigraph, mainly for inspection with Graphviz.
package entitygraph

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/wdgraph/wdgraph/pkg/entity"
	"github.com/wdgraph/wdgraph/pkg/storage"
)

// DotGraph is a store snapshot in graph form. Loaded entities are nodes; every
// item-valued claim between two loaded entities is a line labelled with its
// relation. Entities can be linked more than once, through different relations
// or repeated claims, hence the multigraph.
type DotGraph struct {
	*multi.DirectedGraph

	// entity IDs to node IDs. Used to find nodes
	mapping map[entity.ID]int64
}

var _ dot.Attributers = (*DotGraph)(nil)

func (g *DotGraph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	return g, nil, nil
}

func (g *DotGraph) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{
		Key:   "rankdir",
		Value: "LR",
	}}
}

type dotEdge struct {
	graph.Line
	relation entity.ID
}

var _ encoding.Attributer = (*dotEdge)(nil)

func (d *dotEdge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: string(d.relation)}}
}

// Relation returns the relation the line was built from.
func (d *dotEdge) Relation() entity.ID {
	return d.relation
}

type dotNode struct {
	graph.Node
	id    entity.ID
	attrs map[string]string
}

var (
	_ encoding.Attributer = (*dotNode)(nil)
	_ dot.Node            = (*dotNode)(nil)
)

// DOTID names the node by its entity ID in DOT output.
func (d *dotNode) DOTID() string {
	return string(d.id)
}

func (d *dotNode) Attributes() []encoding.Attribute {
	keys := make([]string, 0, len(d.attrs))
	for k := range d.attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]encoding.Attribute, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, encoding.Attribute{
			Key:   k,
			Value: d.attrs[k],
		})
	}
	return attrs
}

// New builds the graph of the entities loaded in store, linked by relations.
// With no relations every relation is used. Labels are taken in the given
// languages, falling back to the ID.
func New(store storage.Reader, relations []entity.ID, languages ...string) *DotGraph {
	g := &DotGraph{multi.NewDirectedGraph(), make(map[entity.ID]int64)}

	ids := store.IDs()
	loaded := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		e, ok := store.Get(id)
		if !ok || e.IsPlaceholder() {
			continue
		}
		loaded = append(loaded, e)
		g.addAndGetNode(e, languages)
	}

	for _, e := range loaded {
		props := relations
		if len(props) == 0 {
			props = e.PropertyIDs()
		}
		for _, p := range props {
			for _, q := range e.ItemTargets(p) {
				g.addEdge(e.ID, q, p)
			}
		}
	}

	return g
}

// GetDOT returns the DOT visualization. The output text is stable.
func (g *DotGraph) GetDOT() string {
	dotRepresentation, err := dot.MarshalMulti(g, "", "", "")
	if err != nil {
		return ""
	}
	return string(dotRepresentation)
}

// Reachable returns true if it's possible to reach to from from using breadth first search.
func (g *DotGraph) Reachable(from, to entity.ID) (bool, error) {
	sourceNode := g.getNode(from)
	if sourceNode == nil {
		return false, fmt.Errorf("source node %s not found", from)
	}
	targetNode := g.getNode(to)
	if targetNode == nil {
		return false, fmt.Errorf("target node %s not found", to)
	}

	bfs := traverse.BreadthFirst{}

	res := false
	bfs.Walk(g.DirectedGraph, sourceNode, func(n graph.Node, d int) bool {
		if n.ID() == targetNode.ID() {
			res = true
			return true
		}
		return false
	})
	return res, nil
}

func (g *DotGraph) getNode(id entity.ID) graph.Node {
	if nid, ok := g.mapping[id]; ok {
		return g.Node(nid)
	}
	return nil
}

func (g *DotGraph) addAndGetNode(e *entity.Entity, languages []string) graph.Node {
	if n := g.getNode(e.ID); n != nil {
		return n
	}
	n := &dotNode{Node: g.DirectedGraph.NewNode(), id: e.ID, attrs: make(map[string]string)}
	g.DirectedGraph.AddNode(n)
	g.mapping[e.ID] = n.ID()

	label := string(e.ID)
	if l := e.Label(languages...); l != label {
		label = fmt.Sprintf("%s (%s)", l, e.ID)
	}
	n.attrs["label"] = label
	if e.IsProperty() {
		n.attrs["shape"] = "box"
	}
	return n
}

// addEdge links from to to unless to is not a node of the graph.
func (g *DotGraph) addEdge(from, to, relation entity.ID) {
	n1 := g.getNode(from)
	n2 := g.getNode(to)
	if n1 == nil || n2 == nil {
		return
	}
	line := g.DirectedGraph.NewLine(n1, n2)
	g.DirectedGraph.SetLine(&dotEdge{Line: line, relation: relation})
}
