// Package cycle builds the admissible-pair graph, enumerates simple
// cycles over it, and structures each cycle against symbol metadata
// into a Cycle value carrying the fee-aware, bid/ask-aware profit
// function (spec §4.C/§4.D).
package cycle

import (
	"sort"

	"cyclehunter/internal/exchange"
)

// Graph is an undirected adjacency map keyed by interned asset
// strings, per spec §9's design note. Edges exist only between assets
// connected by an admissible (TRADING) pair.
type Graph struct {
	adj map[string]map[string]struct{}
}

// BuildGraph constructs the adjacency map from pairs, restricted to
// assets present in admissibleAssets (the universe builder's output).
// A nil/empty admissibleAssets disables the restriction — every
// TRADING pair's assets participate.
func BuildGraph(pairs []exchange.Pair, admissibleAssets []string) *Graph {
	var allow map[string]struct{}
	if len(admissibleAssets) > 0 {
		allow = make(map[string]struct{}, len(admissibleAssets))
		for _, a := range admissibleAssets {
			allow[a] = struct{}{}
		}
	}

	g := &Graph{adj: make(map[string]map[string]struct{})}
	for _, p := range pairs {
		if p.Status != exchange.StatusTrading {
			continue
		}
		if allow != nil {
			if _, ok := allow[p.BaseAsset]; !ok {
				continue
			}
			if _, ok := allow[p.QuoteAsset]; !ok {
				continue
			}
		}
		g.addEdge(p.BaseAsset, p.QuoteAsset)
	}
	return g
}

func (g *Graph) addEdge(a, b string) {
	if g.adj[a] == nil {
		g.adj[a] = make(map[string]struct{})
	}
	if g.adj[b] == nil {
		g.adj[b] = make(map[string]struct{})
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// Neighbors returns asset's adjacent assets, sorted for deterministic
// DFS traversal order.
func (g *Graph) Neighbors(asset string) []string {
	set := g.adj[asset]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasAsset reports whether asset appears in the graph at all.
func (g *Graph) HasAsset(asset string) bool {
	_, ok := g.adj[asset]
	return ok
}

// AssetCount returns the number of distinct assets in the graph.
func (g *Graph) AssetCount() int {
	return len(g.adj)
}
