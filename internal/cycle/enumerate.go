package cycle

// RawCycle is a pre-structuring enumeration result: an ordered asset
// list with a0 = an = the base currency. It has not yet been checked
// against symbol metadata — StructureCycles does that.
type RawCycle struct {
	Assets []string
}

// Enumerate performs a bounded depth-first search from base over g,
// emitting every simple cycle of length 3..maxLen hops that starts and
// ends at base (spec §4.C). Reversals of the same cycle are distinct
// and both emitted; rotations never arise because every cycle is
// rooted at base by construction.
func Enumerate(g *Graph, base string, maxLen int) []RawCycle {
	if maxLen < 3 {
		maxLen = 3
	}
	if !g.HasAsset(base) {
		return nil
	}

	var cycles []RawCycle
	path := []string{base}
	inPath := map[string]bool{base: true}

	var dfs func(current string)
	dfs = func(current string) {
		for _, next := range g.Neighbors(current) {
			if next == base {
				if len(path) >= 3 {
					assets := make([]string, len(path)+1)
					copy(assets, path)
					assets[len(path)] = base
					cycles = append(cycles, RawCycle{Assets: assets})
				}
				continue
			}
			if inPath[next] {
				continue
			}
			if len(path) >= maxLen {
				continue
			}
			path = append(path, next)
			inPath[next] = true
			dfs(next)
			inPath[next] = false
			path = path[:len(path)-1]
		}
	}

	dfs(base)
	return cycles
}
