package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadEdgeList reads one edge per line, as two whitespace-separated node
// identifiers. Blank lines and lines starting with '#' are skipped. Unless
// directed is set, every edge is added in both directions.
func (g *InmemGraph) LoadEdgeList(r io.Reader, directed bool) error {
	return scanPairs(r, func(a, b string) error {
		if directed {
			g.AddEdge(a, b)
		} else {
			g.AddUndirectedEdge(a, b)
		}
		return nil
	})
}

// LoadCommunities reads one "node community" assignment per line, in the
// format produced by community detection tools.
func (g *InmemGraph) LoadCommunities(r io.Reader) error {
	return scanPairs(r, g.SetOwner)
}

// LoadFiles builds a graph from an edge-list file and a community file.
func LoadFiles(edgesPath, communitiesPath string, directed bool) (*InmemGraph, error) {
	g := NewInmemGraph()

	cf, err := os.Open(communitiesPath)
	if err != nil {
		return nil, err
	}
	defer cf.Close()
	if err := g.LoadCommunities(cf); err != nil {
		return nil, fmt.Errorf("%s: %w", communitiesPath, err)
	}

	ef, err := os.Open(edgesPath)
	if err != nil {
		return nil, err
	}
	defer ef.Close()
	if err := g.LoadEdgeList(ef, directed); err != nil {
		return nil, fmt.Errorf("%s: %w", edgesPath, err)
	}

	return g, nil
}

func scanPairs(r io.Reader, fn func(a, b string) error) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return fmt.Errorf("line %d: expected two fields, got %q", line, text)
		}
		if err := fn(fields[0], fields[1]); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}
