// Package catalog holds the read-only list of species a game is played against.
//
// Ranks are 1-based positions in the list and never change once a Catalog is
// built; they are the dedup key for scoring.
package catalog

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed gen1.txt
var gen1 []byte

var ErrEmptyCatalog = errors.New("catalog has no species")

type Species struct {
	Rank int    `json:"rank"`
	Name string `json:"name"`
}

type Catalog struct {
	species []Species
}

// New builds a catalog from canonical names in rank order.
func New(names []string) (*Catalog, error) {
	c := &Catalog{species: make([]Species, 0, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c.species = append(c.species, Species{Rank: len(c.species) + 1, Name: name})
	}
	if len(c.species) == 0 {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

// Default returns the embedded Generation 1 list (151 species).
func Default() *Catalog {
	c, err := Parse(bytes.NewReader(gen1))
	if err != nil {
		panic("catalog: embedded list is invalid: " + err.Error())
	}
	return c
}

// Parse reads one species name per line. Blank lines and lines starting with
// '#' are skipped.
func Parse(r io.Reader) (*Catalog, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return New(names)
}

// Load reads a catalog file, falling back to Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func (c *Catalog) Len() int { return len(c.species) }

// Species returns the entry at rank, or false when rank is out of range.
func (c *Catalog) Species(rank int) (Species, bool) {
	if rank < 1 || rank > len(c.species) {
		return Species{}, false
	}
	return c.species[rank-1], true
}

// All returns a copy of every entry in rank order.
func (c *Catalog) All() []Species {
	out := make([]Species, len(c.species))
	copy(out, c.species)
	return out
}
