// Package game holds the authoritative cellular-automaton grid shared by
// every connected client.
package game

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkg/errors"

	"lifesync-server/domain"
)

type Config struct {
	Width  int
	Height int
	Rule   string
	// Seed fills the grid randomly when non-zero.
	Seed int64
	// Tick advances one generation per interval in Run. Zero disables it.
	Tick time.Duration
}

type Settings struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Rule         string `json:"rule"`
	TickInterval int64  `json:"tickInterval"`
}

type State struct {
	Generation uint64  `json:"generation"`
	Revision   uint64  `json:"revision"`
	Cells      [][]int `json:"cells"`
}

// Game is a toroidal life-like grid. Every read and write goes through mu,
// so mutations are applied one at a time and published in that order.
type Game struct {
	mu         sync.Mutex
	w, h       int
	rule       Rule
	tick       time.Duration
	cur, nxt   []uint8
	generation uint64
	revision   uint64
	onUpdate   domain.UpdateFunc
}

// New builds a grid from cfg. onUpdate is called with the resulting State
// after every applied patch and every step.
func New(cfg Config, onUpdate domain.UpdateFunc) (*Game, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("grid size %dx%d must be positive", cfg.Width, cfg.Height)
	}
	rule := Conway
	if cfg.Rule != "" {
		var err error
		if rule, err = ParseRule(cfg.Rule); err != nil {
			return nil, err
		}
	}

	n := cfg.Width * cfg.Height
	g := &Game{
		w:        cfg.Width,
		h:        cfg.Height,
		rule:     rule,
		tick:     cfg.Tick,
		cur:      make([]uint8, n),
		nxt:      make([]uint8, n),
		onUpdate: onUpdate,
	}
	if cfg.Seed != 0 {
		rng := rand.New(rand.NewPCG(uint64(cfg.Seed), 0))
		for i := range g.cur {
			g.cur[i] = uint8(rng.IntN(2))
		}
	}
	return g, nil
}

func (g *Game) Read(fn func(state, settings any)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.snapshot(), g.settings())
}

func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

func (g *Game) Settings() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings()
}

func (g *Game) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

// ApplyUpdates validates the whole patch before touching the grid; a patch
// with any bad update changes nothing.
func (g *Game) ApplyUpdates(patch json.RawMessage) error {
	updates, err := decodePatch(patch)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range updates {
		x, y := u.Cell[0], u.Cell[1]
		if x < 0 || x >= g.w || y < 0 || y >= g.h {
			return errors.Errorf("cell (%d,%d) outside %dx%d grid", x, y, g.w, g.h)
		}
	}
	for _, u := range updates {
		var v uint8
		if *u.Alive {
			v = 1
		}
		g.cur[u.Cell[1]*g.w+u.Cell[0]] = v
	}
	g.revision++
	g.publish()
	return nil
}

// Step advances the grid by one generation.
func (g *Game) Step() {
	g.mu.Lock()
	defer g.mu.Unlock()

	w, h := g.w, g.h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			neighbors := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx := (x + dx + w) % w
					ny := (y + dy + h) % h
					neighbors += int(g.cur[ny*w+nx])
				}
			}
			idx := y*w + x
			g.nxt[idx] = 0
			if g.rule.next(g.cur[idx] == 1, neighbors) {
				g.nxt[idx] = 1
			}
		}
	}
	g.cur, g.nxt = g.nxt, g.cur
	g.generation++
	g.revision++
	g.publish()
}

// Run steps the grid every tick interval until ctx is done. It returns
// immediately when ticking is disabled.
func (g *Game) Run(ctx context.Context) error {
	if g.tick <= 0 {
		return nil
	}
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			g.Step()
		}
	}
}

func (g *Game) publish() {
	if g.onUpdate != nil {
		g.onUpdate(g.snapshot())
	}
}

func (g *Game) snapshot() State {
	cells := make([][]int, g.h)
	for y := range cells {
		row := make([]int, g.w)
		for x := range row {
			row[x] = int(g.cur[y*g.w+x])
		}
		cells[y] = row
	}
	return State{Generation: g.generation, Revision: g.revision, Cells: cells}
}

func (g *Game) settings() Settings {
	return Settings{
		Width:        g.w,
		Height:       g.h,
		Rule:         g.rule.String(),
		TickInterval: g.tick.Milliseconds(),
	}
}
