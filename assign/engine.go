// Package assign - Matches detected persons to seats of a table grid.
package assign

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-attendance/common"
	"github.com/nvr-ai/go-attendance/grid"
	"github.com/pkg/errors"
)

// Policy decides what happens when several persons pick the same seat.
type Policy string

const (
	// PolicyOverwrite matches every person independently, in input order. A
	// later person whose nearest seat is already claimed replaces the earlier
	// claim, and the earlier person ends up unassigned.
	PolicyOverwrite Policy = "overwrite"
	// PolicyGreedy is a one-to-one matching: all qualifying (person, seat)
	// pairs are taken by ascending distance, each person and seat used once.
	PolicyGreedy Policy = "greedy"
)

// Assignments maps a seat to the person occupying it.
type Assignments map[grid.Coord]common.Detection

// Config holds the thresholds of the adaptive cutoff.
type Config struct {
	// MaxDistanceRatio scales the mean pairwise table distance into the cutoff.
	MaxDistanceRatio float32 `json:"max_distance_ratio"`
	// FallbackDistance is the cutoff in pixels when fewer than two tables exist.
	FallbackDistance float32 `json:"fallback_distance"`
	// Policy resolves seat conflicts.
	Policy Policy `json:"policy"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxDistanceRatio: 0.4,
		FallbackDistance: 200,
		Policy:           PolicyOverwrite,
	}
}

// Result is the outcome of matching one image.
type Result struct {
	// Assignments holds at most one person per seat.
	Assignments Assignments
	// Cutoff is the max allowed person-to-table distance used for this grid.
	Cutoff float32
	// Unassigned counts persons that ended up without a seat.
	Unassigned int
	// Overwritten counts claims replaced by a later person (PolicyOverwrite only).
	Overwritten int
}

// Engine assigns persons to the nearest seat within an adaptive cutoff.
type Engine struct {
	config Config
}

// NewEngine creates an assignment engine.
//
// Arguments:
//   - config: Cutoff thresholds and conflict policy.
//
// Returns:
//   - *Engine: The engine.
//   - error: An error if a threshold is not positive or the policy is unknown.
func NewEngine(config Config) (*Engine, error) {
	if config.MaxDistanceRatio <= 0 {
		return nil, errors.Errorf("max distance ratio must be positive, got %f", config.MaxDistanceRatio)
	}
	if config.FallbackDistance <= 0 {
		return nil, errors.Errorf("fallback distance must be positive, got %f", config.FallbackDistance)
	}
	switch config.Policy {
	case "":
		config.Policy = PolicyOverwrite
	case PolicyOverwrite, PolicyGreedy:
	default:
		return nil, errors.Errorf("unknown assignment policy %q", config.Policy)
	}
	return &Engine{config: config}, nil
}

// Config returns the configuration the engine runs with.
func (e *Engine) Config() Config {
	return e.config
}

// Assign maps persons onto seats of the grid.
//
// A person is only placed on a seat whose table center is strictly closer than
// the cutoff. Persons with no such seat are left out. An absent grid yields an
// empty map.
//
// Arguments:
//   - persons: The detected persons.
//   - g: The table grid of the same image.
//
// Returns:
//   - Assignments: Seat to person.
func (e *Engine) Assign(persons []common.Detection, g *grid.Grid) Assignments {
	return e.Match(persons, g).Assignments
}

// Match is Assign with the cutoff and conflict counters exposed.
func (e *Engine) Match(persons []common.Detection, g *grid.Grid) Result {
	result := Result{
		Assignments: Assignments{},
		Cutoff:      e.MaxAllowedDistance(g),
	}
	if g.Filled() == 0 {
		result.Unassigned = len(persons)
		return result
	}

	if e.config.Policy == PolicyGreedy {
		e.matchGreedy(persons, g, &result)
	} else {
		e.matchOverwrite(persons, g, &result)
	}

	result.Unassigned = len(persons) - len(result.Assignments)
	return result
}

// matchOverwrite places each person on its nearest seat, later claims winning.
func (e *Engine) matchOverwrite(persons []common.Detection, g *grid.Grid, result *Result) {
	for _, person := range persons {
		coord, ok := nearestSeat(person.Center, g, result.Cutoff)
		if !ok {
			continue
		}
		if _, taken := result.Assignments[coord]; taken {
			result.Overwritten++
		}
		result.Assignments[coord] = person
	}
}

// candidate is a qualifying person-seat pair.
type candidate struct {
	person   int
	coord    grid.Coord
	distance float32
}

// matchGreedy takes qualifying pairs by ascending distance, one per person and seat.
func (e *Engine) matchGreedy(persons []common.Detection, g *grid.Grid, result *Result) {
	var candidates []candidate
	for p, person := range persons {
		g.Each(func(coord grid.Coord, table common.Detection) {
			d := person.Center.Distance(table.Center)
			if d < result.Cutoff {
				candidates = append(candidates, candidate{person: p, coord: coord, distance: d})
			}
		})
	}

	// Stable: equal distances keep person order, then row-major seat order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	placed := make(map[int]bool, len(persons))
	for _, c := range candidates {
		if placed[c.person] {
			continue
		}
		if _, taken := result.Assignments[c.coord]; taken {
			continue
		}
		result.Assignments[c.coord] = persons[c.person]
		placed[c.person] = true
	}
}

// nearestSeat returns the filled seat closest to p, if it is under the cutoff.
// Ties keep the first seat in row-major order.
func nearestSeat(p common.Point, g *grid.Grid, cutoff float32) (grid.Coord, bool) {
	best := math32.Inf(1)
	var coord grid.Coord
	found := false

	g.Each(func(c grid.Coord, table common.Detection) {
		d := p.Distance(table.Center)
		if d < best && d < cutoff {
			best = d
			coord = c
			found = true
		}
	})

	return coord, found
}

// MaxAllowedDistance computes the cutoff for a grid.
//
// With two or more tables it is the mean of all pairwise table center
// distances times MaxDistanceRatio, so it follows the seat spacing of the
// photo. Otherwise FallbackDistance is used.
//
// Arguments:
//   - g: The table grid, possibly absent.
//
// Returns:
//   - float32: The cutoff in pixels.
func (e *Engine) MaxAllowedDistance(g *grid.Grid) float32 {
	var centers []common.Point
	g.Each(func(_ grid.Coord, table common.Detection) {
		centers = append(centers, table.Center)
	})

	if len(centers) < 2 {
		return e.config.FallbackDistance
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(centers); i++ {
		for j := i + 1; j < len(centers); j++ {
			sum += float64(centers[i].Distance(centers[j]))
			pairs++
		}
	}

	return float32(sum/float64(pairs)) * e.config.MaxDistanceRatio
}
