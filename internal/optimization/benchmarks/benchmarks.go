// Package benchmarks provides named test objectives so that the server and
// the CLI can run optimizations without user-supplied code.
package benchmarks

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize/functions"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// ErrUnknownFunction is returned for names missing from the registry.
var ErrUnknownFunction = errors.New("unknown benchmark function")

// Function describes one benchmark objective.
type Function struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Dim         int     `json:"dim,omitempty"` // fixed dimension, 0 when any dimension >= MinDim works
	MinDim      int     `json:"min_dim"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	Start       float64 `json:"start"` // default start coordinate
	Minimum     float64 `json:"minimum"`

	eval   func(x []float64) float64
	domain func(x []float64) error
}

// CheckDim reports whether the function accepts dim coordinates.
func (f Function) CheckDim(dim int) error {
	if f.Dim > 0 && dim != f.Dim {
		return fmt.Errorf("%s requires dimension %d, got %d", f.Name, f.Dim, dim)
	}
	if dim < f.MinDim {
		return fmt.Errorf("%s requires dimension >= %d, got %d", f.Name, f.MinDim, dim)
	}
	return nil
}

// DefaultDim is the dimension used when a request does not name one.
func (f Function) DefaultDim() int {
	if f.Dim > 0 {
		return f.Dim
	}
	if f.MinDim > 2 {
		return f.MinDim
	}
	return 2
}

// Objective returns the function as an objective. Calls with the wrong
// dimension fail the evaluation instead of panicking.
func (f Function) Objective() optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		if err := f.CheckDim(len(x)); err != nil {
			return 0, err
		}
		if f.domain != nil {
			if err := f.domain(x); err != nil {
				return 0, err
			}
		}
		return f.eval(x), nil
	}
}

// Bounds returns the default search box for dim dimensions.
func (f Function) Bounds(dim int) []optimization.Bound {
	bounds := make([]optimization.Bound, dim)
	for i := range bounds {
		bounds[i] = optimization.Bound{Min: f.Lower, Max: f.Upper}
	}
	return bounds
}

// Initial returns the default starting point for dim dimensions.
func (f Function) Initial(dim int) []float64 {
	x := make([]float64, dim)
	for i := range x {
		x[i] = f.Start
	}
	return x
}

var registry = map[string]Function{
	"sphere": {
		Name:        "sphere",
		Description: "sum of squares",
		MinDim:      1,
		Lower:       -5.12,
		Upper:       5.12,
		Start:       3,
		eval:        sphere,
	},
	"rosenbrock": {
		Name:        "rosenbrock",
		Description: "extended Rosenbrock valley",
		MinDim:      2,
		Lower:       -5,
		Upper:       10,
		Start:       -1.2,
		eval:        functions.ExtendedRosenbrock{}.Func,
	},
	"rastrigin": {
		Name:        "rastrigin",
		Description: "highly multimodal cosine-modulated sphere",
		MinDim:      1,
		Lower:       -5.12,
		Upper:       5.12,
		Start:       2.5,
		eval:        rastrigin,
	},
	"ackley": {
		Name:        "ackley",
		Description: "nearly flat outer region with a deep central hole",
		MinDim:      1,
		Lower:       -32.768,
		Upper:       32.768,
		Start:       2,
		eval:        ackley,
	},
	"booth": {
		Name:        "booth",
		Description: "plate-shaped quadratic, minimum at (1, 3)",
		Dim:         2,
		MinDim:      2,
		Lower:       -10,
		Upper:       10,
		Start:       5,
		eval:        booth,
	},
	"himmelblau": {
		Name:        "himmelblau",
		Description: "four identical local minima",
		Dim:         2,
		MinDim:      2,
		Lower:       -5,
		Upper:       5,
		Start:       1,
		eval:        himmelblau,
	},
	"beale": {
		Name:        "beale",
		Description: "sharp peaks at the corners, minimum at (3, 0.5)",
		Dim:         2,
		MinDim:      2,
		Lower:       -4.5,
		Upper:       4.5,
		Start:       1,
		eval:        functions.Beale{}.Func,
	},
	"branin": {
		Name:        "branin",
		Description: "Branin-Hoo, three global minima",
		Dim:         2,
		MinDim:      2,
		Lower:       -5,
		Upper:       15,
		Start:       1,
		Minimum:     0.397887,
		eval:        functions.BraninHoo{}.Func,
	},
	"helical-valley": {
		Name:        "helical-valley",
		Description: "Fletcher-Powell helical valley",
		Dim:         3,
		MinDim:      3,
		Lower:       -10,
		Upper:       10,
		Start:       -1,
		eval:        functions.HelicalValley{}.Func,
		domain:      nonZeroFirst,
	},
	"wood": {
		Name:        "wood",
		Description: "Wood four-dimensional function",
		Dim:         4,
		MinDim:      4,
		Lower:       -10,
		Upper:       10,
		Start:       -2,
		eval:        functions.Wood{}.Func,
	},
}

// Get looks up a benchmark by name.
func Get(name string) (Function, error) {
	f, ok := registry[name]
	if !ok {
		return Function{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return f, nil
}

// Names returns the registered names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered benchmark, sorted by name.
func All() []Function {
	names := Names()
	all := make([]Function, len(names))
	for i, name := range names {
		all[i] = registry[name]
	}
	return all
}

func nonZeroFirst(x []float64) error {
	if x[0] == 0 {
		return errors.New("undefined at x[0] = 0")
	}
	return nil
}

func sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

func ackley(x []float64) float64 {
	n := float64(len(x))
	sq, cos := 0.0, 0.0
	for _, v := range x {
		sq += v * v
		cos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sq/n)) - math.Exp(cos/n) + 20 + math.E
}

func booth(x []float64) float64 {
	a := x[0] + 2*x[1] - 7
	b := 2*x[0] + x[1] - 5
	return a*a + b*b
}

func himmelblau(x []float64) float64 {
	a := x[0]*x[0] + x[1] - 11
	b := x[0] + x[1]*x[1] - 7
	return a*a + b*b
}
