package optimization

// Status tells which termination condition ended a run
type Status int

const (
	// Running is the zero value; it never appears in a returned result.
	Running Status = iota
	// MinimumStepReached ends a pattern search whose step fell to MinStep.
	MinimumStepReached
	// SuccessBudgetExhausted ends a pattern search after MaxSuccessfulSteps.
	SuccessBudgetExhausted
	// FailureBudgetExhausted ends a walk after MaxFailures+1 consecutive failures.
	FailureBudgetExhausted
)

var statusStrings = map[Status]string{
	Running:                "Running",
	MinimumStepReached:     "MinimumStepReached",
	SuccessBudgetExhausted: "SuccessBudgetExhausted",
	FailureBudgetExhausted: "FailureBudgetExhausted",
}

func (s Status) String() string {
	str, ok := statusStrings[s]
	if !ok {
		return "UnknownStatus"
	}
	return str
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	Algorithm    string
	BestSolution *Solution
	History      []Evaluation

	// Evaluations counts every attempted objective evaluation, failed ones included
	Evaluations      int
	EvaluationErrors int
	SuccessfulSteps  int

	Success bool
	Status  Status
	Message string

	Bounds      []Bound
	Constraints []Constraint
}

// History is the append-only record of accepted solutions of one run.
type History struct {
	entries []Evaluation
}

// NewHistory creates a history with room for capacity entries.
func NewHistory(capacity int) *History {
	return &History{entries: make([]Evaluation, 0, capacity)}
}

// Record appends a copy of x.
func (h *History) Record(iteration int, x []float64, value float64) {
	h.entries = append(h.entries, Evaluation{
		Iteration: iteration,
		Solution: &Solution{
			Parameters: append([]float64(nil), x...),
			Value:      value,
		},
	})
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns the recorded entries.
func (h *History) Entries() []Evaluation {
	return h.entries
}

// Outcome is what a search loop knows when it stops.
type Outcome struct {
	Algorithm       string
	X               []float64
	Value           float64
	SuccessfulSteps int
	Success         bool
	Status          Status
	Message         string
}

// NewResult assembles the run outcome. It is called once, at the single
// return point of a run.
func NewResult(out Outcome, eval *Evaluator, history *History, problem Problem) *OptimizationResult {
	return &OptimizationResult{
		Algorithm: out.Algorithm,
		BestSolution: &Solution{
			Parameters: append([]float64(nil), out.X...),
			Value:      out.Value,
		},
		History:          history.Entries(),
		Evaluations:      eval.Evaluations(),
		EvaluationErrors: eval.Failures(),
		SuccessfulSteps:  out.SuccessfulSteps,
		Success:          out.Success,
		Status:           out.Status,
		Message:          out.Message,
		Bounds:           problem.Bounds,
		Constraints:      problem.Constraints,
	}
}
