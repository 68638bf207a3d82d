package lsq

// Default solver settings.
const (
	defaultMaxIterations     = 200
	defaultGradientTolerance = 1e-8
	defaultStepTolerance     = 1e-8
	defaultCostTolerance     = 1e-8
	defaultInitialDamping    = 1e-3
	defaultMinDamping        = 1e-15
	defaultMaxDamping        = 1e16
	dampingFactor            = 10
	minDiagonal              = 1e-12
)

// Settings bounds and tunes a Minimize run. Zero fields take defaults.
type Settings struct {
	// MaxIterations caps outer (Jacobian) iterations.
	MaxIterations int
	// GradientTolerance stops when every column of J is within this cosine
	// of orthogonal to r, i.e. max_j |J_jᵀr| / (||J_j||·||r||) <= it.
	GradientTolerance float64
	// StepTolerance stops when ||δ|| <= StepTolerance * (||p|| + StepTolerance).
	StepTolerance float64
	// CostTolerance stops when both the actual and the linearised cost
	// reduction of an accepted step are at most this fraction of the cost.
	CostTolerance float64
	// InitialDamping is λ at the first iteration.
	InitialDamping float64
	// MinDamping is the floor λ decays to after successful steps.
	MinDamping float64
	// MaxDamping is the ceiling past which no descent step is assumed to exist.
	MaxDamping float64
}

// DefaultSettings returns the settings used when a field is left zero.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:     defaultMaxIterations,
		GradientTolerance: defaultGradientTolerance,
		StepTolerance:     defaultStepTolerance,
		CostTolerance:     defaultCostTolerance,
		InitialDamping:    defaultInitialDamping,
		MinDamping:        defaultMinDamping,
		MaxDamping:        defaultMaxDamping,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.GradientTolerance <= 0 {
		s.GradientTolerance = d.GradientTolerance
	}
	if s.StepTolerance <= 0 {
		s.StepTolerance = d.StepTolerance
	}
	if s.CostTolerance <= 0 {
		s.CostTolerance = d.CostTolerance
	}
	if s.InitialDamping <= 0 {
		s.InitialDamping = d.InitialDamping
	}
	if s.MinDamping <= 0 {
		s.MinDamping = d.MinDamping
	}
	if s.MaxDamping <= 0 {
		s.MaxDamping = d.MaxDamping
	}
	return s
}
