package pricing

import "github.com/shopspring/decimal"

// TuneWeight nudges a platform's weight multiplicatively toward its realized
// ROI relative to the target and installs the updated table. Returns the new
// weight; a disabled optimizer leaves the table untouched.
func (e *Engine) TuneWeight(platform string, realizedROI decimal.Decimal) decimal.Decimal {
	current := e.PlatformWeight(platform)
	if !e.optEnabled {
		return current
	}

	// w' = w * (1 + lr * (roi/target - 1)), bounded.
	drift := realizedROI.Div(e.targetROI).Sub(decOne)
	next := current.Mul(decOne.Add(e.learningRate.Mul(drift)))
	if next.LessThan(e.minWeight) {
		next = e.minWeight
	}
	if next.GreaterThan(e.maxWeight) {
		next = e.maxWeight
	}
	next = next.Round(3)

	state := e.state.Load().clone()
	state.weights[platform] = next
	e.state.Store(state)

	e.logger.Debug().
		Str("platform", platform).
		Str("realized_roi", realizedROI.String()).
		Str("weight", next.String()).
		Msg("platform weight tuned")

	return next
}
