package policy

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/bluum-finance/autoinvest/internal/domain"
)

const (
	// SumTolerance is the absolute tolerance on the 100% target-allocation
	// sum rule.
	SumTolerance = 0.01

	// DefaultMaxDriftPct is the per-bucket drift tolerance applied when a
	// policy states no constraint of its own.
	DefaultMaxDriftPct = 5.0
)

// ValidateTargetAllocation checks that the four bucket percentages are each
// within [0,100] and sum to 100 within SumTolerance. Pure; enforced
// identically at policy write time and at ad-hoc validation time.
func ValidateTargetAllocation(a TargetAllocation) error {
	buckets := Buckets()
	for i, v := range a.Values() {
		if v < 0 || v > 100 {
			return &domain.ValidationError{
				Field:  "target_allocation." + buckets[i],
				Reason: "target_percent must be between 0 and 100",
			}
		}
	}

	sum := floats.Sum(a.Values())
	if math.Abs(sum-100) > SumTolerance {
		return &domain.AllocationError{Sum: sum, Tolerance: SumTolerance}
	}
	return nil
}

// ValidatePortfolioAgainstPolicy computes per-bucket deviation of a
// portfolio's actual allocation from the policy's targets, flagging buckets
// whose absolute deviation exceeds the policy's drift constraint. Neither
// input is mutated.
func ValidatePortfolioAgainstPolicy(actual TargetAllocation, stmt Statement) ConformanceResult {
	maxDrift := DefaultMaxDriftPct
	if stmt.Constraints.MaxDriftPct != nil {
		maxDrift = *stmt.Constraints.MaxDriftPct
	}

	targets := stmt.Target.Values()
	actuals := actual.Values()
	buckets := Buckets()

	result := ConformanceResult{
		Pass:        true,
		MaxDriftPct: maxDrift,
		Deviations:  make([]BucketDeviation, 0, len(buckets)),
	}

	for i, bucket := range buckets {
		deviation := actuals[i] - targets[i]
		breached := math.Abs(deviation) > maxDrift
		if breached {
			result.Pass = false
		}
		result.Deviations = append(result.Deviations, BucketDeviation{
			Bucket:    bucket,
			TargetPct: targets[i],
			ActualPct: actuals[i],
			Deviation: deviation,
			Breached:  breached,
		})
	}

	return result
}
