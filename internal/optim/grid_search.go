package optim

import (
	"context"
	"math"
)

// gridSearch scans initial ± k·step for k in [-points, points] on every
// parameter axis and keeps the cheapest point.
func gridSearch[T any](ctx context.Context, obj *objective[T], points int) (string, error) {
	if points < 0 {
		points = 0
	}
	axes := make([][]float64, len(obj.params))
	for i, p := range obj.params {
		for k := -points; k <= points; k++ {
			axes[i] = append(axes[i], p.clamp(p.Initial+float64(k)*p.Step))
		}
	}

	current := make([]float64, len(axes))
	if err := searchRecursive(ctx, 0, current, axes, obj); err != nil {
		return "Failure", err
	}
	return "GridExhausted", nil
}

func searchRecursive[T any](ctx context.Context, depth int, current []float64, axes [][]float64, obj *objective[T]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(axes) {
		if cost := obj.eval(current); math.IsInf(cost, 1) {
			if _, err := obj.status(); err != nil {
				return err
			}
		}
		return nil
	}

	for _, val := range axes[depth] {
		current[depth] = val
		if err := searchRecursive(ctx, depth+1, current, axes, obj); err != nil {
			return err
		}
	}
	return nil
}
