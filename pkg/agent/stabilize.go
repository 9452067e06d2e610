package agent

import (
	"context"
	"time"
)

// Stabilize drives the lazy-load detection loop: scroll to the bottom of the
// document, wait for new content to render, and re-measure the scrollable
// height. The loop continues as long as the height keeps growing and stops as
// soon as two consecutive measurements are equal. maxIterations is a hard
// safety bound for pages that grow indefinitely. Returns the number of
// scroll-and-wait cycles performed.
func Stabilize(
	ctx context.Context,
	scroll func(context.Context) error,
	height func(context.Context) (float64, error),
	delay time.Duration,
	maxIterations int,
) (int, error) {
	previous, err := height(ctx)
	if err != nil {
		return 0, err
	}

	iterations := 0
	for iterations < maxIterations {
		if err := scroll(ctx); err != nil {
			return iterations, err
		}

		select {
		case <-ctx.Done():
			return iterations, ctx.Err()
		case <-time.After(delay):
		}

		current, err := height(ctx)
		if err != nil {
			return iterations, err
		}
		iterations++

		if current <= previous {
			break
		}
		previous = current
	}

	return iterations, nil
}
