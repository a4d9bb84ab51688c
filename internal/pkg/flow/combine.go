package flow

import "context"

// Just returns a channel emitting v once and closing.
func Just[T any](v T) <-chan T {
	ch := make(chan T, 1)
	ch <- v
	close(ch)
	return ch
}

// Map applies fn to every value of in. The output closes when in closes or ctx is done.
func Map[T, R any](ctx context.Context, in <-chan T, fn func(T) R) <-chan R {
	out := make(chan R)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- fn(v):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// CombineLatest3 joins three channels. Nothing is emitted until every input has
// produced a value; after that every value from any input re-runs fn with the
// latest value of the other two. A closed input keeps its last value. The output
// closes once all inputs are closed or ctx is done.
func CombineLatest3[A, B, C, R any](
	ctx context.Context,
	a <-chan A,
	b <-chan B,
	c <-chan C,
	fn func(A, B, C) R,
) <-chan R {
	out := make(chan R)
	go func() {
		defer close(out)

		var (
			lastA               A
			lastB               B
			lastC               C
			hasA, hasB, hasC    bool
			doneA, doneB, doneC bool
		)
		for !(doneA && doneB && doneC) {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-a:
				if !ok {
					doneA, a = true, nil
					continue
				}
				lastA, hasA = v, true
			case v, ok := <-b:
				if !ok {
					doneB, b = true, nil
					continue
				}
				lastB, hasB = v, true
			case v, ok := <-c:
				if !ok {
					doneC, c = true, nil
					continue
				}
				lastC, hasC = v, true
			}

			if !(hasA && hasB && hasC) {
				// an input that completed without a value can never satisfy the join
				if (doneA && !hasA) || (doneB && !hasB) || (doneC && !hasC) {
					return
				}
				continue
			}
			select {
			case out <- fn(lastA, lastB, lastC):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
