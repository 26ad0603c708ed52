package effect

import (
	"github.com/on-the-ground/flux_ive_go/stream"
)

// Map transforms every action. Token and order are kept.
func Map[D, A, B any](e Effect[D, A], fn func(A) B) Effect[D, B] {
	if e.run == nil {
		return DoNothing[D, B]()
	}
	return Effect[D, B]{
		token: e.token,
		run: func(ec Context[D]) stream.Publisher[DispatchedAction[B]] {
			return stream.Map(e.run(ec), func(da DispatchedAction[A]) DispatchedAction[B] {
				return Dispatched(fn(da.Action), da.Dispatcher)
			})
		},
	}
}

// Merge runs all effects together. Each keeps its own order. The result has
// no token; DoNothing inputs are skipped.
func Merge[D, A any](es ...Effect[D, A]) Effect[D, A] {
	running := make([]Effect[D, A], 0, len(es))
	for _, e := range es {
		if !e.IsDoNothing() {
			running = append(running, e)
		}
	}
	if len(running) == 0 {
		return DoNothing[D, A]()
	}
	return New(func(ec Context[D]) stream.Publisher[DispatchedAction[A]] {
		ps := make([]stream.Publisher[DispatchedAction[A]], len(running))
		for i, e := range running {
			ps[i] = e.run(ec)
		}
		return stream.Merge(ps...)
	})
}

// Append runs o after e completes. The result keeps e's token, unless e is
// DoNothing: then o is returned as is, token included.
func (e Effect[D, A]) Append(o Effect[D, A]) Effect[D, A] {
	if e.IsDoNothing() {
		return o
	}
	return concat(e, o, e.token)
}

// Prepend runs o before e. The result keeps e's token, unless e is
// DoNothing: then o is returned as is, token included.
func (e Effect[D, A]) Prepend(o Effect[D, A]) Effect[D, A] {
	if e.IsDoNothing() {
		return o
	}
	return concat(o, e, e.token)
}

func concat[D, A any](first, second Effect[D, A], token Token) Effect[D, A] {
	switch {
	case first.IsDoNothing():
		second.token = token
		return second
	case second.IsDoNothing():
		first.token = token
		return first
	}
	return Effect[D, A]{
		token: token,
		run: func(ec Context[D]) stream.Publisher[DispatchedAction[A]] {
			return stream.Concat(first.run(ec), second.run(ec))
		},
	}
}

// IgnoringDependencies adapts an effect that needs no dependencies to any D.
func IgnoringDependencies[D, A any](e Effect[struct{}, A]) Effect[D, A] {
	return MapDependencies(e, func(D) struct{} { return struct{}{} })
}

// MapDependencies adapts e to a context providing D by projecting D to E.
func MapDependencies[D, E, A any](e Effect[E, A], fn func(D) E) Effect[D, A] {
	if e.run == nil {
		return DoNothing[D, A]()
	}
	return Effect[D, A]{
		token: e.token,
		run: func(ec Context[D]) stream.Publisher[DispatchedAction[A]] {
			return e.run(Context[E]{
				Dependencies:  fn(ec.Dependencies),
				Cancellations: ec.Cancellations,
			})
		},
	}
}
