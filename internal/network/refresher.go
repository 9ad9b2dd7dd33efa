package network

import (
	"context"
	"weak"
)

// Refresher renews the access token in the credential store. It reports
// whether a usable token is now stored.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) bool

func (f RefresherFunc) Refresh(ctx context.Context) bool { return f(ctx) }

// RefresherRef resolves the refresher at call time. A nil result means no
// refresher is attached.
type RefresherRef func() Refresher

// Strong returns a reference that keeps r alive.
func Strong(r Refresher) RefresherRef {
	return func() Refresher { return r }
}

// Weak returns a reference that does not keep p alive. Once p has been
// collected the reference resolves to nil and 401s surface as UnAuthorized.
func Weak[T any, P interface {
	*T
	Refresher
}](p P) RefresherRef {
	wp := weak.Make((*T)(p))
	return func() Refresher {
		v := wp.Value()
		if v == nil {
			return nil
		}
		return P(v)
	}
}
