package middleware

import "github.com/aretw0/rollkit/pkg/ports"

// Middleware allows wrapping a RollStore to add behavior.
type Middleware func(ports.RollStore) ports.RollStore

// Chain applies middlewares so the first one listed is the outermost.
func Chain(store ports.RollStore, mws ...Middleware) ports.RollStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
