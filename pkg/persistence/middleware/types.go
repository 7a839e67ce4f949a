package middleware

import "github.com/aretw0/arbor/pkg/ports"

// Middleware allows wrapping an AnchorStore to add behavior.
type Middleware func(ports.AnchorStore) ports.AnchorStore

// Chain applies middlewares so that the first one listed is the outermost.
func Chain(store ports.AnchorStore, mws ...Middleware) ports.AnchorStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
