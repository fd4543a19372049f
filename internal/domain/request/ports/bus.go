// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports declares the interfaces the request domain depends on but
// does not implement, so the domain package never imports a concrete
// transport.
package ports

import "context"

// Bus is the live-update fan-out the domain publishes mutations onto (§4I).
// The concrete implementation lives in internal/bus.
type Bus interface {
	Publish(ctx context.Context, topic string, event interface{}) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is one subscriber's view of a Bus topic.
type Subscription interface {
	C() <-chan interface{}
	Close() error
}
