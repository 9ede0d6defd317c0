package znet

import "time"

// options configures an EventLoop. Construct with NewEventLoop and zero
// or more Option values; the zero value is a usable default.
type options struct {
	onConnect   OnConnect
	readTimeout time.Duration
	numLoops    int
}

// Option configures an EventLoop at construction time.
type Option func(*options)

// WithOnConnect registers a callback run once per accepted connection,
// before the event handler's own OnConnect.
func WithOnConnect(fn OnConnect) Option {
	return func(o *options) { o.onConnect = fn }
}

// WithReadTimeout sets the default read timeout applied to new
// connections; zero (the default) means no timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithNumLoops overrides the number of poller loops the event loop's
// pollerManager runs. Zero (the default) keeps whatever Init or the
// package default already configured.
func WithNumLoops(n int) Option {
	return func(o *options) { o.numLoops = n }
}
