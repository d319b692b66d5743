package harp

// Sender is a cheaply-cloneable handle producers use to enqueue Actions for
// the client agent. It wraps the unbounded outbound channel; copying a
// Sender is copying a channel reference, so any number of producer
// goroutines may hold one concurrently.
//
// Sender is must-use: constructing one and never calling Send means the
// Action you built with it never leaves the process. Go has no
// compiler-enforced must-use annotation, so this is documentation only —
// treat a discarded Sender the same as a discarded error return.
type Sender struct {
	ch chan<- Action
}

// Send enqueues an Action for delivery. It never blocks: the underlying
// channel is unbounded, so Send always succeeds as long as the agent
// goroutine that drains it is still running.
func (s Sender) Send(a Action) {
	s.ch <- a
}
