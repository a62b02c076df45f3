// Package dispatch orchestrates campaign sends.
//
// The Dispatcher resolves a campaign's recipient set, fans it out over a
// bounded pool of sender goroutines, and folds per-recipient outcomes into a
// single tally. One recipient's failure never aborts the batch; the terminal
// campaign transition happens only after every recipient has been accounted
// for. The Queue runs sends in the background off a Redis list so the send
// endpoint can return immediately, and the Scheduler promotes due scheduled
// campaigns onto that queue.
package dispatch
