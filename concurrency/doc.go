// Package concurrency implements a generic, watermark-driven worker
// pool: a small number of goroutines are kept warm at all times, more
// are spun up under load up to a ceiling, and idle goroutines beyond
// the low watermark retire themselves after a timeout. It is not tied
// to any particular kind of task — Submit takes an arbitrary closure.
package concurrency
