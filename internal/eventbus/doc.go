// Package eventbus provides an in-process publish/subscribe bus with
// non-blocking fan-out.
package eventbus
