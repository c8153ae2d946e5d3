package controller

import "golang.org/x/exp/constraints"

// countdown is a tick counter that stops at zero.
type countdown[T constraints.Unsigned] struct {
	n T
}

func (c *countdown[T]) set(v T) { c.n = v }

func (c *countdown[T]) value() T { return c.n }

func (c *countdown[T]) active() bool { return c.n != 0 }

// step decrements a running countdown and reports whether it just expired.
func (c *countdown[T]) step() bool {
	if c.n == 0 {
		return false
	}
	c.n--
	return c.n == 0
}
