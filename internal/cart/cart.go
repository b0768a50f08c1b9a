// Package cart aggregates line items for a browsing session.
package cart

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrIndexOutOfRange is returned when a mutation references a missing line.
var ErrIndexOutOfRange = errors.New("cart: index out of range")

// ErrInvalidLine is returned when a line would violate quantity or price invariants.
var ErrInvalidLine = errors.New("cart: invalid line item")

// ErrCartLimit is returned when a mutation would push the subtotal past MaxSubtotal.
var ErrCartLimit = fmt.Errorf("%w: subtotal would exceed %d", ErrInvalidLine, MaxSubtotal)

// Cart is an ordered, immutable collection of line items. Every mutation
// returns a new Cart and leaves the receiver untouched.
type Cart struct {
	lines []LineItem
}

// New builds a cart from lines, dropping any that violate invariants and
// merging duplicates in first-seen order.
func New(lines ...LineItem) Cart {
	var c Cart
	for _, l := range lines {
		if next, err := c.AddLine(l); err == nil {
			c = next
		}
	}
	return c
}

// Lines returns a copy of the ordered lines.
func (c Cart) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of distinct lines.
func (c Cart) Len() int { return len(c.lines) }

// Line returns the line at index.
func (c Cart) Line(index int) (LineItem, bool) {
	if index < 0 || index >= len(c.lines) {
		return LineItem{}, false
	}
	return c.lines[index], true
}

// AddLine merges item into an existing line with the same identity, keeping
// its position, or appends it.
func (c Cart) AddLine(item LineItem) (Cart, error) {
	if !item.valid() {
		return c, fmt.Errorf("%w: quantity %d, unit price %d", ErrInvalidLine, item.Quantity, item.UnitPrice)
	}
	lines := c.Lines()
	for i := range lines {
		if !lines[i].SameLine(item) {
			continue
		}
		merged := lines[i]
		merged.Quantity += item.Quantity
		if !merged.valid() {
			return c, fmt.Errorf("%w: merged quantity %d", ErrInvalidLine, merged.Quantity)
		}
		lines[i] = merged
		return c.replaced(lines)
	}
	return c.replaced(append(lines, item))
}

// replaced returns a cart holding lines unless their subtotal exceeds MaxSubtotal.
func (c Cart) replaced(lines []LineItem) (Cart, error) {
	next := Cart{lines: lines}
	if next.Subtotal() > MaxSubtotal {
		return c, ErrCartLimit
	}
	return next, nil
}

// SetQuantity replaces the quantity at index, deleting the line when qty <= 0.
func (c Cart) SetQuantity(index, qty int) (Cart, error) {
	if index < 0 || index >= len(c.lines) {
		return c, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if qty <= 0 {
		next, _, err := c.RemoveLine(index)
		return next, err
	}
	lines := c.Lines()
	lines[index].Quantity = qty
	if !lines[index].valid() {
		return c, fmt.Errorf("%w: quantity %d", ErrInvalidLine, qty)
	}
	return c.replaced(lines)
}

// RemoveLine deletes the line at index and returns it.
func (c Cart) RemoveLine(index int) (Cart, LineItem, error) {
	if index < 0 || index >= len(c.lines) {
		return c, LineItem{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	removed := c.lines[index]
	lines := make([]LineItem, 0, len(c.lines)-1)
	lines = append(lines, c.lines[:index]...)
	lines = append(lines, c.lines[index+1:]...)
	return Cart{lines: lines}, removed, nil
}

// Clear returns an empty cart.
func (c Cart) Clear() Cart { return Cart{} }

// Subtotal sums unit price × quantity across all lines.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Total()
	}
	return total
}

// ItemCount sums quantities across all lines.
func (c Cart) ItemCount() int {
	var n int
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool { return len(c.lines) == 0 }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
