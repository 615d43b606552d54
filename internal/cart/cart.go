// Package cart holds the lines of one order being composed and prices them.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tableside/internal/domain"
)

// ErrLineIndex is returned when a line position does not exist.
var ErrLineIndex = errors.New("line index out of range")

// Cart is a single-writer container of cart lines. Every mutation installs a new
// slice, so a slice obtained from Lines is never modified afterwards.
type Cart struct {
	lines []domain.CartLine
}

func New() *Cart {
	return &Cart{}
}

// Lines returns a copy of the current lines. Later mutations never show through it.
func (c *Cart) Lines() []domain.CartLine {
	if c.lines == nil {
		return nil
	}
	out := make([]domain.CartLine, len(c.lines))
	for i, l := range c.lines {
		l.Selections = l.Selections.Clone()
		out[i] = l
	}
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// AddLine merges into an identical line or appends a new one. A merged line takes
// item as its menu record, so it is priced from the latest copy.
func (c *Cart) AddLine(item *domain.MenuItem, quantity int, sel domain.Selections) {
	line := domain.CartLine{Item: item, Quantity: clampQuantity(quantity), Selections: sel.Clone()}
	next := make([]domain.CartLine, 0, len(c.lines)+1)
	merged := false
	for _, l := range c.lines {
		if !merged && l.SameAs(line) {
			l.Quantity += line.Quantity
			l.Item = item
			merged = true
		}
		next = append(next, l)
	}
	if !merged {
		next = append(next, line)
	}
	c.lines = next
}

// SetLines replaces the full line set, normalizing quantities and merging duplicates.
func (c *Cart) SetLines(lines []domain.CartLine) {
	next := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		l.Quantity = clampQuantity(l.Quantity)
		l.Selections = l.Selections.Clone()
		next = append(next, l)
	}
	c.lines = mergeLines(next)
}

// RemoveLine drops every line for itemID, whatever its modifier selection.
func (c *Cart) RemoveLine(itemID string) {
	next := make([]domain.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		if l.ItemID() != itemID {
			next = append(next, l)
		}
	}
	c.lines = next
}

// SetQuantity sets the quantity of every line for itemID.
func (c *Cart) SetQuantity(itemID string, quantity int) {
	quantity = clampQuantity(quantity)
	next := make([]domain.CartLine, len(c.lines))
	for i, l := range c.lines {
		if l.ItemID() == itemID {
			l.Quantity = quantity
		}
		next[i] = l
	}
	c.lines = next
}

// UpdateLineModifiers replaces the selection of the line at index, then merges any
// lines that became identical.
func (c *Cart) UpdateLineModifiers(index int, sel domain.Selections) error {
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("%w: %d of %d", ErrLineIndex, index, len(c.lines))
	}
	next := make([]domain.CartLine, len(c.lines))
	copy(next, c.lines)
	next[index].Selections = sel.Clone()
	c.lines = mergeLines(next)
	return nil
}

// Resolver returns the current menu record for an item id, or nil when the menu no
// longer has it.
type Resolver func(itemID string) (*domain.MenuItem, error)

// Reprice replaces every line's menu record with the one resolve returns. Lines whose
// item has left the menu keep their id and name but price at zero. On a resolver error
// the cart is left untouched.
func (c *Cart) Reprice(resolve Resolver) error {
	next := make([]domain.CartLine, len(c.lines))
	copy(next, c.lines)
	for i, l := range next {
		id := l.ItemID()
		if id == "" {
			continue
		}
		item, err := resolve(id)
		if err != nil {
			return err
		}
		if item == nil {
			item = &domain.MenuItem{ID: id, Name: l.Item.Name}
		}
		next[i].Item = item
	}
	c.lines = mergeLines(next)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Total sums every line total. It has no side effects.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(LineTotal(l))
	}
	return total
}

// Submission returns the finalized line list for the order submission collaborator.
func (c *Cart) Submission() []domain.LineRequest {
	out := make([]domain.LineRequest, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, domain.LineRequest{
			ItemID:     l.ItemID(),
			Quantity:   l.Quantity,
			Selections: l.Selections.Clone(),
		})
	}
	return out
}

// UnitPrice is the base price plus every resolvable option delta. A missing item or
// an unknown option contributes zero.
func UnitPrice(l domain.CartLine) decimal.Decimal {
	if l.Item == nil {
		return decimal.Zero
	}
	price := l.Item.Price
	for group, option := range l.Selections {
		if delta, ok := l.Item.OptionDelta(group, option); ok {
			price = price.Add(delta)
		}
	}
	return price
}

func LineTotal(l domain.CartLine) decimal.Decimal {
	return UnitPrice(l).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// mergeLines folds identical lines into the first occurrence, summing quantities.
func mergeLines(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		merged := false
		for i := range out {
			if out[i].SameAs(l) {
				out[i].Quantity += l.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, l)
		}
	}
	return out
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
