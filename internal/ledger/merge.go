package ledger

import (
	"time"

	"tableside/internal/domain"
)

// merge applies a shallow merge of in onto cur: every non-zero incoming field wins,
// zero-valued fields keep the current value. A field cannot be cleared this way.
// Priority is always derived and never taken from the payload.
func merge(cur, in domain.Order, now time.Time) domain.Order {
	in = in.Clone()
	out := cur
	if in.Table != "" {
		out.Table = in.Table
	}
	if in.Items != nil {
		out.Items = in.Items
	}
	if in.Note != "" {
		out.Note = in.Note
	}
	if in.Total != nil {
		out.Total = in.Total
	}
	if !in.CreatedAt.IsZero() {
		out.CreatedAt = in.CreatedAt
	}
	if !in.UpdatedAt.IsZero() {
		out.UpdatedAt = in.UpdatedAt
	}
	if in.StatusTimes != nil {
		out.StatusTimes = in.StatusTimes
	}
	if st := in.Status.Normalize(); st != "" && st != cur.Status {
		out.Status = st
		if _, ok := out.StatusTimes[st]; !ok {
			times := make(map[domain.Status]time.Time, len(out.StatusTimes)+1)
			for k, v := range out.StatusTimes {
				times[k] = v
			}
			times[st] = now
			out.StatusTimes = times
		}
	}
	out.Priority = nil
	return out
}

// normalizeNew defaults the fields of an order the ledger has not seen before.
func normalizeNew(o domain.Order) domain.Order {
	o = o.Clone()
	o.Status = o.Status.Normalize()
	if o.Status == "" {
		o.Status = domain.StatusPlaced
	}
	o.Priority = nil
	return o
}
