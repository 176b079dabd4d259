package poll

import "github.com/nichlasrohde/ha-ecl-modbus/internal/catalog"

// MaxReadSpan is the Modbus limit for one FC 3 request.
const MaxReadSpan = 125

// Batch is one contiguous read covering one or more registers.
type Batch struct {
	Start    uint16 // manual address of the first register
	Quantity uint16
	Members  []catalog.Definition
}

// Plan greedily merges registers into contiguous batches. The input
// must be sorted by ascending address (catalog.Enabled guarantees it).
//
// A register joins the current batch when the gap between the batch end
// and its start is at most slack registers and the merged quantity stays
// within maxSpan. Slack 0 batches only strictly adjacent spans; gaps are
// fetched and discarded, so slack stays small.
func Plan(defs []catalog.Definition, maxSpan, slack uint16) []Batch {
	if maxSpan == 0 || maxSpan > MaxReadSpan {
		maxSpan = MaxReadSpan
	}

	var batches []Batch
	for _, d := range defs {
		span := uint32(d.Span())
		addr := uint32(d.Address)

		if n := len(batches); n > 0 {
			b := &batches[n-1]
			end := uint32(b.Start) + uint32(b.Quantity)
			if addr >= end && addr-end <= uint32(slack) && addr+span-uint32(b.Start) <= uint32(maxSpan) {
				b.Quantity = uint16(addr + span - uint32(b.Start))
				b.Members = append(b.Members, d)
				continue
			}
		}

		batches = append(batches, Batch{
			Start:    d.Address,
			Quantity: uint16(span),
			Members:  []catalog.Definition{d},
		})
	}
	return batches
}
