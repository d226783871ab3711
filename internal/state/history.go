package state

import "time"

// PointWriter accepts one state sample for a time-series backend.
// The InfluxDB client satisfies it.
type PointWriter interface {
	WriteState(entityID, value string, ts time.Time)
}

// HistorySink is a Listener that exports every change to a PointWriter.
type HistorySink struct {
	w PointWriter
}

// NewHistorySink creates a history exporter writing to w.
func NewHistorySink(w PointWriter) *HistorySink {
	return &HistorySink{w: w}
}

// StateChanged forwards the change as one sample.
func (h *HistorySink) StateChanged(c Change) {
	h.w.WriteState(c.EntityID, c.Value, c.Time)
}
