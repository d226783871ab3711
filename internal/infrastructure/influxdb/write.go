package influxdb

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// StateMeasurement is the measurement that state history is written to.
const StateMeasurement = "state"

// WriteState records one entity state change.
//
// Numeric values go to the float field "value", anything else to the
// string field "text", so sensors chart and text states still have a
// history. The write is non-blocking.
func (c *Client) WriteState(entityID, value string, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statePoint(entityID, value, ts))
}

func statePoint(entityID, value string, ts time.Time) *write.Point {
	p := write.NewPointWithMeasurement(StateMeasurement).
		AddTag("entity_id", entityID).
		SetTime(ts)
	if f, ok := numeric(value); ok {
		return p.AddField("value", f)
	}
	return p.AddField("text", value)
}

func numeric(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
