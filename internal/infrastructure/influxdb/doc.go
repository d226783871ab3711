// Package influxdb exports entity state history to InfluxDB v2.
//
// Each state change becomes one point in the "state" measurement tagged
// with entity_id. Numeric states are written to the float field "value",
// everything else to the string field "text".
//
//	client, err := influxdb.Connect(cfg.InfluxDB, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	store.AddListener(state.NewHistorySink(client))
//
// Writes are batched and never block the caller. Failed batches are
// logged and counted (Dropped).
package influxdb
