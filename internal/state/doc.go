// Package state holds the entity state store scripts read and write.
//
// Entities are addressed as "domain.entity". A three-part name,
// "domain.entity.attr", reads one attribute of the entity. Values are kept
// in string form; attributes keep their native value.
//
// Every change is delivered to the registered Listeners in order. The
// Notifier is the listener that feeds trigger queues; persistence, history
// export and the MQTT bridge are listeners too.
//
// Thread Safety:
//   - Store and Notifier are safe for concurrent use.
//   - Listeners are called synchronously after the store lock is released
//     and must not block.
package state
