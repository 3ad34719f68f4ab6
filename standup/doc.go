// Package standup contains the standup session state machine.
//
// A Session connects through a Transport, joins the configured channel and
// waits for the first name list. From that list it works out which of the
// configured users are present, pings them in the channel, whispers the
// absent ones and then observes channel traffic until the one-shot timer
// armed on welcome fires. At that point it thanks whoever spoke up and quits.
//
// All state is owned by the goroutine running Session.Run. Transport events
// and the timer are multiplexed in a single select loop, so handlers never
// race with the termination routine and no locks are needed for session
// state. The only shared structure is Status, which the loop publishes
// snapshots into for the HTTP status endpoint.
package standup
