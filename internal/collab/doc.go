// Package collab is the room synchronization engine behind the whiteboard.
//
// Connections are registered as sessions, join rooms, and send typed JSON
// frames. A single Hub goroutine feeds every frame and close notification to
// the Dispatcher in arrival order, which updates presence, relays shape and
// chat traffic to the other members of the room, and queues state changes
// on the event log. Continuous drag updates are broadcast live but written
// once per shape after the drag goes quiet.
package collab
