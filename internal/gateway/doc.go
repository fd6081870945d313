// Package gateway owns the UDP socket to the RS485-to-UDP bridge.
//
// Commands flow out as prefix + sealed frame; the prefix is whatever
// the captures carried, typically the gateway's own IP followed by a
// vendor magic string. Inbound traffic is everything the gateway
// relays from the bus: the listen loop decodes the status broadcast
// shapes and silently drops the rest, routing decoded records to the
// per-unit reconcilers registered with the gateway.
//
// A single Gateway serves all units behind one bridge. Sends and the
// listen loop share the socket and are safe to use concurrently.
package gateway
