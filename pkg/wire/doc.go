/*
Package wire defines the framed-transport contract the master assumes but
does not design: a connection that delivers command+payload pairs in order,
plus a dispatch table that routes an inbound frame to a handler. Transport-
level framing is explicitly out of scope for the sync protocol itself (the
master "assumes a pre-existing framed message channel"); this package gives
that assumption a concrete, swappable shape — a length-prefixed codec over
net.Conn, grounded in the length-prefixed field pattern common across the
example corpus — rather than inventing protocol semantics the spec doesn't
define.
*/
package wire
