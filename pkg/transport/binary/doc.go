// Package binary serves the persistent-connection protocol.
//
// Each connection carries a stream of frames in both directions. The
// client sends one command per frame, with its credentials in the frame
// auth block, and the server answers every frame with exactly one
// response frame in the order the commands arrived. Failures are answered
// with an error response; the connection stays open unless the frame
// itself could not be decoded, in which case the error frame is the last
// one written before the server closes the connection.
//
// Closing the connection cancels the context of the command in flight.
package binary
