// Package cwkeyer generates International Morse Code keying output from
// paddle or text input: an audible local sidetone with click-free,
// sample-accurate timing, plus a radio keying signal.
//
// The core is two coupled state machines.  The Engine synthesizes audio on
// demand from a pull-based callback and tracks tone/silence timing in sample
// counts.  The Keyer subscribes to Engine transition events, holds paddle
// state and latches, and implements the iambic Mode A / Mode B decision
// rules.  Everything else in the package (audio backends, paddle input
// sources, key outputs, the message sender) hangs off those two.
package cwkeyer
