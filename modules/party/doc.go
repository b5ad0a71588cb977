// Package party provides the ephemeral party session module. Each chat holds
// at most one live session, driven by /party, /join, /leave, /add, /kick,
// /members, /games and /stop commands; a session handles its commands
// serially, times out when idle, and ends exactly once whether stopped,
// timed out, or cancelled at shutdown.
package party
