/*
Package ical implements the calendar value model and the RFC 5545 text
codec used by the sync core.

Parsing is lossless: properties the decoder does not model explicitly
(vendor X- extensions included) are collected verbatim into each event's
RawProperties map and re-emitted unchanged by the generator, so a
parse/generate round trip never drops server data.

# Parsing

	res := ical.ParseAllEvents(rawText)
	events, err := res.Get()

A blob may legally contain one master VEVENT plus several override VEVENTs
sharing a UID; ParseAllEvents returns them as a flat list and the
recurrence package groups them.

# Generating

	text := ical.Generate(event, ical.GenerateOptions{})

Output lines are folded to 75 UTF-8 octets, text values escaped, and one
synthesized VTIMEZONE emitted per referenced IANA timezone identifier.

# Configuration

Process-wide parser behavior (timezone resolution, relaxed parsing) is
installed at most once via Configure before the first parse; later calls
have no effect.
*/
package ical
