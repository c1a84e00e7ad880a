// Package record implements the session record codec.
//
// A session record is a single markdown document that is simultaneously
// machine state and a human-annotatable document. A full
// parse -> mutate -> serialize cycle would risk destroying the free-form
// Notes region, so all automated edits are scoped, in-place, pattern-based
// replacements:
//
//   - ReadField / WriteField touch exactly one value on one line
//   - AppendHistory inserts one table row in front of the Notes sentinel
//   - nothing at or beyond the "## Notes" heading is ever modified
//
// A write whose key pattern is absent is a no-op and reports replaced=false;
// callers must treat a missing expected field as record corruption and abort
// the phase rather than retry.
package record
