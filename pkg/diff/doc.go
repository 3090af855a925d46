// Package diff computes the edit script that transforms one list snapshot
// into another.
//
// Diff matches sections and rows by identity (provider and stable key) and
// detects content changes by value equality. The result is a Script: a single
// atomic batch of section-level and row-level operations suitable for host
// widgets whose batch update call requires mutually consistent indices.
//
// # Index Convention
//
// Every Op carries two index paths. From is always measured against the
// structure before the batch and To against the structure after it:
//
//	DeleteSection, DeleteRow    From
//	InsertSection, InsertRow    To
//	MoveSection, MoveRow        From -> To
//	ReloadSection, ReloadRow    From (current view) and To (final position)
//	ReloadPart                  From and To (header/footer reconfigured in place)
//
// Section-level operations set Row to NoRow.
//
// # Moves
//
// Surviving items whose relative order is preserved do not move. Diff keeps the
// longest increasing run of old positions in place and emits one move for every
// other survivor, so inserting at the front of a list produces one insert and
// no moves.
//
// # Apply
//
// Apply replays a script on the old snapshot. It is the reference semantics of
// a script and is used by in-memory widgets and tests:
//
//	script, _ := diff.Diff(old, next)
//	got, _ := diff.Apply(old, script)
//	// got has exactly next's ordered section and row identities
package diff
