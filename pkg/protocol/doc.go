// Package protocol implements the binary wire protocol between a list
// server and a thin remote widget.
//
// The server streams edit-script batches; the client streams user events
// back. Node values are carried as JSON so any client can render them.
//
// # Wire Format
//
// Every message is one frame:
//
//	┌─────────────┬───────────────────────┬─────────────────────┐
//	│ Frame Type  │ Payload Length        │ Payload             │
//	│ (1 byte)    │ (uvarint)             │ (variable)          │
//	└─────────────┴───────────────────────┴─────────────────────┘
//
// # Frame Types
//
//   - FrameBatch (0x01): Server → Client edit script
//   - FrameEvent (0x02): Client → Server widget event
//   - FrameResync (0x03): Client → Server request to replay after a sequence
//   - FrameError (0x04): Error message, either direction
//
// # Encoding
//
//   - Varint: Compact encoding for counts and sequence numbers
//   - ZigZag: Index paths, whose row is -1 for section-level operations
//   - Length-prefixed: Strings and JSON values
//
// # Batches
//
//	[Seq: uvarint][Generation: uvarint][Reset: bool]
//	[Insert, Reload, Delete animation: 3 bytes]
//	[Op count: uvarint] { [Kind: 1][From: 2 svarint][To: 2 svarint][Part: 1]
//	                      [Node?][Section?] }
package protocol
