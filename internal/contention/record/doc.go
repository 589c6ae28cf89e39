// Package record builds the positional text records emitted for monitor
// contention events.
//
// Two record types exist, one per event:
//
//	MCE|<ts>^^^<thread>^^^<lockHash>^^^<classSig>|<own1>^^^<own2>...|<owner>^^^<entries>^^^<waiters>^^^<notifyWaiters>|<contenderStack>|<ownerStack>
//	MCED|<ts>^^^<thread>^^^<lockHash>
//
// Every record is a single line terminated by '\n'. Segments are separated by
// SegmentSep ("|"); fields inside a segment, list items and stack frames are
// separated by FieldSep ("^^^"). No field carries a name, so consumers rely on
// position alone and the order of fields must never change.
//
// # Example
//
// A thread "Binder:5199_4" blocking on a MessageQueue held by "main":
//
//	MCE|1569222849005^^^Binder:5199_4^^^75353688^^^Landroid/os/MessageQueue;||main^^^1^^^0^^^0|...|...
//	MCED|1569222849006^^^Binder:5199_4^^^75353688
//
// The empty segment between "||" is the owned-monitor list of a thread that
// holds no other monitor.
//
// # Degraded Fields
//
// Builders never fail. The caller substitutes empty strings, zero counts and
// absent hashes (see Hash) for data it could not obtain, and the record is
// still produced with the same number of segments and fields.
//
// # Sanitizing
//
// Free-text values (thread names, class signatures, stacks) are passed through
// Sanitize so that no value can introduce an extra segment, field or line.
package record
