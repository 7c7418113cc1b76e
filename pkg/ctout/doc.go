// Package ctout decodes the contact tracing files written by the
// randoutbreaksim simulator.
//
// A ctout file has no header. It is a flat array of 20-byte little-endian
// records, one per positive test, in chronological order:
//
//	revision 1:  postestTime i32 | presymDuration i32 | childID u32 | parentID u32 | tracedContacts u32
//	revision 2:  postestTime i32 | presymDuration i32 | childID i32 | parentID i32 | tracedContacts u32
//
// In revision 2 a negative parent ID means the child's infectious period was
// not interrupted by contact tracing. Times are expressed in minutes.
package ctout
