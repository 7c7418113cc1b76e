// Package tlout decodes the per-path timeline files written by the
// randoutbreaksim simulator.
//
// # File Layout
//
// All integers are little endian.
//
//	header:  periodCount u32 | modeFlags u8
//	record:  record header | payload
//	record:  ...
//
// The file ends when reading the next record header yields no byte at all.
//
// # Mode Flags
//
//   - bits 0-2: time origin. A value of 1 (primary individual creation time)
//     means records use absolute time and carry no t0 index; every other
//     value means relative time.
//   - bit 3: a timeline of new positive test results is included.
//   - bit 4: a second series of timelines is included for the secondary
//     infection category (format revision 2 only).
//
// # Record Headers
//
// The files are not self-describing: the caller picks the format revision.
//
//	v1 relative:  binCount u32 | t0Index u32 | extinct u8
//	v1 absolute:  binCount u32 | extinct u8
//	v2 relative:  binCount u32 | t0Index u32 | maxedOutPeriod i32 | extinctionPeriod i32
//	v2 absolute:  binCount u32 | maxedOutPeriod i32 | extinctionPeriod i32
//
// In revision 2 a period of math.MaxInt32 means "never" and an extinction
// period of -math.MaxInt32 marks a path without any initial infection.
//
// # Payload
//
// The payload holds binCount u32 values per timeline, timelines written one
// after the other:
//
//	active infections | new infections | [new positive tests]
//
// followed by the same series for the secondary category when the file
// splits categories. Revision 2 files with relative time never carry the
// secondary series, even if bit 4 is set.
//
// # Example
//
//	05 00 00 00 00                 periodCount=5, relative time, no tests
//	02 00 00 00 01 00 00 00 00     binCount=2, t0Index=1, extinct=0
//	01 00 00 00 02 00 00 00        active infections [1 2]
//	03 00 00 00 04 00 00 00        new infections    [3 4]
package tlout
