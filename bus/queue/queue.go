// Package queue implements the shared binary record queue that carries
// requests and replies between the host and the guest. One side only ever
// pushes, the other only ever shifts; synchronization across that boundary
// is the caller's responsibility, not this package's.
//
// The wire layout is fixed and must match the guest's reader byte for byte:
// a small header of 32-bit little-endian words, followed by a body region
// holding the record bytes back to back.
package queue

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxRecords is the maximum number of records the header can index
	// between resets.
	MaxRecords = 100

	indexNumRecords     = 0
	indexNumShiftedOff  = 1
	indexHead           = 2
	indexOffsets        = 3
	indexRecords        = indexOffsets + 2*MaxRecords

	// HeadInit is the byte offset where the body region begins.
	HeadInit = 4 * indexRecords

	// RecommendedSize is the suggested total buffer length: enough body
	// space for MaxRecords average-sized records plus the header.
	RecommendedSize = 128 * MaxRecords
)

// SharedQueue is a fixed-capacity, single-producer/single-consumer queue of
// variable-length byte records, each tagged with a 32-bit op id. It is
// backed by a single contiguous buffer shared between host and guest.
type SharedQueue struct {
	buf []byte
}

// New allocates a SharedQueue backed by a freshly zeroed buffer of size
// bytes. size should be at least HeadInit and is typically RecommendedSize.
func New(size int) *SharedQueue {
	if size < HeadInit {
		size = HeadInit
	}
	q := &SharedQueue{buf: make([]byte, size)}
	q.reset()
	return q
}

// Wrap adapts an existing buffer (e.g. one obtained from the guest runtime)
// as a SharedQueue without copying or resetting it.
func Wrap(buf []byte) *SharedQueue {
	return &SharedQueue{buf: buf}
}

// Bytes exposes the raw backing buffer for the guest side to read/write
// directly (the as_buffer_view equivalent).
func (q *SharedQueue) Bytes() []byte { return q.buf }

func (q *SharedQueue) word(i int) uint32 {
	return binary.LittleEndian.Uint32(q.buf[4*i : 4*i+4])
}

func (q *SharedQueue) setWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(q.buf[4*i:4*i+4], v)
}

func (q *SharedQueue) numRecords() uint32    { return q.word(indexNumRecords) }
func (q *SharedQueue) numShiftedOff() uint32 { return q.word(indexNumShiftedOff) }
func (q *SharedQueue) head() uint32          { return q.word(indexHead) }

// Size returns the number of records currently resident (pushed but not yet
// shifted off).
func (q *SharedQueue) Size() int {
	return int(q.numRecords() - q.numShiftedOff())
}

func (q *SharedQueue) reset() {
	q.setWord(indexNumRecords, 0)
	q.setWord(indexNumShiftedOff, 0)
	q.setWord(indexHead, HeadInit)
}

func (q *SharedQueue) recordEnd(i uint32) uint32 {
	return q.word(indexOffsets + 2*int(i))
}

func (q *SharedQueue) recordOpID(i uint32) uint32 {
	return q.word(indexOffsets + 2*int(i) + 1)
}

func (q *SharedQueue) setRecord(i uint32, end, opID uint32) {
	q.setWord(indexOffsets+2*int(i), end)
	q.setWord(indexOffsets+2*int(i)+1, opID)
}

// Push appends record under opID. It returns false without mutating any
// state if the record would not fit in the remaining body space or
// MaxRecords records have been pushed since the last reset (shifting a
// record does not free its slot; only draining the queue to empty does) —
// the overflow signal the caller must detect and retry.
//
// Push panics if len(record) is zero or not a multiple of 4; that is a
// programmer error in the caller, not a recoverable condition.
func (q *SharedQueue) Push(opID uint32, record []byte) bool {
	if len(record) == 0 || len(record)%4 != 0 {
		panic(fmt.Sprintf("queue: record length %d is not a positive multiple of 4", len(record)))
	}

	numRecords := q.numRecords()
	if numRecords >= MaxRecords {
		return false
	}

	head := q.head()
	end := head + uint32(len(record))
	if int(end) > len(q.buf) {
		return false
	}

	copy(q.buf[head:end], record)
	q.setRecord(numRecords, end, opID)
	q.setWord(indexNumRecords, numRecords+1)
	q.setWord(indexHead, end)
	return true
}

// Shift removes and returns the oldest resident record along with its op
// id. It reports ok=false if the queue is empty. When the shifted record
// was the last resident one, the queue resets its counters and head back to
// the start of the body region — records are reclaimed in bulk, not
// compacted one at a time.
func (q *SharedQueue) Shift() (opID uint32, record []byte, ok bool) {
	size := q.Size()
	if size == 0 {
		if q.numShiftedOff() != 0 {
			panic("queue: empty queue has non-zero numShiftedOff")
		}
		return 0, nil, false
	}

	off := q.numShiftedOff()
	var start uint32
	if off == 0 {
		start = HeadInit
	} else {
		start = q.recordEnd(off - 1)
	}
	end := q.recordEnd(off)
	opID = q.recordOpID(off)
	record = q.buf[start:end]

	if size == 1 {
		q.reset()
	} else {
		q.setWord(indexNumShiftedOff, off+1)
	}
	return opID, record, true
}
