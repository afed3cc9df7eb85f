package shm

import (
	"fmt"
	"strings"
)

// Segment Memory Layout Constants
// All multi-byte fields are little-endian. Data blocks follow the frame
// counter in canonical capability order.
const (
	// ========== HEADER (0x00 - 0x18) ==========
	OFFSET_HASH              = 0x00
	OFFSET_SCHEMA_VERSION    = 0x04
	OFFSET_NUM_JOINTS        = 0x08
	OFFSET_NUM_FORCE_SENSORS = 0x0C
	OFFSET_NUM_IMU_SENSORS   = 0x10
	OFFSET_JOINT_TYPE        = 0x14
	SIZE_HEADER              = 0x18 // 24 bytes

	// ========== FRAME COUNTER (0x18 - 0x20) ==========
	OFFSET_FRAME_COUNTER = 0x18
	SIZE_FRAME_COUNTER   = 0x08

	// ========== DATA BLOCKS (0x20 - end) ==========
	OFFSET_DATA = 0x20
	VALUE_SIZE  = 8 // IEEE-754 float64

	SchemaVersion uint32 = 1
)

// HeaderSize is the fixed prefix before the first data block.
const HeaderSize = OFFSET_DATA

// Block locates one capability's data inside the segment.
type Block struct {
	Type   JointType
	Offset uint32
	Length uint32 // number of float64 values
}

// Size returns the block size in bytes.
func (b Block) Size() uint32 {
	return b.Length * VALUE_SIZE
}

// Layout is the byte map of a segment, derived only from Settings.
type Layout struct {
	HeaderSize uint32
	TotalSize  uint32
	Order      []JointType
	Blocks     map[JointType]Block
}

// CalculateLayout maps Settings to block offsets and total size. Blocks are
// placed in canonical bit order regardless of how the mask was built.
func CalculateLayout(s Settings) Layout {
	l := Layout{
		HeaderSize: HeaderSize,
		Blocks:     make(map[JointType]Block),
	}
	offset := uint32(OFFSET_DATA)
	for _, jt := range s.JointType.Split() {
		b := Block{Type: jt, Offset: offset, Length: s.blockLength(jt)}
		l.Blocks[jt] = b
		l.Order = append(l.Order, jt)
		offset += b.Size()
	}
	l.TotalSize = offset
	return l
}

// Block returns the block for a single capability.
func (l Layout) Block(jt JointType) (Block, bool) {
	b, ok := l.Blocks[jt]
	return b, ok
}

// MemoryRegion describes a named span of the segment
type MemoryRegion struct {
	Name    string
	Offset  uint32
	Size    uint32
	Purpose string
}

// Regions returns every region of the layout, header first.
func (l Layout) Regions() []MemoryRegion {
	regions := []MemoryRegion{
		{
			Name:    "Header",
			Offset:  OFFSET_HASH,
			Size:    SIZE_HEADER,
			Purpose: "Write-once identity and schema record",
		},
		{
			Name:    "FrameCounter",
			Offset:  OFFSET_FRAME_COUNTER,
			Size:    SIZE_FRAME_COUNTER,
			Purpose: "Monotonic write sequence",
		},
	}
	for _, jt := range l.Order {
		b := l.Blocks[jt]
		regions = append(regions, MemoryRegion{
			Name:    jt.String(),
			Offset:  b.Offset,
			Size:    b.Size(),
			Purpose: fmt.Sprintf("%d float64 values", b.Length),
		})
	}
	return regions
}

// LayoutError represents a memory layout error
type LayoutError struct {
	Code    string
	Message string
}

func (e *LayoutError) Error() string {
	return e.Code + ": " + e.Message
}

// ValidateLayout checks for overlapping regions, misaligned blocks and
// regions that do not fit in a mapping of segmentSize bytes.
func ValidateLayout(l Layout, segmentSize uint32) error {
	if l.TotalSize > segmentSize {
		return &LayoutError{
			Code:    "SEGMENT_TOO_SMALL",
			Message: fmt.Sprintf("layout needs %d bytes, segment has %d", l.TotalSize, segmentSize),
		}
	}

	regions := l.Regions()
	for i := 0; i < len(regions); i++ {
		r1 := regions[i]
		if r1.Offset+r1.Size > segmentSize {
			return &LayoutError{
				Code:    "REGION_OUT_OF_BOUNDS",
				Message: "Region " + r1.Name + " exceeds segment bounds",
			}
		}
		for j := i + 1; j < len(regions); j++ {
			r2 := regions[j]
			if regionsOverlap(r1.Offset, r1.Size, r2.Offset, r2.Size) {
				return &LayoutError{
					Code:    "REGION_OVERLAP",
					Message: "Region " + r1.Name + " overlaps with " + r2.Name,
				}
			}
		}
	}

	for _, b := range l.Blocks {
		if b.Offset%VALUE_SIZE != 0 {
			return &LayoutError{
				Code:    "MISALIGNED_BLOCK",
				Message: fmt.Sprintf("block %s at %d is not 8-byte aligned", b.Type, b.Offset),
			}
		}
	}
	return nil
}

func regionsOverlap(offset1, size1, offset2, size2 uint32) bool {
	return size1 > 0 && size2 > 0 && offset1 < offset2+size2 && offset1+size1 > offset2
}

// MemoryMap returns a human-readable memory map
func (l Layout) MemoryMap() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Segment Memory Map (Size: %d bytes)\n", l.TotalSize)
	b.WriteString("================================================================\n")
	for _, r := range l.Regions() {
		fmt.Fprintf(&b, "%-20s | 0x%06X - 0x%06X | %6d bytes | %s\n",
			r.Name, r.Offset, r.Offset+r.Size, r.Size, r.Purpose)
	}
	b.WriteString("================================================================\n")
	return b.String()
}
