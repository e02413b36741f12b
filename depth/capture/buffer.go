package capture

import (
	log "github.com/sirupsen/logrus"
)

// Buffer wraps a block of driver-owned memory. The driver retains the
// allocation; Free returns it exactly once. A Buffer has a single owner at
// any time so access is not synchronized; freeing twice or reading after
// free is an ownership bug and panics.
type Buffer struct {
	data  []byte
	free  func() error
	freed bool
}

// NewBuffer adopts driver memory. free is invoked exactly once when the
// buffer is freed; it may be nil for memory with no release step.
func NewBuffer(data []byte, free func() error) *Buffer {
	return &Buffer{
		data: data,
		free: free,
	}
}

func (b *Buffer) Data() []byte {
	if b.freed {
		panic("capture: buffer read after free")
	}
	return b.data
}

func (b *Buffer) Len() int {
	if b.freed {
		panic("capture: buffer read after free")
	}
	return len(b.data)
}

// Free returns the memory to the driver. A driver release failure is logged
// and otherwise ignored; the memory is considered gone either way.
func (b *Buffer) Free() {
	if b.freed {
		panic("capture: buffer already freed")
	}
	b.freed = true
	b.data = nil
	if b.free == nil {
		return
	}
	if err := b.free(); err != nil {
		log.Errorf("Failed to release capture buffer: %v", err)
	}
}
