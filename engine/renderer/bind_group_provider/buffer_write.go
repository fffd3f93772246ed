package bind_group_provider

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// Apply writes w.Data at w.Offset into the buffer bound at w.Binding on
// w.Provider via queue. It fails with a descriptive error rather than
// panicking if no buffer is bound at that binding, letting a caller surface
// which material/global provider was mis-populated.
func (w BufferWrite) Apply(queue *wgpu.Queue) error {
	buf := w.Provider.Buffer(w.Binding)
	if buf == nil {
		return fmt.Errorf("bind_group_provider: %q (%s) has no buffer at binding %d", w.Provider.Label(), w.Provider.Identity(), w.Binding)
	}
	queue.WriteBuffer(buf, w.Offset, w.Data)
	return nil
}

// ApplyBufferWrites applies each write in writes via queue in order, stopping
// and returning the first error encountered. This batches the per-frame
// uniform updates a renderer issues across many material/global providers
// through a single call instead of resolving each provider's buffer by hand.
func ApplyBufferWrites(queue *wgpu.Queue, writes []BufferWrite) error {
	for _, w := range writes {
		if err := w.Apply(queue); err != nil {
			return err
		}
	}
	return nil
}
