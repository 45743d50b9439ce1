package command

import "fmt"

// OpKind names the variant carried by an Operation.
type OpKind string

const (
	OpDispatch    OpKind = "dispatch"
	OpCopyBuffer  OpKind = "copy_buffer"
	OpWriteBuffer OpKind = "write_buffer"
	OpReadBuffer  OpKind = "read_buffer"
	OpBarrier     OpKind = "barrier"
)

// ResourceID identifies a GPU-side resource (buffer, texture, pipeline).
// The scheduler stores these on command nodes for the resource tracker;
// it never interprets them itself.
type ResourceID string

// Operation is a discriminated union: exactly one variant field is set.
// The graph core treats the whole value opaquely; only the executor and
// the transport look inside.
type Operation struct {
	Dispatch    *DispatchOp    `json:"dispatch,omitempty" yaml:"dispatch,omitempty"`
	CopyBuffer  *CopyBufferOp  `json:"copy_buffer,omitempty" yaml:"copy_buffer,omitempty"`
	WriteBuffer *WriteBufferOp `json:"write_buffer,omitempty" yaml:"write_buffer,omitempty"`
	ReadBuffer  *ReadBufferOp  `json:"read_buffer,omitempty" yaml:"read_buffer,omitempty"`
	Barrier     *BarrierOp     `json:"barrier,omitempty" yaml:"barrier,omitempty"`
}

// DispatchOp launches a compute pipeline over a workgroup grid.
type DispatchOp struct {
	Pipeline   string `json:"pipeline" yaml:"pipeline"`
	GroupsX    int    `json:"groups_x" yaml:"groups_x"`
	GroupsY    int    `json:"groups_y" yaml:"groups_y"`
	GroupsZ    int    `json:"groups_z" yaml:"groups_z"`
	EntryPoint string `json:"entry_point,omitempty" yaml:"entry_point,omitempty"`
}

// CopyBufferOp copies a byte range between two buffers.
type CopyBufferOp struct {
	Src       ResourceID `json:"src" yaml:"src"`
	Dst       ResourceID `json:"dst" yaml:"dst"`
	SrcOffset int64      `json:"src_offset" yaml:"src_offset"`
	DstOffset int64      `json:"dst_offset" yaml:"dst_offset"`
	Size      int64      `json:"size" yaml:"size"`
}

// WriteBufferOp uploads host data into a buffer.
type WriteBufferOp struct {
	Dst    ResourceID `json:"dst" yaml:"dst"`
	Offset int64      `json:"offset" yaml:"offset"`
	Data   []byte     `json:"data,omitempty" yaml:"data,omitempty"`
}

// ReadBufferOp schedules a readback from a buffer to the host.
type ReadBufferOp struct {
	Src    ResourceID `json:"src" yaml:"src"`
	Offset int64      `json:"offset" yaml:"offset"`
	Size   int64      `json:"size" yaml:"size"`
}

// BarrierOp is an ordering-only command with no payload of its own.
type BarrierOp struct {
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Kind reports which variant is set, or "" for an empty Operation.
func (o Operation) Kind() OpKind {
	switch {
	case o.Dispatch != nil:
		return OpDispatch
	case o.CopyBuffer != nil:
		return OpCopyBuffer
	case o.WriteBuffer != nil:
		return OpWriteBuffer
	case o.ReadBuffer != nil:
		return OpReadBuffer
	case o.Barrier != nil:
		return OpBarrier
	}
	return ""
}

// Validate checks that exactly one variant is set.
func (o Operation) Validate() error {
	n := 0
	if o.Dispatch != nil {
		n++
	}
	if o.CopyBuffer != nil {
		n++
	}
	if o.WriteBuffer != nil {
		n++
	}
	if o.ReadBuffer != nil {
		n++
	}
	if o.Barrier != nil {
		n++
	}
	switch n {
	case 0:
		return fmt.Errorf("operation: no variant set")
	case 1:
		return nil
	default:
		return fmt.Errorf("operation: %d variants set, want exactly one", n)
	}
}
