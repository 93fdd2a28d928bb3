package ir

// Mode is the semantic type carried by a Node's output: an integer width,
// a pointer, a floating width, or one of the pipeline's bookkeeping token
// types (memory-chain, control, tuple).
type Mode uint8

const (
	ModeInvalid Mode = iota
	ModeInt8
	ModeInt16
	ModeInt32
	ModePtr
	ModeFloat32
	ModeFloat64
	ModeMemory  // memory-chain token: orders loads/stores, not register-allocated
	ModeControl // control token: CFG edges, not register-allocated
	ModeTuple   // multi-result node; consumers are Proj nodes naming a field
)

// RegRelevant reports whether a value of this mode occupies a physical
// register and therefore participates in liveness, spilling, and coloring.
func (m Mode) RegRelevant() bool {
	switch m {
	case ModeInt8, ModeInt16, ModeInt32, ModePtr, ModeFloat32, ModeFloat64:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	switch m {
	case ModeInvalid:
		return "invalid"
	case ModeInt8:
		return "i8"
	case ModeInt16:
		return "i16"
	case ModeInt32:
		return "i32"
	case ModePtr:
		return "ptr"
	case ModeFloat32:
		return "f32"
	case ModeFloat64:
		return "f64"
	case ModeMemory:
		return "memory"
	case ModeControl:
		return "control"
	case ModeTuple:
		return "tuple"
	default:
		return "mode?"
	}
}
