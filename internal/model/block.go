package model

// BlockKind categorizes the logical regions tracked for block coverage.
type BlockKind string

const (
	// BlockTopLevel is the synthetic root block wrapping all top-level code.
	BlockTopLevel BlockKind = "top-level"

	// BlockConditional represents one branch of a conditional.
	BlockConditional BlockKind = "conditional-branch"

	// BlockLoop represents a loop body.
	BlockLoop BlockKind = "loop-body"

	// BlockFunction represents a function body.
	BlockFunction BlockKind = "function-body"
)

// RootBlockID is the arena index of the synthetic module block.
const RootBlockID = 0

// NoParent marks a block without a parent (only the root block).
const NoParent = -1

// Block is a contiguous, possibly nested logical region of a file.
//
// Blocks live in a per-file arena addressed by integer ID with parent links,
// so execution-time propagation is an O(1) lookup plus a parent walk and the
// structure stays free of ownership cycles.
type Block struct {
	ID             int       `json:"id"`
	Kind           BlockKind `json:"kind"`
	StartLine      int       `json:"start_line"`
	EndLine        int       `json:"end_line"`
	ParentID       int       `json:"parent_id"`
	Executed       bool      `json:"executed"`
	ExecutionCount uint64    `json:"execution_count"`
}

// Contains reports whether line falls inside the block's range.
func (b Block) Contains(line int) bool {
	return line >= b.StartLine && line <= b.EndLine
}

// FunctionRecord tracks coverage of one function or closure declaration.
type FunctionRecord struct {
	// Name is the declared name, or a synthetic "<anonymous:LINE>" ID for
	// closures without one.
	Name string `json:"name"`

	// DeclLine is the line of the function declaration.
	DeclLine int `json:"decl_line"`

	// EntryLine is the first executable line inside the function body.
	// Reaching it counts as one call. Zero when the body has no
	// executable lines.
	EntryLine int `json:"entry_line"`

	// BlockID is the arena ID of the paired function-body block.
	BlockID int `json:"block_id"`

	Executed  bool   `json:"executed"`
	CallCount uint64 `json:"call_count"`
}
