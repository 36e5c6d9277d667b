package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/lua"

	m "lunacov.dev/pkg/lunacov/internal/model"
)

// Extractor derives the block forest and function list of a Lua file from a
// tree-sitter parse, so nesting and line ranges always agree with the source
// grammar rather than with the line classifier.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractResult is the syntax-derived portion of a file analysis.
type ExtractResult struct {
	Blocks    []m.Block
	Functions []m.FunctionRecord

	// StmtStarts maps a 1-based line number to the byte offset of the
	// first statement starting on that line. The instrumentation backend
	// inserts its counter calls at these offsets.
	StmtStarts map[int]int
}

// Node kind tables. Names vary between tree-sitter-lua grammar revisions, so
// each kind lists the aliases seen in the wild.
var (
	conditionalKinds = map[string]bool{
		"if_statement":     true,
		"elseif_statement": true,
		"elseif_clause":    true,
		"elseif":           true,
		"else_statement":   true,
		"else_clause":      true,
		"else":             true,
	}

	loopKinds = map[string]bool{
		"while_statement":       true,
		"repeat_statement":      true,
		"for_statement":         true,
		"for_in_statement":      true,
		"for_numeric_statement": true,
		"for_generic_statement": true,
	}

	functionKinds = map[string]bool{
		"function_declaration":       true,
		"function_definition":        true,
		"local_function":             true,
		"function":                   true,
		"local_function_declaration": true,
	}

	statementContainerKinds = map[string]bool{
		"chunk":       true,
		"program":     true,
		"block":       true,
		"source_file": true,
	}

	bareStatementKinds = map[string]bool{
		"local_declaration":          true,
		"variable_declaration":       true,
		"local_variable_declaration": true,
		"local_function":             true,
		"function_declaration":       true,
	}

	callKinds = map[string]bool{
		"function_call": true,
		"call":          true,
	}
)

// Extract parses the source and builds blocks, functions and statement start
// offsets. A file that fails to parse is retained for line-classification
// coverage only: the caller records the error and keeps blocks and functions
// empty (degraded mode).
func (e *Extractor) Extract(ctx context.Context, path m.Path, src []byte, lineClasses []m.LineClassification) (ExtractResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lua.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return ExtractResult{}, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return ExtractResult{}, fmt.Errorf("parse %s: no syntax tree", path)
	}

	if root.HasError() {
		return ExtractResult{}, fmt.Errorf("parse %s: source contains syntax errors", path)
	}

	builder := &blockBuilder{
		src:         src,
		lineClasses: lineClasses,
		stmtStarts:  map[int]int{},
	}

	// Synthetic module block wrapping all top-level code.
	builder.blocks = append(builder.blocks, m.Block{
		ID:        m.RootBlockID,
		Kind:      m.BlockTopLevel,
		StartLine: 1,
		EndLine:   len(lineClasses),
		ParentID:  m.NoParent,
	})

	builder.walk(root, m.RootBlockID)
	builder.mergeIdenticalRanges()

	slog.Debug("extracted blocks",
		"path", path,
		"blocks", len(builder.blocks),
		"functions", len(builder.functions))

	return ExtractResult{
		Blocks:     builder.blocks,
		Functions:  builder.functions,
		StmtStarts: builder.stmtStarts,
	}, nil
}

type blockBuilder struct {
	src         []byte
	lineClasses []m.LineClassification
	blocks      []m.Block
	functions   []m.FunctionRecord
	stmtStarts  map[int]int
}

func (b *blockBuilder) walk(node *sitter.Node, parentID int) {
	kind, isRegion := regionKind(node.Type())

	currentParent := parentID

	if isRegion {
		currentParent = b.addBlock(node, kind, parentID)

		if kind == m.BlockFunction {
			b.addFunction(node, currentParent)
		}
	}

	if b.isStatement(node) {
		b.noteStatementStart(node)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		b.walk(node.NamedChild(i), currentParent)
	}
}

func regionKind(nodeType string) (m.BlockKind, bool) {
	switch {
	case conditionalKinds[nodeType]:
		return m.BlockConditional, true
	case loopKinds[nodeType]:
		return m.BlockLoop, true
	case functionKinds[nodeType]:
		return m.BlockFunction, true
	}

	return "", false
}

func (b *blockBuilder) addBlock(node *sitter.Node, kind m.BlockKind, parentID int) int {
	body := bodyNode(node)

	id := len(b.blocks)
	b.blocks = append(b.blocks, m.Block{
		ID:        id,
		Kind:      kind,
		StartLine: int(body.StartPoint().Row) + 1,
		EndLine:   int(body.EndPoint().Row) + 1,
		ParentID:  parentID,
	})

	return id
}

// bodyNode prefers an explicit body child so that branch ranges exclude the
// surrounding keywords, falling back to the construct node itself.
func bodyNode(node *sitter.Node) *sitter.Node {
	for _, field := range []string{"body", "block", "consequence"} {
		if child := node.ChildByFieldName(field); child != nil {
			return child
		}
	}

	return node
}

func (b *blockBuilder) addFunction(node *sitter.Node, blockID int) {
	declLine := int(node.StartPoint().Row) + 1

	name := ""
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		name = nameNode.Content(b.src)
	}

	if name == "" {
		name = fmt.Sprintf("<anonymous:%d>", declLine)
	}

	block := b.blocks[blockID]

	b.functions = append(b.functions, m.FunctionRecord{
		Name:      name,
		DeclLine:  declLine,
		EntryLine: b.entryLine(declLine, block.StartLine, block.EndLine),
		BlockID:   blockID,
	})
}

// entryLine picks the first executable line of a function body. When the
// body spans several lines, the declaration line itself is skipped so that
// declaring the function does not count as calling it. One-line functions
// have no such luxury.
func (b *blockBuilder) entryLine(declLine, startLine, endLine int) int {
	first := 0

	for line := startLine; line <= endLine && line <= len(b.lineClasses); line++ {
		if b.lineClasses[line-1] != m.Executable {
			continue
		}

		if first == 0 {
			first = line
		}

		if line > declLine {
			return line
		}
	}

	return first
}

func (b *blockBuilder) isStatement(node *sitter.Node) bool {
	nodeType := node.Type()

	if bareStatementKinds[nodeType] || strings.HasSuffix(nodeType, "_statement") {
		return true
	}

	// A call is only a statement when it stands directly in a block.
	if callKinds[nodeType] {
		parent := node.Parent()
		return parent != nil && statementContainerKinds[parent.Type()]
	}

	return false
}

func (b *blockBuilder) noteStatementStart(node *sitter.Node) {
	line := int(node.StartPoint().Row) + 1
	offset := int(node.StartByte())

	if existing, ok := b.stmtStarts[line]; !ok || offset < existing {
		b.stmtStarts[line] = offset
	}
}

// mergeIdenticalRanges collapses blocks that share an identical line range
// with their parent, e.g. a single-statement branch emitting a minimal body.
// The child is dropped and its children are re-parented, so no degenerate
// block with zero own lines survives.
func (b *blockBuilder) mergeIdenticalRanges() {
	drop := map[int]int{} // dropped block ID -> surviving parent ID

	for _, block := range b.blocks {
		if block.ParentID == m.NoParent {
			continue
		}

		parent := b.blocks[block.ParentID]
		if block.StartLine == parent.StartLine && block.EndLine == parent.EndLine {
			drop[block.ID] = parent.ID
		}
	}

	if len(drop) == 0 {
		return
	}

	// Resolve chains of dropped blocks to their surviving ancestor.
	resolve := func(id int) int {
		for {
			target, dropped := drop[id]
			if !dropped {
				return id
			}
			id = target
		}
	}

	kept := make([]m.Block, 0, len(b.blocks))
	newID := map[int]int{}

	for _, block := range b.blocks {
		if _, dropped := drop[block.ID]; dropped {
			continue
		}

		newID[block.ID] = len(kept)
		kept = append(kept, block)
	}

	for i := range kept {
		oldParent := kept[i].ParentID
		if oldParent != m.NoParent {
			kept[i].ParentID = newID[resolve(oldParent)]
		}

		kept[i].ID = i
	}

	// Functions keep pointing at their surviving body block.
	for i := range b.functions {
		b.functions[i].BlockID = newID[resolve(b.functions[i].BlockID)]
	}

	b.blocks = kept
}
