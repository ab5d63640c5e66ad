package cbc

import "fmt"

// branchOperandWidth is the fixed width, in bytes, of every branch
// displacement and every literal-index operand. spec.md §6 describes the
// original encoding as variable-width (1-3 bytes, chosen per function by
// StatusFullLiteralEncoding and an analogous branch-width flag); this
// module always emits 2-byte operands and never sets the "short form"
// header bits. See DESIGN.md's Open Question resolution for why: a
// single-pass Go emitter has no second pass to shrink operands after the
// fact, and the original's width-picking depends on a final code-size
// count the backpatching scheme here does not keep around per-function.
const branchOperandWidth = 2

// BranchNode is one pending patch site on a break/continue/case list.
// spec.md §3 describes the original as a singly-linked list whose nodes
// pack a "this is a continue, not a break" marker into the high bit of
// the stored offset; this module keeps the same list shape but carries
// the marker as an explicit field rather than bit-packing a machine word,
// which is a C-idiom with no Go equivalent worth reaching for here.
type BranchNode struct {
	Offset   int // code offset of the 2-byte operand, awaiting patch
	Continue bool
	Next     *BranchNode
}

// pending is the last-opcode cache: at most one not-yet-written
// instruction, held back so the next emit call can fuse it (spec.md §4.4
// "PUSH_IDENT + ASSIGN -> ASSIGN_IDENT") or a loop-tail caller can cancel
// it outright (constant-condition folding).
type pending struct {
	op          OpCode
	ext         bool
	literalIdx  int
	hasLiteral  bool
	isIdent     bool // literalIdx indexes the identifier pool, never fixed up
	byteOperand byte
	hasByte     bool
	line        int
	valid       bool
}

// Emitter accumulates one function's CBC stream: the opcode bytes, the
// literal pool, and the line table, applying the last-opcode peephole
// cache to every non-branch emit. Grounded on the teacher's
// Chunk.Write/EmitJump/PatchJump/EmitLoop (internal/bytecode/bytecode.go),
// generalized from raw integer offsets to explicit BranchNode handles.
type Emitter struct {
	code     []byte
	lines    []LineEntry
	lastLine int
	cache    pending

	interner LiteralInterner
	// literalFixups lists code offsets of PushLiteral-family operands that
	// index into the non-identifier half of the pool; at Finalize they are
	// shifted by the number of interned identifiers so that identifiers
	// occupy the low, contiguous [0, IdentEnd) range the header promises.
	literalFixups []int
	identInterner map[string]int
	identOrder    []string
}

// NewEmitter constructs an Emitter using the default in-memory literal
// pool. A host embedding this compiler can build its own LiteralInterner
// and should use that constructor instead (not yet exposed: this module
// has a single caller, internal/compiler).
func NewEmitter() *Emitter {
	return &Emitter{
		interner:      newSliceInterner(),
		identInterner: make(map[string]int),
	}
}

func (e *Emitter) markLine(line int) {
	if line != 0 && line != e.lastLine {
		e.lines = append(e.lines, LineEntry{Offset: len(e.code), Line: line})
		e.lastLine = line
	}
}

// Offset flushes the cache and returns the current end of the emitted
// code, i.e. what a forward branch emitted right now would need to patch
// "to here".
func (e *Emitter) Offset() int {
	e.flushCache()
	return len(e.code)
}

// --- last-opcode cache -----------------------------------------------

// fuseTable maps (cached opcode, next opcode) to the single fused opcode
// that replaces both. Fusion always keeps the cached instruction's
// literal operand, since that is the one surviving reference (spec.md
// §4.4's worked example: PUSH_IDENT x; ASSIGN -> ASSIGN_IDENT x).
var fuseTable = map[[2]OpCode]OpCode{
	{OpPushIdent, OpAssign}: OpAssignIdent,
	{OpPushProp, OpAssign}:  OpAssignProp,
	{OpPushElement, OpAssign}: OpAssignElement,
}

// emit routes one instruction through the cache: fuse with whatever is
// pending, or flush the pending instruction and hold this one back.
func (e *Emitter) emit(next pending) {
	if e.cache.valid {
		if fused, ok := fuseTable[[2]OpCode{e.cache.op, next.op}]; !next.ext && ok {
			e.cache = pending{op: fused, literalIdx: e.cache.literalIdx, hasLiteral: e.cache.hasLiteral, isIdent: e.cache.isIdent, line: next.line, valid: true}
			return
		}
		e.flushCache()
	}
	e.cache = next
}

// flushCache commits the pending instruction to the code stream
// unmodified ("flush_cbc commits the cache unmodified", spec.md §4.4).
func (e *Emitter) flushCache() {
	if !e.cache.valid {
		return
	}
	c := e.cache
	e.cache = pending{}
	e.markLine(c.line)
	if c.ext {
		e.code = append(e.code, byte(OpExtOpcode), byte(c.op))
	} else {
		e.code = append(e.code, byte(c.op))
	}
	switch {
	case c.hasLiteral:
		site := len(e.code)
		e.code = append(e.code, 0, 0)
		putUint16(e.code[site:], uint16(c.literalIdx))
		if !c.isIdent {
			e.literalFixups = append(e.literalFixups, site)
		}
	case c.hasByte:
		e.code = append(e.code, c.byteOperand)
	}
}

// Flush is the public form of flush_cbc, used at statement boundaries
// and immediately before anything that needs a stable Offset() (branch
// emission, function end).
func (e *Emitter) Flush() { e.flushCache() }

// PeekLast reports the opcode currently held in the cache, without
// flushing it. Used by loop-tail compilation to detect a just-emitted
// PUSH_TRUE/PUSH_FALSE/LOGICAL_NOT condition eligible for constant
// folding (spec.md §4.4, "while(1){} -> PUSH_TRUE folded away").
func (e *Emitter) PeekLast() (OpCode, bool) {
	if !e.cache.valid || e.cache.ext {
		return 0, false
	}
	return e.cache.op, true
}

// CancelLast drops the cached instruction without ever writing it. Used
// together with PeekLast to fold away a statically-true/false loop
// condition instead of pushing it and branching on it.
func (e *Emitter) CancelLast() { e.cache = pending{} }

// --- plain emits --------------------------------------------------

func (e *Emitter) EmitSimple(op OpCode, line int) {
	e.emit(pending{op: op, line: line, valid: true})
}

func (e *Emitter) EmitLiteral(op OpCode, idx int, line int) {
	e.emit(pending{op: op, literalIdx: idx, hasLiteral: true, line: line, valid: true})
}

// EmitIdent pushes/assigns an identifier reference. Identifier names are
// interned into a pool segment distinct from general literals so that,
// at Finalize, they occupy the header's [0, IdentEnd) prefix.
func (e *Emitter) EmitIdent(op OpCode, name string, line int) {
	idx, ok := e.identInterner[name]
	if !ok {
		idx = len(e.identOrder)
		e.identOrder = append(e.identOrder, name)
		e.identInterner[name] = idx
	}
	// Identifier operands are never fixed up: they already live at the
	// start of the pool.
	e.emit(pending{op: op, literalIdx: idx, hasLiteral: true, isIdent: true, line: line, valid: true})
}

// InternIdentOnly registers name in the identifier pool without emitting
// anything, for a `var` declaration with no initializer: the binding
// must still exist in the pool so a later bare reference resolves, even
// though nothing is pushed or assigned at the declaration site.
func (e *Emitter) InternIdentOnly(name string) {
	if _, ok := e.identInterner[name]; ok {
		return
	}
	idx := len(e.identOrder)
	e.identOrder = append(e.identOrder, name)
	e.identInterner[name] = idx
}

// EmitByte emits an instruction with a single raw byte operand (CALL/NEW
// argument count, RETURN's has-value flag). Byte operands never fuse.
func (e *Emitter) EmitByte(op OpCode, b byte, line int) {
	e.flushCache()
	e.emit(pending{op: op, byteOperand: b, hasByte: true, line: line, valid: true})
	e.flushCache()
}

// EmitExt emits an extended (two-byte-opcode) instruction with no operand.
func (e *Emitter) EmitExt(extOp OpCode, line int) {
	e.emit(pending{op: extOp, ext: true, line: line, valid: true})
}

// --- branches -----------------------------------------------------

// EmitForwardBranch flushes the cache and reserves a 2-byte forward
// displacement, returning the patch site for a later
// SetBranchToCurrentPosition call. Branches never pass through the
// fuse cache: their target is unknown at emission time.
func (e *Emitter) EmitForwardBranch(op OpCode, line int) int {
	e.flushCache()
	e.markLine(line)
	e.code = append(e.code, byte(op))
	site := len(e.code)
	e.code = append(e.code, 0, 0)
	return site
}

// EmitExtForwardBranch is EmitForwardBranch for an extended opcode
// (EXT_FOR_IN_CREATE_CONTEXT carries a branch operand to the for-in
// loop's exit; EXT_BRANCH_IF_FOR_IN_HAS_NEXT is a backward branch, see
// EmitExtBackwardBranch).
func (e *Emitter) EmitExtForwardBranch(extOp OpCode, line int) int {
	e.flushCache()
	e.markLine(line)
	e.code = append(e.code, byte(OpExtOpcode), byte(extOp))
	site := len(e.code)
	e.code = append(e.code, 0, 0)
	return site
}

// EmitBackwardBranch flushes the cache and emits a branch whose target
// precedes it; the displacement is computable immediately, unlike a
// forward branch.
func (e *Emitter) EmitBackwardBranch(op OpCode, target int, line int) error {
	e.flushCache()
	e.markLine(line)
	e.code = append(e.code, byte(op))
	return e.writeBackwardDisp(target)
}

// EmitExtBackwardBranch is EmitBackwardBranch for an extended opcode.
// EXT_BRANCH_IF_FOR_IN_HAS_NEXT is the only extended backward branch: it
// closes the for-in loop body by jumping to EXT_FOR_IN_GET_NEXT's offset
// when the enumerator still has properties left.
func (e *Emitter) EmitExtBackwardBranch(extOp OpCode, target int, line int) error {
	e.flushCache()
	e.markLine(line)
	e.code = append(e.code, byte(OpExtOpcode), byte(extOp))
	return e.writeBackwardDisp(target)
}

func (e *Emitter) writeBackwardDisp(target int) error {
	disp := len(e.code) + branchOperandWidth - target
	if disp < 0 || disp > 0xFFFF {
		return fmt.Errorf("cbc: backward branch displacement %d out of range", disp)
	}
	e.code = append(e.code, 0, 0)
	putUint16(e.code[len(e.code)-2:], uint16(disp))
	return nil
}

// SetBranchToCurrentPosition patches a single forward-branch site
// (returned by EmitForwardBranch/EmitExtForwardBranch) to the current
// end of the code stream. It flushes the cache first, so the target lies
// after any instruction still held back for fusion.
func (e *Emitter) SetBranchToCurrentPosition(site int) error {
	e.flushCache()
	return e.SetBranchToPosition(site, len(e.code))
}

// SetBranchToPosition patches a forward-branch site to an explicit
// target, used when the target is not simply "here" (the break/continue
// drains below, which patch to offsets their callers recorded).
func (e *Emitter) SetBranchToPosition(site int, target int) error {
	disp := target - site - branchOperandWidth
	if disp < 0 || disp > 0xFFFF {
		return fmt.Errorf("cbc: forward branch displacement %d out of range", disp)
	}
	putUint16(e.code[site:], uint16(disp))
	return nil
}

// EmitForwardBranchItem is EmitForwardBranch plus BranchNode bookkeeping:
// it prepends a new node (tagged continue or break) onto head and returns
// the new head, for break/continue/case-fallthrough lists threaded
// through nested LoopFrame/SwitchFrame statement-stack entries.
func (e *Emitter) EmitForwardBranchItem(op OpCode, line int, isContinue bool, head *BranchNode) *BranchNode {
	site := e.EmitForwardBranch(op, line)
	return &BranchNode{Offset: site, Continue: isContinue, Next: head}
}

// DrainBreaks patches every node in the list to target and discards the
// list. Used for switch case/default exit lists, which never contain a
// continue node.
func (e *Emitter) DrainBreaks(head *BranchNode, target int) error {
	for n := head; n != nil; n = n.Next {
		if err := e.SetBranchToPosition(n.Offset, target); err != nil {
			return err
		}
	}
	return nil
}

// DrainBreakContinue walks a loop's combined break/continue list once,
// routing each node to breakTarget or continueTarget by its Continue
// marker, then discards the list. spec.md §3: "drain a branch-node list,
// patching each node either to the current position or (continue path,
// distinguished by the high bit of offset) to a separate continue
// target."
func (e *Emitter) DrainBreakContinue(head *BranchNode, breakTarget, continueTarget int) error {
	for n := head; n != nil; n = n.Next {
		target := breakTarget
		if n.Continue {
			target = continueTarget
		}
		if err := e.SetBranchToPosition(n.Offset, target); err != nil {
			return err
		}
	}
	return nil
}

// --- finalize -------------------------------------------------------

// Finalize flushes any pending cache entry, resolves literal-pool
// fixups, and returns the completed literal array plus the boundary
// between identifier entries and general literal entries.
func (e *Emitter) Finalize() (literals []Literal, identEnd int) {
	e.flushCache()
	identEnd = len(e.identOrder)
	identLiterals := make([]Literal, identEnd)
	for i, name := range e.identOrder {
		identLiterals[i] = Literal{Type: LiteralString, String: name}
	}
	for _, site := range e.literalFixups {
		idx := int(uint16FromBytes(e.code[site:]))
		putUint16(e.code[site:], uint16(idx+identEnd))
	}
	return append(identLiterals, e.interner.Literals()...), identEnd
}

// Code returns the emitted instruction stream so far. Valid only after
// Finalize (or another explicit Flush) has committed the cache.
func (e *Emitter) Code() []byte { return e.code }

// Lines returns the accumulated line table.
func (e *Emitter) Lines() []LineEntry { return e.lines }

// InternString interns a general (non-identifier) string literal and
// returns the index to pass to EmitLiteral.
func (e *Emitter) InternString(s string) int { return e.interner.InternString(s) }

// InternNumber interns a numeric literal.
func (e *Emitter) InternNumber(n float64) int { return e.interner.InternNumber(n) }

// InternFunction interns a nested function's compiled body.
func (e *Emitter) InternFunction(fn *CompiledCode) int { return e.interner.InternFunction(fn) }

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func uint16FromBytes(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
