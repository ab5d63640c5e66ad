package compiler

import "github.com/obastemur/cbcc/internal/cbc"

// Kind tags one statement-stack frame. spec.md §3 describes the source's
// paged byte buffer of {payload, tag} pairs; §9 suggests the idiomatic
// replacement is a tagged variant stored in a growable vector, which is
// what Frame below is.
type Kind int

const (
	KindStart Kind = iota
	KindBlock
	KindLabel
	KindIf
	KindElse
	KindSwitch
	KindDoWhile
	KindWhile
	KindFor
	KindForIn
	KindWith
	KindTry
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "START"
	case KindBlock:
		return "BLOCK"
	case KindLabel:
		return "LABEL"
	case KindIf:
		return "IF"
	case KindElse:
		return "ELSE"
	case KindSwitch:
		return "SWITCH"
	case KindDoWhile:
		return "DO_WHILE"
	case KindWhile:
		return "WHILE"
	case KindFor:
		return "FOR"
	case KindForIn:
		return "FOR_IN"
	case KindWith:
		return "WITH"
	case KindTry:
		return "TRY"
	default:
		return "?"
	}
}

// TryPhase distinguishes which of a try statement's three phases a TRY
// frame is currently in (spec.md §4.3 "Try / Catch / Finally").
type TryPhase int

const (
	TryPhaseBlock TryPhase = iota
	TryPhaseCatch
	TryPhaseFinally
)

// isLoop reports whether a frame kind is a loop: the target of a bare
// `continue`, and, together with SWITCH (see isBreakTarget), of a bare
// `break` (spec.md §4.3 "Break / Continue / Labels").
func (k Kind) isLoop() bool {
	switch k {
	case KindDoWhile, KindWhile, KindFor, KindForIn:
		return true
	default:
		return false
	}
}

func (k Kind) isBreakTarget() bool {
	switch k {
	case KindSwitch, KindDoWhile, KindWhile, KindFor, KindForIn:
		return true
	default:
		return false
	}
}

// Frame is one entry of the statement stack: a sum of every variant
// spec.md §3 lists, discriminated by Kind. Unused fields for a given
// Kind simply sit at their zero value; this trades a few words of
// padding per frame for never needing an interface allocation or a
// length table to find a payload's size, which was the source's reason
// for the page/tag scheme in the first place.
type Frame struct {
	Kind Kind

	// LABEL
	LabelName string
	BreakList *cbc.BranchNode

	// IF / ELSE
	BranchToEnd int

	// Shared by every loop-bearing frame (DO_WHILE, WHILE, FOR, FOR_IN,
	// SWITCH): spec.md's LoopFrame = {break_and_continue_branch_list}.
	// SWITCH's own case-dispatch bookkeeping lives in parseSwitch's local
	// variables instead of here, since it never needs to survive a
	// recursive parseStatement call the way break/continue lists do.
	LoopList *cbc.BranchNode

	// DO_WHILE / WHILE / FOR / FOR_IN
	StartOffset  int
	ContinueTarget int

	// WITH
	WithBranch int

	// TRY
	TryPhase   TryPhase
	TryBranch  int
}

// stack is the statement stack proper: a slice of Frame with START always
// at index 0.
type stack struct {
	frames []Frame
}

func newStack() *stack {
	return &stack{frames: []Frame{{Kind: KindStart}}}
}

func (s *stack) push(f Frame) { s.frames = append(s.frames, f) }

func (s *stack) pop() Frame {
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

func (s *stack) top() *Frame { return &s.frames[len(s.frames)-1] }

func (s *stack) topKind() Kind { return s.frames[len(s.frames)-1].Kind }

func (s *stack) depth() int { return len(s.frames) }

// at returns the frame at the given depth (0 is START), for walking
// upward during break/continue/label resolution.
func (s *stack) at(i int) *Frame { return &s.frames[i] }

// findLabel walks from the top of the stack down to START looking for a
// LABEL frame with the given name, returning its depth or -1.
func (s *stack) findLabel(name string) int {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == KindLabel && s.frames[i].LabelName == name {
			return i
		}
	}
	return -1
}
