package compiler

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
)

// TestEndToEndScenarios snapshots the disassembly of the concrete
// source -> emission scenarios named in the compiler's emission spec, one
// snapshot per scenario so a regression in any single case shows up as a
// single failing snapshot rather than one large diff.
func TestEndToEndScenarios(t *testing.T) {
	scenarios := []struct {
		name string
		src  string
	}{
		{"var_decl_fused_assign", "var x = 1 + 2;"},
		{"while_true_folds_condition", "while(1){}"},
		{"if_else_branches", "if(a)b;else c;"},
		{"for_break_past_update", "for(var i=0;i<3;i++)break;"},
		{"try_catch_finally_context", "try{}catch(e){}finally{}"},
		{"switch_case_break_then_default", "switch(x){case 1:break;default:}"},
	}

	for _, sc := range scenarios {
		sc := sc
		t.Run(sc.name, func(t *testing.T) {
			code := mustCompile(t, sc.src)
			snaps.MatchSnapshot(t, sc.name, disassemble(code))
		})
	}
}
