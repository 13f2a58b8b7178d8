package cfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-bytecode-flow/pkg/types"
)

func linearMethod() *types.Method {
	return types.NewBuilder("Test", "linear", "()V", types.AccStatic).
		Label("a").
		Field(types.GETSTATIC, "java/lang/System", "out", "Ljava/io/PrintStream;").
		Ldc(types.StringConst("Hello")).
		Invoke(types.INVOKEVIRTUAL, "java/io/PrintStream", "println", "(Ljava/lang/String;)V").
		Insn(types.NOP).
		Insn(types.NOP).
		Label("b").
		MustBuild()
}

func ifMethod() *types.Method {
	return types.NewBuilder("Test", "ifCond", "(Z)V", types.AccStatic).
		Params("skip").
		Label("a").
		VarNamed(types.ILOAD, "skip").
		Jump(types.IFNE, "end").
		Field(types.GETSTATIC, "java/lang/System", "out", "Ljava/io/PrintStream;").
		Ldc(types.StringConst("Flag is true")).
		Invoke(types.INVOKEVIRTUAL, "java/io/PrintStream", "println", "(Ljava/lang/String;)V").
		Label("end").
		Insn(types.NOP).
		MustBuild()
}

func switchMethod() *types.Method {
	return types.NewBuilder("Test", "switchMethod", "(I)V", types.AccStatic).
		Params("value").
		Label("start").
		VarNamed(types.ILOAD, "value").
		TableSwitch(0, "d", "a", "b", "c").
		Label("a").Insn(types.RETURN).
		Label("b").Insn(types.RETURN).
		Label("c").Insn(types.RETURN).
		Label("d").Insn(types.RETURN).
		Label("end").Insn(types.NOP).Insn(types.NOP).Insn(types.NOP).
		MustBuild()
}

func tryCatchMethod() *types.Method {
	return types.NewBuilder("Test", "tryCatch", "()V", types.AccStatic).
		TryCatch("a", "b", "c", "*").
		Label("a").Insn(types.NOP).Insn(types.NOP).Insn(types.NOP).
		Label("b").Jump(types.GOTO, "end").
		Label("c").VarNamed(types.ASTORE, "ex").
		Label("end").Insn(types.RETURN).
		MustBuild()
}

func tryCatchInsideMethod() *types.Method {
	return types.NewBuilder("Test", "tryCatch", "(Z)V", types.AccStatic).
		Params("flag").
		TryCatch("tryStart", "tryEnd", "tryHandler", "*").
		Label("tryStart").
		VarNamed(types.ILOAD, "flag").
		Jump(types.IFNE, "skip").
		Insn(types.NOP).
		Label("skip").
		Label("tryEnd").
		Jump(types.GOTO, "end").
		Label("tryHandler").
		VarNamed(types.ASTORE, "ex").
		Label("end").
		Insn(types.RETURN).
		MustBuild()
}

func TestBuild_Linear(t *testing.T) {
	g, err := Build(linearMethod())
	require.NoError(t, err)
	require.Len(t, g.Blocks, 1)
	assert.Equal(t, 5, g.Blocks[0].Len())
	assert.Equal(t, BlockTypeEntry, g.Blocks[0].Type)
	assert.Empty(t, g.Blocks[0].Edges)
	assert.Equal(t, 1, g.CyclomaticComplexity())
}

func TestBuild_If(t *testing.T) {
	g, err := Build(ifMethod())
	require.NoError(t, err)
	require.Len(t, g.Blocks, 3)

	assert.Equal(t, 2, g.Blocks[0].Len())
	assert.Equal(t, 3, g.Blocks[1].Len())
	assert.Equal(t, 1, g.Blocks[2].Len())

	assert.Equal(t, []Edge{
		{From: 0, To: 2, Type: EdgeTypeJump},
		{From: 0, To: 1, Type: EdgeTypeFallthrough},
	}, g.Blocks[0].Edges)
	assert.Equal(t, []Edge{{From: 1, To: 2, Type: EdgeTypeFallthrough}}, g.Blocks[1].Edges)
	assert.Empty(t, g.Blocks[2].Edges)
	assert.Equal(t, BlockTypeEntry, g.Blocks[0].Type)
	assert.Equal(t, []int{0, 1}, g.Predecessors(2))
	assert.Equal(t, 2, g.CyclomaticComplexity())
}

func TestBuild_Switch(t *testing.T) {
	g, err := Build(switchMethod())
	require.NoError(t, err)
	require.Len(t, g.Blocks, 6)

	lens := make([]int, len(g.Blocks))
	for i, b := range g.Blocks {
		lens[i] = b.Len()
	}
	assert.Equal(t, []int{2, 1, 1, 1, 1, 3}, lens)

	assert.Equal(t, []Edge{
		{From: 0, To: 1, Type: EdgeTypeSwitchCase, Key: 0},
		{From: 0, To: 2, Type: EdgeTypeSwitchCase, Key: 1},
		{From: 0, To: 3, Type: EdgeTypeSwitchCase, Key: 2},
		{From: 0, To: 4, Type: EdgeTypeSwitchDefault},
	}, g.Blocks[0].Edges)
	for _, b := range g.Blocks[1:5] {
		assert.Equal(t, BlockTypeReturn, b.Type)
		assert.Empty(t, b.Edges)
	}
	assert.Empty(t, g.Predecessors(5), "padding after the returns is unreachable")
}

func TestBuild_LookupSwitch(t *testing.T) {
	m := types.NewBuilder("Test", "lookup", "(I)V", types.AccStatic).
		Insn(types.ILOAD).
		LookupSwitch("d", []int32{10, 20, 10}, []string{"a", "b", "a"}).
		Label("a").Insn(types.RETURN).
		Label("b").Insn(types.RETURN).
		Label("d").Insn(types.RETURN).
		MustBuild()

	g, err := Build(m)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{From: 0, To: 1, Type: EdgeTypeSwitchCase, Key: 10},
		{From: 0, To: 2, Type: EdgeTypeSwitchCase, Key: 20},
		{From: 0, To: 1, Type: EdgeTypeSwitchCase, Key: 10},
		{From: 0, To: 3, Type: EdgeTypeSwitchDefault},
	}, g.Blocks[0].Edges)
	assert.Len(t, g.EdgesBetween(0, 1), 2, "duplicate edges are kept")
	assert.Equal(t, []int{1, 2, 3}, g.Blocks[0].Successors())
}

func TestBuild_TryCatch(t *testing.T) {
	g, err := Build(tryCatchMethod())
	require.NoError(t, err)
	require.Len(t, g.Blocks, 4)

	try, gotoBlock, handler, end := g.Blocks[0], g.Blocks[1], g.Blocks[2], g.Blocks[3]
	assert.Equal(t, 3, try.Len())
	assert.Equal(t, BlockTypeHandler, handler.Type)

	require.Len(t, try.Edges, 2)
	assert.Equal(t, EdgeTypeException, try.Edges[0].Type, "exception edges come first")
	assert.Equal(t, handler.ID, try.Edges[0].To)
	assert.Equal(t, "java/lang/Throwable", try.Edges[0].Try.Type)
	assert.Equal(t, EdgeTypeFallthrough, try.Edges[1].Type)

	assert.Empty(t, g.EdgesBetween(gotoBlock.ID, handler.ID), "the try end is exclusive")
	assert.Equal(t, []Edge{{From: 1, To: 3, Type: EdgeTypeJump}}, gotoBlock.Edges)
	assert.Empty(t, end.Edges)
	assert.Equal(t, []TryRange{{Index: 0, Start: 0, End: 3, Handler: 4, Type: "java/lang/Throwable"}}, g.TryRanges)
}

func TestBuild_TryCatchWithInsideBlocks(t *testing.T) {
	g, err := Build(tryCatchInsideMethod())
	require.NoError(t, err)

	handler, ok := g.Block(4)
	require.True(t, ok)
	assert.Equal(t, BlockTypeHandler, handler.Type)

	inside := 0
	for _, b := range g.Blocks {
		covered := b.Start < 3
		exc := 0
		for _, e := range b.Edges {
			if e.Type == EdgeTypeException {
				exc++
				assert.Equal(t, handler.ID, e.To)
			}
		}
		if covered {
			inside++
			assert.Equal(t, 1, exc, "block %d is inside the try range", b.ID)
			assert.Equal(t, EdgeTypeException, b.Edges[0].Type)
		} else {
			assert.Zero(t, exc, "block %d is outside the try range", b.ID)
		}
	}
	assert.Equal(t, 2, inside)
}

func TestBuild_NestedTryRanges(t *testing.T) {
	m := types.NewBuilder("Test", "nested", "()V", types.AccStatic).
		TryCatch("a", "b", "h1", "java/io/IOException").
		TryCatch("a", "b", "h2", "java/lang/Exception").
		TryCatch("a", "b", "h1", "java/lang/RuntimeException").
		Label("a").Insn(types.NOP).
		Label("b").Insn(types.RETURN).
		Label("h1").Insn(types.ATHROW).
		Label("h2").Insn(types.ATHROW).
		MustBuild()

	g, err := Build(m)
	require.NoError(t, err)
	edges := g.Blocks[0].Edges
	require.Len(t, edges, 4)
	assert.Equal(t, "java/io/IOException", edges[0].Try.Type)
	assert.Equal(t, "java/lang/Exception", edges[1].Try.Type)
	assert.Equal(t, "java/lang/RuntimeException", edges[2].Try.Type)
	assert.Equal(t, EdgeTypeFallthrough, edges[3].Type)
	assert.Len(t, g.EdgesBetween(0, 2), 2)
	assert.Equal(t, BlockTypeHandler, g.Blocks[3].Type)
}

func TestBuild_UnreferencedLabelsDoNotSplit(t *testing.T) {
	m := types.NewBuilder("Test", "labels", "()V", types.AccStatic).
		Label("x").Insn(types.NOP).
		Label("y").Insn(types.NOP).
		Label("z").Insn(types.RETURN).
		MustBuild()
	g, err := Build(m)
	require.NoError(t, err)
	assert.Len(t, g.Blocks, 1)
}

func TestBuild_EmptyTryRangeIgnored(t *testing.T) {
	m := types.NewBuilder("Test", "empty", "()V", types.AccStatic).
		TryCatch("a", "a", "h", "").
		Label("a").Insn(types.NOP).
		Insn(types.RETURN).
		Label("h").Insn(types.ATHROW).
		MustBuild()
	g, err := Build(m)
	require.NoError(t, err)
	assert.Empty(t, g.TryRanges)
	assert.Len(t, g.Blocks, 2, "the return still ends a block")
	assert.Empty(t, g.Predecessors(1))
}

func TestBuild_EmptyMethod(t *testing.T) {
	m := types.NewBuilder("Test", "abstract", "()V", types.AccAbstract).MustBuild()
	g, err := Build(m)
	require.NoError(t, err)
	assert.Empty(t, g.Blocks)
	assert.Equal(t, 0, g.CyclomaticComplexity())
	_, ok := g.BlockAt(0)
	assert.False(t, ok)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		m    *types.Method
		want string
	}{
		{
			name: "unknown jump label",
			m:    types.NewBuilder("T", "m", "()V", types.AccStatic).Jump(types.GOTO, "nowhere").MustBuild(),
			want: "unknown label",
		},
		{
			name: "jump to end of method",
			m:    types.NewBuilder("T", "m", "()V", types.AccStatic).Jump(types.GOTO, "end").Label("end").MustBuild(),
			want: "past the last instruction",
		},
		{
			name: "unknown switch label",
			m:    types.NewBuilder("T", "m", "()V", types.AccStatic).Insn(types.ICONST_0).TableSwitch(0, "d", "a").Label("d").Insn(types.RETURN).MustBuild(),
			want: "unknown label",
		},
		{
			name: "inverted try range",
			m: types.NewBuilder("T", "m", "()V", types.AccStatic).TryCatch("b", "a", "a", "").
				Label("a").Insn(types.NOP).Label("b").Insn(types.RETURN).MustBuild(),
			want: "after end",
		},
		{
			name: "unknown try label",
			m:    types.NewBuilder("T", "m", "()V", types.AccStatic).TryCatch("a", "b", "h", "").Label("a").Insn(types.RETURN).MustBuild(),
			want: "unknown label",
		},
		{
			name: "label outside method",
			m:    &types.Method{Labels: map[string]int{"x": 4}, Instructions: []types.Instruction{{Op: types.RETURN}}},
			want: "outside the method",
		},
		{
			name: "switch without operands",
			m:    &types.Method{Instructions: []types.Instruction{{Op: types.ICONST_0}, {Op: types.TABLESWITCH}}},
			want: "missing switch operands",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.m)
			require.Error(t, err)
			_, ok := types.AsAnalysisError(err)
			assert.True(t, ok)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuild_Partition(t *testing.T) {
	methods := []*types.Method{
		linearMethod(), ifMethod(), switchMethod(), tryCatchMethod(), tryCatchInsideMethod(),
	}
	for _, m := range methods {
		t.Run(m.Name, func(t *testing.T) {
			g, err := Build(m)
			require.NoError(t, err)

			next := 0
			for i, b := range g.Blocks {
				assert.Equal(t, i, b.ID)
				assert.Equal(t, next, b.Start, "blocks are contiguous and ordered")
				assert.Greater(t, b.End, b.Start, "blocks are non-empty")
				next = b.End
				for off := b.Start; off < b.End; off++ {
					got, ok := g.BlockAt(off)
					require.True(t, ok)
					assert.Equal(t, b.ID, got.ID)
				}
			}
			assert.Equal(t, len(m.Instructions), next, "blocks cover every instruction")
		})
	}
}

func TestBuild_ExceptionEdgeProperty(t *testing.T) {
	for _, m := range []*types.Method{tryCatchMethod(), tryCatchInsideMethod()} {
		g, err := Build(m)
		require.NoError(t, err)
		for _, r := range g.TryRanges {
			handler, _ := g.BlockAt(r.Handler)
			for _, b := range g.Blocks {
				overlaps := b.Start < r.End && r.Start < b.End
				has := false
				for _, e := range g.EdgesBetween(b.ID, handler.ID) {
					if e.Type == EdgeTypeException {
						has = true
					}
				}
				assert.Equal(t, overlaps, has, "%s block %d", m.Name, b.ID)
			}
		}
	}
}

func TestToDot(t *testing.T) {
	g, err := Build(tryCatchMethod())
	require.NoError(t, err)
	dot := g.ToDot()

	assert.True(t, strings.HasPrefix(dot, `digraph "tryCatch" {`))
	assert.Contains(t, dot, `0 -> 2 [label="catch java/lang/Throwable", style=dashed, color=red];`)
	assert.Contains(t, dot, `1 -> 3 [label="jump"];`)
	assert.Contains(t, dot, `0: nop`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))

	g, err = Build(switchMethod())
	require.NoError(t, err)
	dot = g.ToDot()
	assert.Contains(t, dot, `0 -> 1 [label="case 0"];`)
	assert.Contains(t, dot, `0 -> 4 [label="default"];`)
}
