package attacktree

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/adtree/internal/capec"
	"github.com/HendryAvila/adtree/internal/knowledge"
)

// ancestryStore models root(1) -> X(2) -> Y(3) -> target(4), where root
// and X declare extra children (5, 6) and Y declares none.
func ancestryStore() *knowledge.MemoryStore {
	root := pattern("1", "", rel(capec.ParentOf, "2", "5"))
	root.Abstraction = capec.AbstractionMeta
	return knowledge.NewMemoryStore(
		root,
		pattern("2", "", rel(capec.ChildOf, "1")+rel(capec.ParentOf, "6", "3")),
		pattern("3", "", rel(capec.ChildOf, "2")),
		pattern("4", oneStepFlow, rel(capec.ChildOf, "3", "99")),
		pattern("5", "", rel(capec.ChildOf, "1")),
		pattern("6", "", rel(capec.ChildOf, "2")),
	)
}

func TestReconstructAncestry(t *testing.T) {
	store := ancestryStore()
	ctx := context.Background()

	assert.Equal(t, []string{"1", "2", "3", "4"}, ReconstructAncestry(ctx, store, "CAPEC-4"))
	assert.Equal(t, []string{"1"}, ReconstructAncestry(ctx, store, "1"))
	assert.Equal(t, []string{"404"}, ReconstructAncestry(ctx, store, "404"))
}

func TestReconstructAncestry_MissingParentEndsChain(t *testing.T) {
	store := knowledge.NewMemoryStore(pattern("1", "", rel(capec.ChildOf, "77")))
	assert.Equal(t, []string{"77", "1"}, ReconstructAncestry(context.Background(), store, "1"))
}

func TestReconstructAncestry_CycleGuard(t *testing.T) {
	store := knowledge.NewMemoryStore(
		pattern("1", "", rel(capec.ChildOf, "2")),
		pattern("2", "", rel(capec.ChildOf, "1")),
	)
	assert.Equal(t, []string{"2", "1"}, ReconstructAncestry(context.Background(), store, "1"))
}

func TestGraftChain(t *testing.T) {
	store := ancestryStore()
	ctx := context.Background()

	target := newTestBuilder(t, store, nil, Options{}).Build(ctx, "4", NewTraversal()).Node
	chain := ReconstructAncestry(ctx, store, "4")
	tree := GraftChain(ctx, store, chain, target)

	assert.Equal(t, "1", tree.PatternID)
	assert.Equal(t, []string{"Pattern 2 (CAPEC-2)", "Pattern 5 (CAPEC-5)"}, labels(tree.Children))

	x := tree.Children[0]
	assert.False(t, x.Dimmed)
	placeholder := tree.Children[1]
	assert.Equal(t, KindPlaceholder, placeholder.Kind)
	assert.True(t, placeholder.Dimmed)
	assert.Empty(t, placeholder.Children)

	// X lists 6 before 3; declared order is kept.
	assert.Equal(t, []string{"6", "3"}, []string{x.Children[0].PatternID, x.Children[1].PatternID})
	assert.Equal(t, KindPlaceholder, x.Children[0].Kind)

	y := x.Children[1]
	require.Len(t, y.Children, 1, "Y declares no ParentOf edges; the chain link is added")
	assert.Same(t, target, y.Children[0])

	live := tree.Find(func(n *Node) bool { return n.Kind == KindPattern && len(n.Children) > 0 })
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{
		live[0].PatternID, live[1].PatternID, live[2].PatternID, live[3].PatternID,
	})
	assert.Equal(t, 2, tree.Count(KindPlaceholder))
}

func TestGraftChain_DeduplicatesChainLink(t *testing.T) {
	store := knowledge.NewMemoryStore(
		pattern("1", "", rel(capec.ParentOf, "2", "2")),
		pattern("2", "", rel(capec.ChildOf, "1")),
	)
	target := &Node{Kind: KindPattern, PatternID: "2", Label: "target"}
	tree := GraftChain(context.Background(), store, []string{"1", "2"}, target)

	require.Len(t, tree.Children, 1)
	assert.Same(t, target, tree.Children[0])
}

func TestGraftChain_SingleElementIsIdentity(t *testing.T) {
	target := &Node{Kind: KindPattern, PatternID: "4"}
	assert.Same(t, target, GraftChain(context.Background(), knowledge.NewMemoryStore(), []string{"4"}, target))
}

func TestSynthesize_AncestryNotReexpandedBelowItself(t *testing.T) {
	store := knowledge.NewMemoryStore(
		pattern("2", "", rel(capec.ParentOf, "4")),
		pattern("4", oneStepFlow, rel(capec.ChildOf, "2")+rel(capec.CanFollow, "2")),
	)
	s, _ := newTestSynthesizer(store, nil, Options{})

	syn, err := s.Synthesize(context.Background(), "4", SynthesisOptions{WithAncestry: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, syn.Ancestry)

	var walk func(n *Node, path []string)
	walk = func(n *Node, path []string) {
		if n.PatternID != "" && n.Kind == KindPattern {
			assert.NotContains(t, path, n.PatternID, "pattern repeats on path %v", path)
			path = append(slices.Clone(path), n.PatternID)
		}
		for _, c := range n.Children {
			walk(c, path)
		}
	}
	walk(syn.Tree, nil)

	assert.Equal(t, 2, syn.Tree.Count(KindPattern))
	assert.Contains(t, syn.Skips, SkipEvent{ID: "2", Parent: "4", Reason: SkipCycle})
}
