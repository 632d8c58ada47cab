package model

import (
	"math"

	"github.com/tshev/faster-FastText/matrix"
	"github.com/tshev/faster-FastText/util"
)

func init() {
	Register("hs", NewHierarchicalSoftmax)
}

type node struct {
	parent int32
	left   int32
	right  int32
	count  int64
	binary bool
}

// HierarchicalSoftmax walks a Huffman tree built from the target counts.
// Output row i holds the parameters of internal node osz+i.
type HierarchicalSoftmax struct {
	binaryLogistic
	osz   int32
	tree  []node
	paths [][]int32
	codes [][]bool
}

func NewHierarchicalSoftmax(output matrix.Matrix, neg int, counts []int64) Loss {
	hs := &HierarchicalSoftmax{
		binaryLogistic: binaryLogistic{wo: output},
		osz:            int32(len(counts)),
	}
	hs.buildTree(counts)
	return hs
}

// buildTree merges the two lightest nodes until one root is left. counts
// must be sorted in descending order: leaves are consumed from the end
// while merged nodes are appended in increasing weight, so two cursors
// are enough.
func (hs *HierarchicalSoftmax) buildTree(counts []int64) {
	osz := hs.osz
	if osz == 0 {
		return
	}
	hs.tree = make([]node, 2*osz-1)
	for i := range hs.tree {
		hs.tree[i] = node{parent: -1, left: -1, right: -1, count: 1e15}
	}
	for i := int32(0); i < osz; i += 1 {
		hs.tree[i].count = counts[i]
	}
	leaf, next := osz-1, osz
	for i := osz; i < 2*osz-1; i += 1 {
		var mini [2]int32
		for j := 0; j < 2; j += 1 {
			if leaf >= 0 && hs.tree[leaf].count < hs.tree[next].count {
				mini[j] = leaf
				leaf -= 1
			} else {
				mini[j] = next
				next += 1
			}
		}
		hs.tree[i].left = mini[0]
		hs.tree[i].right = mini[1]
		hs.tree[i].count = hs.tree[mini[0]].count + hs.tree[mini[1]].count
		hs.tree[mini[0]].parent = i
		hs.tree[mini[1]].parent = i
		hs.tree[mini[1]].binary = true
	}
	hs.paths = make([][]int32, osz)
	hs.codes = make([][]bool, osz)
	for i := int32(0); i < osz; i += 1 {
		for j := i; hs.tree[j].parent != -1; j = hs.tree[j].parent {
			hs.paths[i] = append(hs.paths[i], hs.tree[j].parent-osz)
			hs.codes[i] = append(hs.codes[i], hs.tree[j].binary)
		}
	}
}

// CodeLength returns the depth of leaf i
func (hs *HierarchicalSoftmax) CodeLength(i int32) int {
	return len(hs.codes[i])
}

func (hs *HierarchicalSoftmax) Forward(targets []int32, targetIndex int32, state *State, lr float32, backprop bool) float32 {
	target := targets[targetIndex]
	loss := float32(0)
	path, code := hs.paths[target], hs.codes[target]
	for i := range path {
		loss += hs.forward(path[i], state, code[i], lr, backprop)
	}
	return loss
}

// Predict searches the tree depth first, cutting branches that cannot
// beat the current k-th best leaf.
func (hs *HierarchicalSoftmax) Predict(k int, threshold float32, heap *Predictions, state *State) {
	if hs.osz > 0 {
		hs.dfs(k, util.StdLog(threshold), 2*hs.osz-2, 0, heap, state.Hidden)
	}
	heap.sortDesc()
}

func (hs *HierarchicalSoftmax) dfs(k int, threshold float32, n int32, score float32, heap *Predictions, hidden matrix.Vector) {
	if score < threshold {
		return
	}
	if heap.Len() == k && score < heap.worst() {
		return
	}
	if hs.tree[n].left == -1 && hs.tree[n].right == -1 {
		heap.offer(score, n, k)
		return
	}
	f := float32(1.0 / (1.0 + math.Exp(-float64(hs.wo.DotRow(hidden, int(n-hs.osz))))))
	hs.dfs(k, threshold, hs.tree[n].left, score+util.StdLog(1.0-f), heap, hidden)
	hs.dfs(k, threshold, hs.tree[n].right, score+util.StdLog(f), heap, hidden)
}
