// Package bptree implements a pure in-memory B+tree used as a secondary
// index: heterogeneous keys (compared numerically when both sides parse
// as numbers, lexicographically otherwise), duplicate-key collapse via
// per-key value lists, and leaf sibling pointers for ordered range scans.
package bptree

import (
	"fmt"
	"sort"
	"strconv"
)

// Row is the payload an index entry points back to — the indexed row
// itself, kept by value so range scans can hand results out directly
// without a second storage lookup.
type Row = map[string]any

// CompareKeys orders two key values the way spec.md's secondary index
// requires: try numeric coercion on both sides first, fall back to
// lexicographic string comparison only if either side fails to parse as
// a float.
func CompareKeys(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	sa, sb := toStr(a), toStr(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// leaf and inner are kept unexported; callers only see BPlusTree's
// exported search/insert API.
type leaf struct {
	keys []any
	vals [][]Row
	next *leaf
}

type inner struct {
	keys     []any
	children []node
}

type node interface{ isNode() }

func (*leaf) isNode()  {}
func (*inner) isNode() {}

// BPlusTree is order-M (at most M-1 keys, M children per internal node).
type BPlusTree struct {
	order int
	root  node
}

// New creates an empty tree of the given order (minimum 4).
func New(order int) *BPlusTree {
	if order < 4 {
		order = 4
	}
	return &BPlusTree{order: order, root: &leaf{}}
}

func (t *BPlusTree) findLeaf(key any) *leaf {
	n := t.root
	for {
		in, ok := n.(*inner)
		if !ok {
			return n.(*leaf)
		}
		i := 0
		for i < len(in.keys) && CompareKeys(key, in.keys[i]) >= 0 {
			i++
		}
		n = in.children[i]
	}
}

// SearchEq returns every row indexed under key, in insertion order.
func (t *BPlusTree) SearchEq(key any) []Row {
	lf := t.findLeaf(key)
	for i, k := range lf.keys {
		if CompareKeys(k, key) == 0 {
			return lf.vals[i]
		}
	}
	return nil
}

// SearchRange yields rows whose key lies in [low, high] (bounds
// inclusive/exclusive per inclLow/inclHigh; a nil bound is unbounded),
// walking leaf sibling pointers in ascending key order.
func (t *BPlusTree) SearchRange(low, high any, inclLow, inclHigh bool) []Row {
	n := t.root
	for {
		in, ok := n.(*inner)
		if !ok {
			break
		}
		i := 0
		if low != nil {
			for i < len(in.keys) && CompareKeys(low, in.keys[i]) >= 0 {
				i++
			}
		}
		n = in.children[i]
	}
	lf := n.(*leaf)

	var out []Row
	started := low == nil
	for lf != nil {
		for i, k := range lf.keys {
			if !started {
				c := CompareKeys(k, low)
				if c < 0 || (c == 0 && !inclLow) {
					continue
				}
				started = true
			}
			if high != nil {
				c2 := CompareKeys(k, high)
				if c2 > 0 || (c2 == 0 && !inclHigh) {
					return out
				}
			}
			out = append(out, lf.vals[i]...)
		}
		lf = lf.next
	}
	return out
}

// Insert adds row under key, appending to the existing value list if key
// is already present, then splits up the tree as needed.
func (t *BPlusTree) Insert(key any, row Row) {
	var path []*inner
	n := t.root
	for {
		in, ok := n.(*inner)
		if !ok {
			break
		}
		path = append(path, in)
		i := 0
		for i < len(in.keys) && CompareKeys(key, in.keys[i]) >= 0 {
			i++
		}
		n = in.children[i]
	}
	lf := n.(*leaf)

	i := sort.Search(len(lf.keys), func(i int) bool { return CompareKeys(lf.keys[i], key) >= 0 })
	if i < len(lf.keys) && CompareKeys(lf.keys[i], key) == 0 {
		lf.vals[i] = append(lf.vals[i], row)
	} else {
		lf.keys = append(lf.keys, nil)
		copy(lf.keys[i+1:], lf.keys[i:])
		lf.keys[i] = key
		lf.vals = append(lf.vals, nil)
		copy(lf.vals[i+1:], lf.vals[i:])
		lf.vals[i] = []Row{row}
	}
	t.splitUpwardLeaf(lf, path)
}

func (t *BPlusTree) splitUpwardLeaf(lf *leaf, path []*inner) {
	if len(lf.keys) <= t.order-1 {
		return
	}
	mid := len(lf.keys) / 2
	right := &leaf{
		keys: append([]any(nil), lf.keys[mid:]...),
		vals: append([][]Row(nil), lf.vals[mid:]...),
		next: lf.next,
	}
	lf.keys = lf.keys[:mid]
	lf.vals = lf.vals[:mid]
	lf.next = right
	sep := right.keys[0]
	t.insertToParent(lf, sep, right, path)
}

func (t *BPlusTree) insertToParent(left node, sepKey any, right node, path []*inner) {
	if len(path) == 0 {
		t.root = &inner{keys: []any{sepKey}, children: []node{left, right}}
		return
	}
	parent := path[len(path)-1]
	path = path[:len(path)-1]

	i := 0
	for i < len(parent.children) && parent.children[i] != left {
		i++
	}
	parent.keys = append(parent.keys, nil)
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = sepKey

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right

	if len(parent.keys) > t.order-1 {
		t.splitUpwardInner(parent, path)
	}
}

func (t *BPlusTree) splitUpwardInner(n *inner, path []*inner) {
	mid := len(n.keys) / 2
	sep := n.keys[mid]
	right := &inner{
		keys:     append([]any(nil), n.keys[mid+1:]...),
		children: append([]node(nil), n.children[mid+1:]...),
	}
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]
	if len(path) == 0 && n == t.root {
		t.root = &inner{keys: []any{sep}, children: []node{n, right}}
		return
	}
	t.insertToParent(n, sep, right, path)
}
