// Package rbtree implements an in-repository red-black tree keyed on a
// 16-byte value with a uint64 payload, for the Bag engine's wide-key (16
// octet) representation. This intentionally avoids wrapping a generic
// third-party tree that owns its own nodes: the nodes here are drawn from an
// internal/pool so the Bag's node
// count can be reasoned about and bounded the same way the narrow radix tree
// is.
package rbtree

import (
	"bytes"

	"github.com/movsoftware/libsilk/internal/pool"
)

type color bool

const (
	red   color = true
	black color = false
)

// Key is the 16-byte (IPv6-width) key type.
type Key [16]byte

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b,
// treating the key as a big-endian (network order) unsigned integer so
// traversal order matches ascending address order.
func Compare(a, b Key) int {
	return bytes.Compare(a[:], b[:])
}

type node struct {
	key         Key
	value       uint64
	color       color
	left, right pool.Ref
	parent      pool.Ref
}

// Tree is a red-black tree of (Key, uint64) pairs.
type Tree struct {
	nodes *pool.Pool[node]
	root  pool.Ref
	size  int
}

// New creates an empty Tree. chunkSize should be large (524288 per the
// spec's memory pool budget) since wide-key Bags are expected to grow large.
func New(chunkSize int) *Tree {
	return &Tree{nodes: pool.New[node](chunkSize)}
}

// Len returns the number of keys currently stored.
func (t *Tree) Len() int { return t.size }

func (t *Tree) get(ref pool.Ref) *node {
	if ref == 0 {
		return nil
	}
	return t.nodes.Get(ref)
}

// Find returns the value for key and true, or (0, false) if key is absent.
func (t *Tree) Find(key Key) (uint64, bool) {
	ref := t.root
	for ref != 0 {
		n := t.get(ref)
		switch c := Compare(key, n.key); {
		case c == 0:
			return n.value, true
		case c < 0:
			ref = n.left
		default:
			ref = n.right
		}
	}
	return 0, false
}

// Set inserts or updates key with value. A value of 0 is stored like any
// other value; callers that implement the Bag's "zero means absent"
// convention are expected to call Delete instead.
func (t *Tree) Set(key Key, value uint64) {
	if t.root == 0 {
		ref, n := t.nodes.Alloc()
		n.key = key
		n.value = value
		n.color = black
		t.root = ref
		t.size++
		return
	}

	ref := t.root
	var parentRef pool.Ref
	var wentLeft bool
	for ref != 0 {
		n := t.get(ref)
		c := Compare(key, n.key)
		if c == 0 {
			n.value = value
			return
		}
		parentRef = ref
		if c < 0 {
			ref = n.left
			wentLeft = true
		} else {
			ref = n.right
			wentLeft = false
		}
	}

	newRef, newNode := t.nodes.Alloc()
	newNode.key = key
	newNode.value = value
	newNode.color = red
	newNode.parent = parentRef

	parent := t.get(parentRef)
	if wentLeft {
		parent.left = newRef
	} else {
		parent.right = newRef
	}
	t.size++
	t.fixInsert(newRef)
}

// Delete removes key if present.
func (t *Tree) Delete(key Key) {
	ref := t.root
	for ref != 0 {
		n := t.get(ref)
		c := Compare(key, n.key)
		if c == 0 {
			t.deleteNode(ref)
			t.size--
			return
		}
		if c < 0 {
			ref = n.left
		} else {
			ref = n.right
		}
	}
}

// Each visits every (key, value) pair in ascending key order.
func (t *Tree) Each(fn func(Key, uint64) bool) {
	t.inorder(t.root, fn)
}

func (t *Tree) inorder(ref pool.Ref, fn func(Key, uint64) bool) bool {
	if ref == 0 {
		return true
	}
	n := t.get(ref)
	if !t.inorder(n.left, fn) {
		return false
	}
	if !fn(n.key, n.value) {
		return false
	}
	return t.inorder(n.right, fn)
}

// Min returns the smallest stored key, used by the sorted Bag iterator to
// find its starting point; Successor steps forward after a key is consumed.
func (t *Tree) Min() (Key, uint64, bool) {
	ref := t.root
	if ref == 0 {
		return Key{}, 0, false
	}
	for {
		n := t.get(ref)
		if n.left == 0 {
			return n.key, n.value, true
		}
		ref = n.left
	}
}

// Successor returns the smallest stored key strictly greater than key.
func (t *Tree) Successor(key Key) (Key, uint64, bool) {
	ref := t.root
	var candidate pool.Ref
	for ref != 0 {
		n := t.get(ref)
		if Compare(n.key, key) > 0 {
			candidate = ref
			ref = n.left
		} else {
			ref = n.right
		}
	}
	if candidate == 0 {
		return Key{}, 0, false
	}
	n := t.get(candidate)
	return n.key, n.value, true
}

// --- rotations & fixups -----------------------------------------------------

func (t *Tree) rotateLeft(xRef pool.Ref) {
	x := t.get(xRef)
	yRef := x.right
	y := t.get(yRef)

	x.right = y.left
	if y.left != 0 {
		t.get(y.left).parent = xRef
	}
	y.parent = x.parent
	if x.parent == 0 {
		t.root = yRef
	} else {
		p := t.get(x.parent)
		if p.left == xRef {
			p.left = yRef
		} else {
			p.right = yRef
		}
	}
	y.left = xRef
	x.parent = yRef
}

func (t *Tree) rotateRight(xRef pool.Ref) {
	x := t.get(xRef)
	yRef := x.left
	y := t.get(yRef)

	x.left = y.right
	if y.right != 0 {
		t.get(y.right).parent = xRef
	}
	y.parent = x.parent
	if x.parent == 0 {
		t.root = yRef
	} else {
		p := t.get(x.parent)
		if p.right == xRef {
			p.right = yRef
		} else {
			p.left = yRef
		}
	}
	y.right = xRef
	x.parent = yRef
}

func (t *Tree) fixInsert(zRef pool.Ref) {
	for {
		z := t.get(zRef)
		if z.parent == 0 {
			break
		}
		parent := t.get(z.parent)
		if parent.color == black {
			break
		}

		grandparentRef := parent.parent
		grandparent := t.get(grandparentRef)

		if grandparent.left == z.parent {
			uncleRef := grandparent.right
			uncle := t.get(uncleRef)
			if uncle != nil && uncle.color == red {
				parent.color = black
				uncle.color = black
				grandparent.color = red
				zRef = grandparentRef
				continue
			}
			if parent.right == zRef {
				zRef = z.parent
				t.rotateLeft(zRef)
				z = t.get(zRef)
				parent = t.get(z.parent)
				grandparent = t.get(parent.parent)
			}
			parent.color = black
			grandparent.color = red
			t.rotateRight(grandparentRef)
		} else {
			uncleRef := grandparent.left
			uncle := t.get(uncleRef)
			if uncle != nil && uncle.color == red {
				parent.color = black
				uncle.color = black
				grandparent.color = red
				zRef = grandparentRef
				continue
			}
			if parent.left == zRef {
				zRef = z.parent
				t.rotateRight(zRef)
				z = t.get(zRef)
				parent = t.get(z.parent)
				grandparent = t.get(parent.parent)
			}
			parent.color = black
			grandparent.color = red
			t.rotateLeft(grandparentRef)
		}
	}
	t.get(t.root).color = black
}

func (t *Tree) transplant(uRef, vRef pool.Ref) {
	u := t.get(uRef)
	if u.parent == 0 {
		t.root = vRef
	} else {
		p := t.get(u.parent)
		if p.left == uRef {
			p.left = vRef
		} else {
			p.right = vRef
		}
	}
	if vRef != 0 {
		t.get(vRef).parent = u.parent
	}
}

func (t *Tree) minimumRef(ref pool.Ref) pool.Ref {
	n := t.get(ref)
	for n.left != 0 {
		ref = n.left
		n = t.get(ref)
	}
	return ref
}

func (t *Tree) deleteNode(zRef pool.Ref) {
	z := t.get(zRef)
	yRef := zRef
	yOriginalColor := t.get(yRef).color
	var xRef, xParent pool.Ref

	if z.left == 0 {
		xRef = z.right
		xParent = z.parent
		t.transplant(zRef, z.right)
	} else if z.right == 0 {
		xRef = z.left
		xParent = z.parent
		t.transplant(zRef, z.left)
	} else {
		yRef = t.minimumRef(z.right)
		y := t.get(yRef)
		yOriginalColor = y.color
		xRef = y.right
		if y.parent == zRef {
			xParent = yRef
		} else {
			xParent = y.parent
			t.transplant(yRef, y.right)
			y.right = z.right
			t.get(y.right).parent = yRef
		}
		t.transplant(zRef, yRef)
		y.left = z.left
		t.get(y.left).parent = yRef
		y.color = z.color
	}

	t.nodes.Free(zRef)

	if yOriginalColor == black {
		t.fixDelete(xRef, xParent)
	}
}

func (t *Tree) fixDelete(xRef, xParent pool.Ref) {
	for xRef != t.root && (xRef == 0 || t.get(xRef).color == black) {
		if xParent == 0 {
			break
		}
		parent := t.get(xParent)
		if parent.left == xRef {
			wRef := parent.right
			w := t.get(wRef)
			if w != nil && w.color == red {
				w.color = black
				parent.color = red
				t.rotateLeft(xParent)
				parent = t.get(xParent)
				wRef = parent.right
				w = t.get(wRef)
			}
			wLeft := t.get(w.left)
			wRight := t.get(w.right)
			if (wLeft == nil || wLeft.color == black) && (wRight == nil || wRight.color == black) {
				w.color = red
				xRef = xParent
				xParent = t.get(xRef).parent
				continue
			}
			if wRight == nil || wRight.color == black {
				if wLeft != nil {
					wLeft.color = black
				}
				w.color = red
				t.rotateRight(wRef)
				parent = t.get(xParent)
				wRef = parent.right
				w = t.get(wRef)
			}
			w.color = parent.color
			parent.color = black
			if w.right != 0 {
				t.get(w.right).color = black
			}
			t.rotateLeft(xParent)
			xRef = t.root
			xParent = 0
		} else {
			wRef := parent.left
			w := t.get(wRef)
			if w != nil && w.color == red {
				w.color = black
				parent.color = red
				t.rotateRight(xParent)
				parent = t.get(xParent)
				wRef = parent.left
				w = t.get(wRef)
			}
			wLeft := t.get(w.left)
			wRight := t.get(w.right)
			if (wLeft == nil || wLeft.color == black) && (wRight == nil || wRight.color == black) {
				w.color = red
				xRef = xParent
				xParent = t.get(xRef).parent
				continue
			}
			if wLeft == nil || wLeft.color == black {
				if wRight != nil {
					wRight.color = black
				}
				w.color = red
				t.rotateLeft(wRef)
				parent = t.get(xParent)
				wRef = parent.left
				w = t.get(wRef)
			}
			w.color = parent.color
			parent.color = black
			if w.left != 0 {
				t.get(w.left).color = black
			}
			t.rotateRight(xParent)
			xRef = t.root
			xParent = 0
		}
	}
	if xRef != 0 {
		t.get(xRef).color = black
	}
}
