// Package diffhandler dispatches a sorted stream of OSM objects to
// capability-based handlers, each item wrapped with its predecessor and
// successor in the same type run — the same windowed view
// diff_handler.hpp builds with DiffNode/DiffWay/DiffRelation, adapted to
// Go's "do you implement this interface" capability pattern instead of
// C++ template duck-typing.
package diffhandler

import (
	"github.com/paulmach/osm"
)

// ObjectType is the kind of OSM primitive an Item wraps.
type ObjectType int

const (
	TypeNode ObjectType = iota
	TypeWay
	TypeRelation
)

// Item is one entry in the diff stream: exactly one of Node/Way/Rel is
// set, matching Type.
type Item struct {
	Type ObjectType
	ID   int64
	Node *osm.Node
	Way  *osm.Way
	Rel  *osm.Relation
}

// DiffNode is a node together with its immediate same-id-run neighbors.
// Prev/Cur/Next collapse to the same pointer at a run boundary, exactly
// as apply_item_recurse does when prev's or next's (type, id) differ
// from the current item's.
type DiffNode struct{ Prev, Cur, Next *osm.Node }

// DiffWay is the way analog of DiffNode.
type DiffWay struct{ Prev, Cur, Next *osm.Way }

// DiffRelation is the relation analog of DiffNode.
type DiffRelation struct{ Prev, Cur, Next *osm.Relation }

// NodeHandler, WayHandler, and RelationHandler are the per-kind
// capability interfaces: a handler implements only the ones it cares
// about, exactly as the original's DiffHandler base class gives every
// method a no-op default.
type NodeHandler interface{ HandleNode(DiffNode) error }
type WayHandler interface{ HandleWay(DiffWay) error }
type RelationHandler interface{ HandleRelation(DiffRelation) error }

// Lifecycle hooks fire on type-run transitions; a handler implements
// whichever subset it needs.
type InitHandler interface{ Init() error }
type DoneHandler interface{ Done() error }
type BeforeNodesHandler interface{ BeforeNodes() error }
type AfterNodesHandler interface{ AfterNodes() error }
type BeforeWaysHandler interface{ BeforeWays() error }
type AfterWaysHandler interface{ AfterWays() error }
type BeforeRelationsHandler interface{ BeforeRelations() error }
type AfterRelationsHandler interface{ AfterRelations() error }

// Apply walks items in order, dispatching each to every handler that
// implements the matching capability interface, firing before/after
// lifecycle hooks whenever the type run changes — the Go shape of
// apply_before_and_after_recurse + apply_item_recurse.
func Apply(items []Item, handlers ...interface{}) error {
	if len(items) == 0 {
		return fireTransition(-1, -1, handlers)
	}

	lastType := -1
	for i, cur := range items {
		if lastType != int(cur.Type) {
			if err := fireTransition(lastType, int(cur.Type), handlers); err != nil {
				return err
			}
			lastType = int(cur.Type)
		}

		prev := cur
		if i > 0 && items[i-1].Type == cur.Type && items[i-1].ID == cur.ID {
			prev = items[i-1]
		}
		next := cur
		if i+1 < len(items) && items[i+1].Type == cur.Type && items[i+1].ID == cur.ID {
			next = items[i+1]
		}

		if err := fireItem(prev, cur, next, handlers); err != nil {
			return err
		}
	}

	return fireTransition(lastType, -1, handlers)
}

func fireTransition(last, current int, handlers []interface{}) error {
	for _, h := range handlers {
		if err := fireAfter(last, h); err != nil {
			return err
		}
	}
	for _, h := range handlers {
		if err := fireBefore(current, h); err != nil {
			return err
		}
	}
	return nil
}

func fireAfter(last int, h interface{}) error {
	switch ObjectType(last) {
	case -1:
		if ih, ok := h.(InitHandler); ok {
			return ih.Init()
		}
	case TypeNode:
		if ah, ok := h.(AfterNodesHandler); ok {
			return ah.AfterNodes()
		}
	case TypeWay:
		if ah, ok := h.(AfterWaysHandler); ok {
			return ah.AfterWays()
		}
	case TypeRelation:
		if ah, ok := h.(AfterRelationsHandler); ok {
			return ah.AfterRelations()
		}
	}
	return nil
}

func fireBefore(current int, h interface{}) error {
	switch ObjectType(current) {
	case -1:
		if dh, ok := h.(DoneHandler); ok {
			return dh.Done()
		}
	case TypeNode:
		if bh, ok := h.(BeforeNodesHandler); ok {
			return bh.BeforeNodes()
		}
	case TypeWay:
		if bh, ok := h.(BeforeWaysHandler); ok {
			return bh.BeforeWays()
		}
	case TypeRelation:
		if bh, ok := h.(BeforeRelationsHandler); ok {
			return bh.BeforeRelations()
		}
	}
	return nil
}

func fireItem(prev, cur, next Item, handlers []interface{}) error {
	for _, h := range handlers {
		switch cur.Type {
		case TypeNode:
			if nh, ok := h.(NodeHandler); ok {
				if err := nh.HandleNode(DiffNode{Prev: prev.Node, Cur: cur.Node, Next: next.Node}); err != nil {
					return err
				}
			}
		case TypeWay:
			if wh, ok := h.(WayHandler); ok {
				if err := wh.HandleWay(DiffWay{Prev: prev.Way, Cur: cur.Way, Next: next.Way}); err != nil {
					return err
				}
			}
		case TypeRelation:
			if rh, ok := h.(RelationHandler); ok {
				if err := rh.HandleRelation(DiffRelation{Prev: prev.Rel, Cur: cur.Rel, Next: next.Rel}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
