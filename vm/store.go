package vm

import (
	"sort"

	"github.com/chazu/blockjit/block"
	"github.com/chazu/blockjit/compiler"
)

// ---------------------------------------------------------------------------
// Variable and list lookup
// ---------------------------------------------------------------------------

// store resolves variable and list references against a target and the
// stage: by id on the target, then by id on the stage, then by name in
// the same order. Unresolved references are created on the target.
// Resolved references are cached per run.
type store struct {
	target *block.Target
	stage  *block.Target

	vars  map[string]*block.Variable
	lists map[string]*block.List
}

func newStore(target, stage *block.Target) *store {
	if stage == target {
		stage = nil
	}
	return &store{
		target: target,
		stage:  stage,
		vars:   make(map[string]*block.Variable),
		lists:  make(map[string]*block.List),
	}
}

func (s *store) scopes() []*block.Target {
	if s.stage == nil {
		return []*block.Target{s.target}
	}
	return []*block.Target{s.target, s.stage}
}

func (s *store) variable(r *compiler.Ref) *block.Variable {
	if v, ok := s.vars[r.ID]; ok {
		return v
	}
	v := s.findVariable(r)
	s.vars[r.ID] = v
	return v
}

func (s *store) findVariable(r *compiler.Ref) *block.Variable {
	for _, t := range s.scopes() {
		if v, ok := t.Variables[r.ID]; ok {
			return v
		}
	}
	for _, t := range s.scopes() {
		for _, id := range sortedIDs(t.Variables) {
			if v := t.Variables[id]; v.Name == r.Name {
				return v
			}
		}
	}
	v := &block.Variable{ID: r.ID, Name: r.Name, Value: 0.0}
	s.target.Variables[r.ID] = v
	return v
}

func (s *store) list(r *compiler.Ref) *block.List {
	if l, ok := s.lists[r.ID]; ok {
		return l
	}
	l := s.findList(r)
	s.lists[r.ID] = l
	return l
}

func (s *store) findList(r *compiler.Ref) *block.List {
	for _, t := range s.scopes() {
		if l, ok := t.Lists[r.ID]; ok {
			return l
		}
	}
	for _, t := range s.scopes() {
		for _, id := range sortedIDs(t.Lists) {
			if l := t.Lists[id]; l.Name == r.Name {
				return l
			}
		}
	}
	l := &block.List{ID: r.ID, Name: r.Name, Value: []interface{}{}}
	s.target.Lists[r.ID] = l
	return l
}

// sortedIDs gives name lookup a fixed order when two entries share a
// name.
func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
