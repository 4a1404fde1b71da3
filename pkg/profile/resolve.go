// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package profile

// inheritKey is the document key naming the parent profile.
const inheritKey = "_inherits"

// resolver walks an _inherits chain and produces the merged view.
//
// Documents flow through as map[string]any so the merge stays generic;
// the store decodes the final result into a Config. The loader is
// injected so the resolver never touches storage directly.
type resolver struct {
	// load returns the raw, unresolved document for one profile.
	load func(name string) (map[string]any, error)
}

// resolve returns the fully resolved document for name.
//
// # Description
//
// Parent-first recursion: the parent's resolved view is computed before
// the child is merged over it. The chain of names being resolved is
// carried down the recursion; revisiting any name in the chain fails
// with a *CycleError naming the full loop. The result is never
// persisted.
func (r *resolver) resolve(name string, chain []string) (map[string]any, error) {
	for _, visited := range chain {
		if visited == name {
			return nil, &CycleError{Chain: append(append([]string{}, chain...), name)}
		}
	}

	doc, err := r.load(name)
	if err != nil {
		return nil, err
	}

	parent, _ := doc[inheritKey].(string)
	if parent == "" {
		return doc, nil
	}

	resolvedParent, err := r.resolve(parent, append(chain, name))
	if err != nil {
		return nil, err
	}

	return mergeDocs(resolvedParent, doc), nil
}
