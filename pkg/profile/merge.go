// Copyright (C) 2025 Parcel Bio (eng@parcelbio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package profile

// mergeDocs deep-merges a child document over a parent document.
//
// # Description
//
// Pure function over generic JSON-shaped records. For every key in the
// union of both documents:
//
//   - both values record-like: merge recursively
//   - otherwise: the child's value wins when the key is present in the
//     child, else the parent's value is kept
//
// Arrays are atomic leaves: a child array replaces the parent array
// wholesale, there is no element-wise merge. Neither input is mutated;
// the result may share unmerged subtrees with its inputs.
func mergeDocs(parent, child map[string]any) map[string]any {
	merged := make(map[string]any, len(parent)+len(child))

	for key, parentVal := range parent {
		merged[key] = parentVal
	}

	for key, childVal := range child {
		parentVal, inParent := merged[key]
		if inParent {
			parentMap, parentIsMap := parentVal.(map[string]any)
			childMap, childIsMap := childVal.(map[string]any)
			if parentIsMap && childIsMap {
				merged[key] = mergeDocs(parentMap, childMap)
				continue
			}
		}
		merged[key] = childVal
	}

	return merged
}
