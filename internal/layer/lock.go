/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layer

// maxLockDepth caps the parentGroup walk so cyclic or dangling chains end.
const maxLockDepth = 10

// IsEffectivelyLocked reports whether l may not be transformed: its own flag
// is set or a group reached through parentGroup links is locked. A nil layer
// is not locked. Chains that do not resolve to a root within maxLockDepth
// hops, or that reference a missing group, count as unlocked.
func IsEffectivelyLocked(l *Layer, lookup func(id string) *Layer) bool {
	if l == nil {
		return false
	}
	if l.Locked {
		return true
	}
	if lookup == nil {
		return false
	}
	cur := l
	for depth := 0; depth < maxLockDepth; depth++ {
		if cur.ParentGroup == "" {
			return false
		}
		parent := lookup(cur.ParentGroup)
		if parent == nil {
			return false
		}
		if parent.Locked {
			return true
		}
		cur = parent
	}
	return false
}
