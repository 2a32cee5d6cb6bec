// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package caps

import (
	"fmt"
	"strings"
)

// Violation is a requested capability no held capability covers.
type Violation struct {
	Index      int
	Capability Capability
}

// EscalationError reports every requested capability not covered by the
// requester's own list.
type EscalationError struct {
	Violations []Violation
}

func (e *EscalationError) Error() string {
	items := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		items[i] = fmt.Sprintf("#%d %v", v.Index, v.Capability)
	}
	return "capability escalation: " + strings.Join(items, ", ")
}

// CheckSubset returns the requested capabilities that no held capability covers.
func CheckSubset(requested, held List) []Violation {
	var violations []Violation
	for i, req := range requested {
		covered := false
		for _, h := range held {
			if h.Type() == req.Type() && h.Covers(req) {
				covered = true
				break
			}
		}
		if !covered {
			violations = append(violations, Violation{Index: i, Capability: req})
		}
	}
	return violations
}

// Subset returns an *EscalationError if requested is not a subset of held.
func Subset(requested, held List) error {
	if v := CheckSubset(requested, held); len(v) > 0 {
		return &EscalationError{Violations: v}
	}
	return nil
}
