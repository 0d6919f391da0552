package dataset

import "fmt"

// CheckCompatibility implements spec.md 4.10's compatibility rule: a
// candidate schema is compatible with the active schema iff no *exposed*
// column of the active schema is missing or changed in type in the
// candidate. Unexposed columns may be freely removed or retyped.
func CheckCompatibility(active, candidate []Column) (bool, []string) {
	candidateByName := make(map[string]Column, len(candidate))
	for _, c := range candidate {
		candidateByName[c.Name] = c
	}

	var violations []string
	for _, activeCol := range active {
		if !activeCol.Exposed {
			continue
		}
		candidateCol, ok := candidateByName[activeCol.Name]
		if !ok {
			violations = append(violations, fmt.Sprintf("exposed column %q removed", activeCol.Name))
			continue
		}
		if candidateCol.Type != activeCol.Type {
			violations = append(violations, fmt.Sprintf("exposed column %q type changed from %q to %q", activeCol.Name, activeCol.Type, candidateCol.Type))
		}
	}

	return len(violations) == 0, violations
}
