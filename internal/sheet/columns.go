package sheet

import "strings"

// Column arithmetic for the fixed sheet layout: every work column carries a
// status column two to its left, an error column one to its left, and a
// result column one to its right. All indices are 1-based.

// MinWorkColumn is the leftmost index a work column may occupy. Anything
// further left would push the status or error column off the sheet.
const MinWorkColumn = 3

// LetterToIndex converts an A1-style column label to its 1-based index
// (A=1, Z=26, AA=27).
func LetterToIndex(label string) (int, error) {
	if label == "" {
		return 0, &InvalidColumnLabelError{Label: label}
	}
	index := 0
	for _, r := range strings.ToUpper(label) {
		if r < 'A' || r > 'Z' {
			return 0, &InvalidColumnLabelError{Label: label}
		}
		index = index*26 + int(r-'A'+1)
	}
	return index, nil
}

// IndexToLetter converts a 1-based column index to its A1-style label.
func IndexToLetter(index int) (string, error) {
	if index < 1 {
		return "", &InvalidColumnPositionError{Column: index, Reason: "index must be >= 1"}
	}
	var b []byte
	for index > 0 {
		index--
		b = append([]byte{byte('A' + index%26)}, b...)
		index /= 26
	}
	return string(b), nil
}

// SatellitePositions computes the status, error, and result column indices
// for a work column. The work column must be at or right of MinWorkColumn.
func SatellitePositions(workColumn int) (status, errCol, result int, err error) {
	if workColumn < MinWorkColumn {
		return 0, 0, 0, &InvalidColumnPositionError{
			Column: workColumn,
			Reason: "work column must be at column 3 or later",
		}
	}
	return workColumn - 2, workColumn - 1, workColumn + 1, nil
}
