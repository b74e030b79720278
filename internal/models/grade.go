package models

// Grade is a letter grade recorded on a completed enrollment.
type Grade string

// Letter grades from best to worst.
const (
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeCPlus Grade = "C+"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// gradeRank orders grades so that a higher rank means a better grade.
var gradeRank = map[Grade]int{
	GradeF:     0,
	GradeD:     1,
	GradeC:     2,
	GradeCPlus: 3,
	GradeB:     4,
	GradeBPlus: 5,
	GradeA:     6,
}

// Known reports whether the grade is a recognised letter grade.
func (g Grade) Known() bool {
	_, ok := gradeRank[g]
	return ok
}

// AtLeast reports whether g meets or exceeds the minimum grade.
// Unknown grades never satisfy a minimum.
func (g Grade) AtLeast(min Grade) bool {
	gr, ok := gradeRank[g]
	if !ok {
		return false
	}
	mr, ok := gradeRank[min]
	if !ok {
		return false
	}
	return gr >= mr
}
