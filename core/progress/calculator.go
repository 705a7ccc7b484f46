package progress

// Calculate returns round(100 * completed / total), rounding half up; 0 when the course has no lessons.
// completed is clamped to [0, total].
func Calculate(total, completed int) int {
	if total <= 0 {
		return 0
	}
	if completed < 0 {
		completed = 0
	} else if completed > total {
		completed = total
	}
	// floor(100c/t + 1/2) in integers
	return (200*completed + total) / (2 * total)
}

// Summary is a computed progress snapshot of an enrollment.
type Summary struct {
	EnrollmentID     string           `json:"enrollment_id"`
	TotalLessons     int              `json:"total_lessons"`
	CompletedLessons int              `json:"completed_lessons"`
	Progress         int              `json:"progress"`
	Lessons          []LessonProgress `json:"lessons,omitempty"`
}

func NewSummary(enrollmentID string, total, completed int) Summary {
	return Summary{
		EnrollmentID:     enrollmentID,
		TotalLessons:     total,
		CompletedLessons: completed,
		Progress:         Calculate(total, completed),
	}
}
