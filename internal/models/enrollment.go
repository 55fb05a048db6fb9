package models

import "time"

// Enrollment registers a student to a course.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"courseId"`
	StudentID string    `db:"student_id" json:"studentId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// EnrollmentDetail enriches Enrollment with the student's name.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"studentName"`
	StudentEmail string `db:"student_email" json:"studentEmail"`
}
