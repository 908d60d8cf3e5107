package cache

import (
	"fmt"
	"time"
)

const redisDefaultTimeout = 5 * time.Second

const boardPrefix = "grades:board"

// BoardKey addresses the cached grade board of one student and academic year.
func BoardKey(studentID, academicYear string) string {
	return fmt.Sprintf("%s:%s:%s", boardPrefix, studentID, academicYear)
}

// StudentBoardsPattern matches every cached board of a student.
func StudentBoardsPattern(studentID string) string {
	return fmt.Sprintf("%s:%s:*", boardPrefix, studentID)
}
