package auth

import "github.com/gin-gonic/gin"

const (
	studentIDKey = "studentID"
	roleKey      = "role"
)

// GetStudentID returns the authenticated student's ID or empty string.
func GetStudentID(c *gin.Context) string {
	if v, ok := c.Get(studentIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRole returns the authenticated caller's role or empty string.
func GetRole(c *gin.Context) string {
	if v, ok := c.Get(roleKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
