package space

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/pkg/apperror"
)

var (
	ErrNotFound = apperror.New(http.StatusNotFound, "SpaceNotFound", "study space not found")
)

// StudySpace represents a bookable physical room.
// Spaces are maintained by administrative tooling and are read-only here.
type StudySpace struct {
	ID          string
	SpaceID     string // Human-readable name, unique within building/level
	Building    string
	Campus      string
	Level       string
	Capacity    int
	IsAvailable bool // Administrative on/off switch
	CreatedAt   time.Time
}

// Offerable reports whether the space may be shown or booked.
func (s *StudySpace) Offerable() bool {
	return s.IsAvailable
}

// Filter defines parameters for listing study spaces.
type Filter struct {
	Building      string
	Campus        string
	Level         string
	AvailableOnly bool
	Page          int
	PageSize      int
}
