package http

import (
	"time"

	"github.com/nekogravitycat/studyspace-booking/internal/pkg/request"
	"github.com/nekogravitycat/studyspace-booking/internal/space"
)

// ListSpacesRequest defines query parameters for listing spaces.
type ListSpacesRequest struct {
	request.ListParams
	Building      string `form:"building"`
	Campus        string `form:"campus"`
	Level         string `form:"level"`
	AvailableOnly bool   `form:"available_only"`
}

type SpaceResponse struct {
	ID          string    `json:"id"`
	SpaceID     string    `json:"space_id"`
	Building    string    `json:"building"`
	Campus      string    `json:"campus"`
	Level       string    `json:"level"`
	Capacity    int       `json:"capacity"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewSpaceResponse(s *space.StudySpace) SpaceResponse {
	return SpaceResponse{
		ID:          s.ID,
		SpaceID:     s.SpaceID,
		Building:    s.Building,
		Campus:      s.Campus,
		Level:       s.Level,
		Capacity:    s.Capacity,
		IsAvailable: s.IsAvailable,
		CreatedAt:   s.CreatedAt,
	}
}
