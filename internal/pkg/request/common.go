package request

import "errors"

// ByIDRequest is a common struct for endpoints that require an ID path parameter.
type ByIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// Validate performs custom validation for ByIDRequest.
func (r *ByIDRequest) Validate() error {
	return nil
}

// ListParams holds pagination query parameters shared by list endpoints.
type ListParams struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

// Validate performs custom validation for ListParams.
func (p *ListParams) Validate() error {
	if p.Page < 1 || p.PageSize < 1 {
		return errors.New("page and page_size must be positive")
	}
	return nil
}
