package pagination

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PageParams paging input
type PageParams struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// PageInfo paging output
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePageParams reads page and page_size from the query string.
// Malformed or out of range values fall back to the defaults.
func ParsePageParams(c *gin.Context) *PageParams {
	var p PageParams
	if err := c.ShouldBindQuery(&p); err != nil {
		p = PageParams{}
	}
	p.Page, p.PageSize = normalize(p.Page, p.PageSize)
	return &p
}

func normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Paginate gorm scope applying offset and limit for one page.
func Paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	page, pageSize = normalize(page, pageSize)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// NewPageInfo computes paging output.
func NewPageInfo(page, pageSize int, total int64) *PageInfo {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &PageInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
