package handler

import (
	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/service"
)

type PageResponse struct {
	Success bool          `json:"success"`
	Results []domain.Item `json:"results"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	HasMore bool          `json:"hasMore"`
	Cached  bool          `json:"cached"`
}

type ListResponse struct {
	Success bool          `json:"success"`
	Results []domain.Item `json:"results"`
}

type ActorResponse struct {
	Success   bool          `json:"success"`
	Results   []domain.Item `json:"results"`
	ActorName string        `json:"actorName"`
}

type PeopleResponse struct {
	Success bool            `json:"success"`
	Results []domain.Person `json:"results"`
}

type ItemResponse struct {
	Success bool        `json:"success"`
	Result  domain.Item `json:"result"`
}

type StateResponse struct {
	Success bool `json:"success"`
	Seen    int  `json:"seen"`
}

type LibraryResponse struct {
	Success bool            `json:"success"`
	Library *domain.Library `json:"library"`
}

type ToggleResponse struct {
	Success bool `json:"success"`
	Added   bool `json:"added"`
}

type OpenResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type StatsResponse struct {
	Success bool           `json:"success"`
	Stats   *service.Stats `json:"stats"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}
