package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/actuallystonmai/content-roulette/internal/domain"
	"github.com/actuallystonmai/content-roulette/internal/logging"
	"github.com/actuallystonmai/content-roulette/internal/pool"
	"github.com/actuallystonmai/content-roulette/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// ContentService is satisfied by *catalog.Service.
type ContentService interface {
	Discover(ctx context.Context, kind domain.MediaKind, f domain.Filters, page int, sortBy string) (*domain.Page, error)
	SearchByTitle(ctx context.Context, query string, kind domain.MediaKind) ([]domain.Item, error)
	SearchActors(ctx context.Context, name string) ([]domain.Person, error)
	SearchByActorName(ctx context.Context, name string, kind domain.MediaKind) (*domain.ActorResults, error)
	GetDetails(ctx context.Context, id int64, kind domain.MediaKind) (*domain.Item, error)
	NewReleases(ctx context.Context, kind domain.MediaKind, year, month int) ([]domain.Item, error)
	ComingSoon(ctx context.Context, kind domain.MediaKind) ([]domain.Item, error)
	LeavingSoon(ctx context.Context, kind domain.MediaKind) ([]domain.Item, error)
	ByDateRange(ctx context.Context, kind domain.MediaKind, start, end string) ([]domain.Item, error)
}

// SessionService is satisfied by *service.Service.
type SessionService interface {
	Draw(ctx context.Context, sessionID string, sel pool.Selection) (domain.Item, error)
	Reset(ctx context.Context, sessionID string) error
	Seen(ctx context.Context, sessionID string) (int, error)
	Library(ctx context.Context, sessionID string) (*domain.Library, error)
	ToggleFavorite(ctx context.Context, sessionID string, item domain.Item) (bool, error)
	ToggleWatched(ctx context.Context, sessionID string, item domain.Item) (bool, error)
	OpenExternal(ctx context.Context, sessionID string, item domain.Item) (string, error)
	Rate(ctx context.Context, sessionID string, id int64, stars int) error
	SetMuted(ctx context.Context, sessionID string, muted bool) error
	Stats(ctx context.Context) (*service.Stats, error)
}

type Handler struct {
	content  ContentService
	sessions SessionService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandler(content ContentService, sessions SessionService) *Handler {
	return &Handler{
		content:  content,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logging.Component("handler"),
	}
}

// write JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writes JSON error response.
func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    errCode,
	})
}

// decode a JSON body and run struct validation on it
func (h *Handler) decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := h.validate.Struct(v); err != nil {
		return err
	}
	return nil
}
