package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// Pagination limits for GET /api/v1/birds.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// BirdResponse is the API view of a record.
type BirdResponse struct {
	ID             uint    `json:"id"`
	Genus          string  `json:"genus"`
	Species        string  `json:"species"`
	Subspecies     *string `json:"subspecies"`
	EnglishName    string  `json:"english_name"`
	Family         *string `json:"family"`
	DisplayName    string  `json:"display_name"`
	ScientificName string  `json:"scientific_name"`
}

// BirdRequest is the body of POST and PUT. Blank optional fields are stored
// as null.
type BirdRequest struct {
	Genus       string `json:"genus"`
	Species     string `json:"species"`
	Subspecies  string `json:"subspecies"`
	EnglishName string `json:"english_name"`
	Family      string `json:"family"`
}

// PaginatedResponse is a page of records.
type PaginatedResponse struct {
	Results     []BirdResponse `json:"results"`
	Total       int64          `json:"total"`
	Pages       int            `json:"pages"`
	CurrentPage int            `json:"current_page"`
}

// NewBirdResponse converts a record for output.
func NewBirdResponse(b *entities.Bird) BirdResponse {
	parts := b.Parts()
	return BirdResponse{
		ID:             b.ID,
		Genus:          b.Genus,
		Species:        b.Species,
		Subspecies:     b.Subspecies,
		EnglishName:    b.EnglishName,
		Family:         b.Family,
		DisplayName:    b.DisplayName(),
		ScientificName: parts.ScientificName(),
	}
}

// apply copies the request onto b and normalizes it.
func (r *BirdRequest) apply(b *entities.Bird) {
	b.Genus = r.Genus
	b.Species = r.Species
	b.Subspecies = entities.OptionalString(r.Subspecies)
	b.EnglishName = r.EnglishName
	b.Family = entities.OptionalString(r.Family)
	b.Normalize()
}

func (c *Controller) initBirdRoutes(g *echo.Group) {
	write := c.writeMiddleware()

	g.GET("/birds", c.ListBirds)
	// Registered before /birds/:id; echo prefers static segments anyway.
	g.GET("/birds/filters", c.GetFilters)
	g.GET("/birds/:id", c.GetBird)
	g.POST("/birds", c.CreateBird, write...)
	g.PUT("/birds/:id", c.UpdateBird, write...)
	g.DELETE("/birds/:id", c.DeleteBird, write...)
}

// ListBirds handles GET /api/v1/birds
func (c *Controller) ListBirds(ctx echo.Context) error {
	page, err := intParam(ctx, "page", 1)
	if err != nil || page < 1 {
		return c.HandleError(ctx, err, "page must be a positive integer", http.StatusBadRequest)
	}
	perPage, err := intParam(ctx, "per_page", DefaultPerPage)
	if err != nil {
		return c.HandleError(ctx, err, "per_page must be an integer", http.StatusBadRequest)
	}
	perPage = min(max(perPage, 1), MaxPerPage)

	query := strings.TrimSpace(ctx.QueryParam("q"))
	filters := repository.NewFilters().
		WithGenus(ctx.QueryParam("genus")).
		WithSpecies(ctx.QueryParam("species")).
		WithOrder(ctx.QueryParam("order"))

	reqCtx := ctx.Request().Context()
	total, err := c.Repo.Count(reqCtx, query, filters)
	if err != nil {
		return c.HandleRepoError(ctx, err, "Failed to count birds")
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))

	// A page past the end is empty; it never reaches the database.
	var found []entities.Bird
	if page <= pages {
		found, err = c.Repo.Find(reqCtx, query, filters.WithPage(page, perPage))
		if err != nil {
			return c.HandleRepoError(ctx, err, "Failed to search birds")
		}
	}

	results := make([]BirdResponse, 0, len(found))
	for i := range found {
		results = append(results, NewBirdResponse(&found[i]))
	}

	return ctx.JSON(http.StatusOK, PaginatedResponse{
		Results:     results,
		Total:       total,
		Pages:       max(pages, 1),
		CurrentPage: page,
	})
}

// GetBird handles GET /api/v1/birds/:id
func (c *Controller) GetBird(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid bird ID", http.StatusBadRequest)
	}

	bird, err := c.Repo.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleRepoError(ctx, err, "Failed to get bird")
	}
	return ctx.JSON(http.StatusOK, NewBirdResponse(bird))
}

// CreateBird handles POST /api/v1/birds
func (c *Controller) CreateBird(ctx echo.Context) error {
	var req BirdRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	var bird entities.Bird
	req.apply(&bird)
	if err := bird.Validate(); err != nil {
		return c.HandleRepoError(ctx, err, "Invalid bird")
	}
	if err := c.Repo.Create(ctx.Request().Context(), &bird); err != nil {
		return c.HandleRepoError(ctx, err, "Failed to create bird")
	}

	c.logger.Info("bird created",
		logger.Uint("id", bird.ID),
		logger.String("name", bird.DisplayName()))
	return ctx.JSON(http.StatusCreated, NewBirdResponse(&bird))
}

// UpdateBird handles PUT /api/v1/birds/:id. The body replaces every field.
func (c *Controller) UpdateBird(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid bird ID", http.StatusBadRequest)
	}

	var req BirdRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	bird, err := c.Repo.Get(reqCtx, id)
	if err != nil {
		return c.HandleRepoError(ctx, err, "Failed to get bird")
	}

	req.apply(bird)
	if err := bird.Validate(); err != nil {
		return c.HandleRepoError(ctx, err, "Invalid bird")
	}
	if err := c.Repo.Update(reqCtx, bird); err != nil {
		return c.HandleRepoError(ctx, err, "Failed to update bird")
	}
	return ctx.JSON(http.StatusOK, NewBirdResponse(bird))
}

// DeleteBird handles DELETE /api/v1/birds/:id
func (c *Controller) DeleteBird(ctx echo.Context) error {
	id, err := idParam(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid bird ID", http.StatusBadRequest)
	}

	if err := c.Repo.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleRepoError(ctx, err, "Failed to delete bird")
	}

	c.logger.Info("bird deleted", logger.Uint("id", id))
	return ctx.NoContent(http.StatusNoContent)
}

// GetFilters handles GET /api/v1/birds/filters
func (c *Controller) GetFilters(ctx echo.Context) error {
	response := make(map[string][]string, 2)
	for _, field := range []repository.FilterField{repository.FieldGenus, repository.FieldSpecies} {
		values, err := c.Repo.DistinctValues(ctx.Request().Context(), field)
		if err != nil {
			return c.HandleRepoError(ctx, err, "Failed to load filter values")
		}
		if values == nil {
			values = []string{}
		}
		response[string(field)] = values
	}
	return ctx.JSON(http.StatusOK, response)
}

func idParam(ctx echo.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Newf("invalid id %q", ctx.Param("id")).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(id), nil
}

// intParam parses an optional integer query parameter.
func intParam(ctx echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(ctx.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Newf("invalid %s %q", name, raw).
			Component("api").
			Category(errors.CategoryValidation).
			Context("parameter", name).
			Build()
	}
	return v, nil
}
