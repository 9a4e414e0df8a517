package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hellobirdie/hellobirdie/internal/birds"
)

// FormatNameResponse is returned by GET /api/v1/names/format.
type FormatNameResponse struct {
	DisplayName    string `json:"display_name"`
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
}

func (c *Controller) initNameRoutes(g *echo.Group) {
	g.GET("/names/format", c.FormatName)
}

// FormatName handles GET /api/v1/names/format. Genus, species and
// english_name are required; subspecies is optional.
func (c *Controller) FormatName(ctx echo.Context) error {
	parts := birds.NameParts{
		Genus:       ctx.QueryParam("genus"),
		Species:     ctx.QueryParam("species"),
		Subspecies:  ctx.QueryParam("subspecies"),
		EnglishName: ctx.QueryParam("english_name"),
	}

	display, err := c.formatter.Format(parts)
	if err != nil {
		return c.HandleRepoError(ctx, err, "genus, species and english_name are required")
	}

	return ctx.JSON(http.StatusOK, FormatNameResponse{
		DisplayName:    display,
		ScientificName: parts.ScientificName(),
		CommonName:     birds.CommonName(parts.EnglishName),
	})
}
