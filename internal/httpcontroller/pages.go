package httpcontroller

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apimw "github.com/hellobirdie/hellobirdie/internal/api/middleware"
	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

const defaultAppName = "hellobirdie"

// PageData holds the values every page layout needs.
type PageData struct {
	Title     string
	AppName   string
	CSRFToken string
	Username  string
}

// HomePageData is rendered by the home template.
type HomePageData struct {
	PageData
	Term     string
	Searched bool
	Matches  []BirdRow
}

// BirdRow is one record as shown in page listings.
type BirdRow struct {
	ID          uint
	DisplayName string
	EnglishName string
	Genus       string
	Species     string
	Subspecies  string
}

// FilterSection is one sidebar block of the admin list.
type FilterSection struct {
	Field    string
	Selected string
	Values   []string
}

// AdminListData is rendered by the admin_birds template.
type AdminListData struct {
	PageData
	Error          string
	Query          string
	Filters        *repository.Filters
	ResultCount    string
	FilterSections []FilterSection
	Rows           []BirdRow
	Page           int
	Pages          int
}

// PageURL returns the list URL for page p, keeping the search and filters.
func (d *AdminListData) PageURL(p int) string {
	v := url.Values{}
	if d.Query != "" {
		v.Set("q", d.Query)
	}
	if d.Filters != nil {
		if d.Filters.Genus != "" {
			v.Set("genus", d.Filters.Genus)
		}
		if d.Filters.Species != "" {
			v.Set("species", d.Filters.Species)
		}
	}
	v.Set("p", strconv.Itoa(p))
	return "?" + v.Encode()
}

func newBirdRow(b *entities.Bird) BirdRow {
	return BirdRow{
		ID:          b.ID,
		DisplayName: b.DisplayName(),
		EnglishName: b.EnglishName,
		Genus:       b.Genus,
		Species:     b.Species,
		Subspecies:  b.SubspeciesValue(),
	}
}

// resultCount reads "1 bird" or "N birds".
func resultCount(n int64) string {
	if n == 1 {
		return "1 bird"
	}
	return fmt.Sprintf("%d birds", n)
}

// newPageData fills the layout fields and makes sure a CSRF token exists.
func (s *Server) newPageData(c echo.Context, title string) (PageData, error) {
	token, err := apimw.EnsureCSRFToken(c)
	if err != nil {
		return PageData{}, err
	}

	name := s.Settings.Main.Name
	if name == "" {
		name = defaultAppName
	}
	return PageData{
		Title:     title,
		AppName:   name,
		CSRFToken: token,
		Username:  s.Auth.GetUsername(c),
	}, nil
}

// handleHome renders the empty search page.
func (s *Server) handleHome(c echo.Context) error {
	page, err := s.newPageData(c, "Home")
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "home", &HomePageData{PageData: page})
}

// handleHomeSearch echoes the term back and lists the first matches.
func (s *Server) handleHomeSearch(c echo.Context) error {
	page, err := s.newPageData(c, "Home")
	if err != nil {
		return err
	}

	term := strings.TrimSpace(c.FormValue("bird_name"))
	data := &HomePageData{PageData: page, Term: term, Searched: true}

	if term != "" {
		matches, err := s.Repo.Find(c.Request().Context(), term, repository.NewFilters().WithLimit(HomeMatchLimit))
		if err != nil {
			// The confirmation still renders without matches.
			s.logger.Warn("home search failed",
				logString("term", term),
				logError(err))
		}
		for i := range matches {
			data.Matches = append(data.Matches, newBirdRow(&matches[i]))
		}
	}

	return c.Render(http.StatusOK, "home", data)
}

// handleAdminList renders the searchable, filterable record list.
func (s *Server) handleAdminList(c echo.Context) error {
	ctx := c.Request().Context()

	page, err := s.newPageData(c, "Select bird to change")
	if err != nil {
		return err
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	filters := repository.NewFilters().
		WithGenus(c.QueryParam("genus")).
		WithSpecies(c.QueryParam("species"))

	pageNum := 1
	if raw := c.QueryParam("p"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageNum = n
		}
	}

	total, err := s.Repo.Count(ctx, query, filters)
	if err != nil {
		return s.pageError(err, "count")
	}

	pages := max(int(math.Ceil(float64(total)/float64(AdminPageSize))), 1)
	pageNum = min(pageNum, pages)

	birds, err := s.Repo.Find(ctx, query, filters.WithPage(pageNum, AdminPageSize))
	if err != nil {
		return s.pageError(err, "find")
	}

	data := &AdminListData{
		PageData:    page,
		Error:       c.QueryParam("error"),
		Query:       query,
		Filters:     filters,
		ResultCount: resultCount(total),
		Page:        pageNum,
		Pages:       pages,
	}
	for i := range birds {
		data.Rows = append(data.Rows, newBirdRow(&birds[i]))
	}

	for _, field := range []repository.FilterField{repository.FieldGenus, repository.FieldSpecies} {
		values, err := s.Repo.DistinctValues(ctx, field)
		if err != nil {
			return s.pageError(err, "distinct-values")
		}
		data.FilterSections = append(data.FilterSections, FilterSection{
			Field:    string(field),
			Selected: filters.Value(field),
			Values:   values,
		})
	}

	return c.Render(http.StatusOK, "admin_birds", data)
}

// handleAdminAdd creates a record from the add form.
func (s *Server) handleAdminAdd(c echo.Context) error {
	bird := entities.Bird{
		Genus:       c.FormValue("genus"),
		Species:     c.FormValue("species"),
		Subspecies:  entities.OptionalString(c.FormValue("subspecies")),
		EnglishName: c.FormValue("english_name"),
		Family:      entities.OptionalString(c.FormValue("family")),
	}
	bird.Normalize()

	err := bird.Validate()
	if err == nil {
		err = s.Repo.Create(c.Request().Context(), &bird)
	}
	if err != nil {
		s.logger.Warn("admin add failed", logError(err))
		return redirectToList(c, "Could not add bird: "+userMessage(err))
	}

	s.logger.Info("bird added from admin",
		logString("name", bird.DisplayName()),
		logString("user", s.Auth.GetUsername(c)))
	return redirectToList(c, "")
}

// handleAdminDelete removes a record.
func (s *Server) handleAdminDelete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return redirectToList(c, "Invalid bird ID")
	}

	if err := s.Repo.Delete(c.Request().Context(), uint(id)); err != nil {
		s.logger.Warn("admin delete failed",
			logString("id", c.Param("id")),
			logError(err))
		return redirectToList(c, "Could not delete bird: "+userMessage(err))
	}

	s.logger.Info("bird deleted from admin",
		logString("id", c.Param("id")),
		logString("user", s.Auth.GetUsername(c)))
	return redirectToList(c, "")
}

func redirectToList(c echo.Context, message string) error {
	target := adminListURL
	if message != "" {
		target += "?" + url.Values{"error": {message}}.Encode()
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// userMessage keeps database details out of the page.
func userMessage(err error) string {
	switch {
	case errors.IsValidation(err):
		return err.Error()
	case errors.IsNotFound(err):
		return "not found"
	case errors.IsCategory(err, errors.CategoryConflict):
		return "a bird with this name already exists"
	default:
		return "internal error"
	}
}

func (s *Server) pageError(err error, operation string) error {
	s.logger.Error("admin list failed",
		logString("operation", operation),
		logError(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to load birds")
}
