package http

import (
	"io"
	"math"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/baenkli/internal/core/domain"
)

const (
	defaultRadius = 1000.0
	maxRadius     = 50000.0
)

// ListBenchesHandler returns the bench collection, filtered by the optional
// ambiente, view, accessibility and fireplace query parameters.
func ListBenchesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter, err := domain.ParseFilter(c.Query("ambiente"), c.Query("view"), c.Query("accessibility"), c.Query("fireplace"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		benches, err := deps.Benches.List(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		benches = filter.Apply(benches)

		// Apply offset/limit pagination on the filtered list
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(benches)
		if offset >= total {
			benches = []domain.Bench{}
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			benches = benches[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: benches, Pagination: pg})
	}
}

// NearbyBenchesHandler returns benches within a radius of a point, closest first.
func NearbyBenchesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return errBadRequest(c, "lat and lng are required")
		}
		if err := (domain.GeoPoint{Lat: lat, Lng: lng}).Validate(); err != nil {
			return errBadRequest(c, err.Error())
		}
		radius := c.QueryFloat("radius", defaultRadius)
		if math.IsNaN(radius) || radius <= 0 || radius > maxRadius {
			return errBadRequest(c, "radius must be between 1 and 50000 meters")
		}
		limit := c.QueryInt("limit", 50)

		benches, err := deps.Benches.Nearby(c.UserContext(), lat, lng, radius, limit)
		if err != nil {
			return errFromDomain(c, err)
		}
		if benches == nil {
			benches = []domain.Bench{}
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(benches)
	}
}

// GetBenchHandler returns a single bench by ID.
func GetBenchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := benchID(c)
		if !ok {
			return errBadRequest(c, "bench id must be a UUID")
		}

		b, err := deps.Benches.Get(c.UserContext(), id)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(b)
	}
}

// CreateBenchHandler creates a bench from a multipart form.
func CreateBenchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pending, closeFiles, err := parseBenchForm(c)
		defer closeFiles()
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		b, err := deps.Benches.Create(c.UserContext(), pending)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/benches/" + b.ID)
		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

// UpdateBenchHandler replaces every field of a bench. Photo parts are
// optional; a missing part keeps the stored photo.
func UpdateBenchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := benchID(c)
		if !ok {
			return errBadRequest(c, "bench id must be a UUID")
		}

		pending, closeFiles, err := parseBenchForm(c)
		defer closeFiles()
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		b, err := deps.Benches.Update(c.UserContext(), id, pending)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(b)
	}
}

// DeleteBenchHandler removes a bench and its photos. The caller must confirm
// with ?confirm=true.
func DeleteBenchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := benchID(c)
		if !ok {
			return errBadRequest(c, "bench id must be a UUID")
		}
		if !c.QueryBool("confirm", false) {
			return errPreconditionRequired(c, "deleting a bench requires confirm=true")
		}

		if err := deps.Benches.DeleteByID(c.UserContext(), id); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func benchID(c *fiber.Ctx) (string, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// parseBenchForm reads the bench fields and optional photo1/photo2 parts.
// The returned func closes any opened photo files and is never nil.
func parseBenchForm(c *fiber.Ctx) (domain.PendingBench, func(), error) {
	var files []io.Closer
	closeFiles := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(c.FormValue("lat")), 64)
	if err != nil {
		return domain.PendingBench{}, closeFiles, &domain.ValidationError{Field: "lat", Message: "must be a number"}
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(c.FormValue("lng")), 64)
	if err != nil {
		return domain.PendingBench{}, closeFiles, &domain.ValidationError{Field: "lng", Message: "must be a number"}
	}

	p := domain.NewPendingBench(domain.GeoPoint{Lat: lat, Lng: lng})
	for _, r := range []struct {
		field string
		dst   *int
	}{
		{"ambiente_rating", &p.AmbienteRating},
		{"view_rating", &p.ViewRating},
		{"accessibility_rating", &p.AccessibilityRating},
	} {
		raw := strings.TrimSpace(c.FormValue(r.field))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, closeFiles, &domain.ValidationError{Field: r.field, Message: "must be an integer"}
		}
		*r.dst = v
	}

	if raw := strings.TrimSpace(c.FormValue("fireplace")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, closeFiles, &domain.ValidationError{Field: "fireplace", Message: "must be true or false"}
		}
		p.Fireplace = v
	}
	p.Description = c.FormValue("description")

	for _, slot := range []struct {
		field string
		dst   **domain.PhotoFile
	}{
		{"photo1", &p.Photo1},
		{"photo2", &p.Photo2},
	} {
		fh, err := c.FormFile(slot.field)
		if err != nil || fh == nil || fh.Size == 0 {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return p, closeFiles, &domain.ValidationError{Field: slot.field, Message: "unreadable upload"}
		}
		files = append(files, f)
		*slot.dst = photoFile(fh, f)
	}

	return p, closeFiles, p.Validate()
}

func photoFile(fh *multipart.FileHeader, f multipart.File) *domain.PhotoFile {
	return &domain.PhotoFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}
}
