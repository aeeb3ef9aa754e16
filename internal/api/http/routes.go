package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
	"github.com/skycal/celestial-data-aggregation/internal/celestial/orchestrator"
	"github.com/skycal/celestial-data-aggregation/internal/location"
)

var validate = validator.New()

// Deps bundles what the HTTP layer needs.
type Deps struct {
	Service    *orchestrator.Service
	Resolver   *location.Resolver
	Generative celestial.GenerativeProvider
	Sessions   *celestial.SessionManager
	ViewState  *celestial.ViewStateController
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/celestial/snapshot", func(c *fiber.Ctx) error {
		req, err := parseSnapshotQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		date, err := celestial.ParseDaySelection(req.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid date; use YYYY-MM-DD")
		}

		coord, place := resolveLocation(c, deps.Resolver, req)

		snapshot, err := deps.Service.Fetch(c.Context(), date, coord)
		if err != nil {
			if errors.Is(err, celestial.ErrSuperseded) {
				return fiber.NewError(fiber.StatusConflict, "query superseded by a newer selection")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to assemble snapshot")
		}
		snapshot.Place = place

		if snapshot.ImageStatus == celestial.StatusReady {
			deps.ViewState.ImageReady()
		}

		return c.JSON(snapshot)
	})

	v1.Get("/celestial/recent-images", func(c *fiber.Ctx) error {
		var req recentImagesQuery
		req.Days = c.QueryInt("days", 10)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "days must be between 1 and 30")
		}

		images := deps.Service.RecentImages()
		if len(images) > req.Days {
			images = images[len(images)-req.Days:]
		}

		deps.ViewState.LoadCompleted()

		return c.JSON(fiber.Map{
			"images": images,
		})
	})

	v1.Post("/chat/sessions", func(c *fiber.Ctx) error {
		var req sessionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var seedDate *celestial.DaySelection
		if req.Date != "" {
			date, err := celestial.ParseDaySelection(req.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid date; use YYYY-MM-DD")
			}
			seedDate = &date
		}

		var coord *celestial.Coordinate
		if req.Lat != nil && req.Lon != nil {
			resolved, _, err := deps.Resolver.Resolve(c.Context(), &celestial.Coordinate{
				Latitude:  *req.Lat,
				Longitude: *req.Lon,
			})
			if err == nil {
				coord = &resolved
			}
		}

		session := deps.Sessions.Create(deps.Generative, coord, deps.Service.HistoricalEvents())

		// Sessions opened for a date start with that date's event summary
		// as the first assistant turn. Seeding is best effort; an empty
		// log is better than blocking the session on a summary fetch.
		if seedDate != nil {
			if summary, err := deps.Service.EventSummary(c.Context(), *seedDate); err == nil {
				session.SeedAssistant(summary)
			}
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"sessionId": session.ID(),
		})
	})

	v1.Post("/chat/sessions/:id/messages", func(c *fiber.Ctx) error {
		session, ok := deps.Sessions.Get(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown session")
		}

		var req messageRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reply, err := session.Submit(c.Context(), req.Text)
		if err != nil {
			if errors.Is(err, celestial.ErrValidationRejected) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			// The user turn is kept; the failure is the caller's to see.
			return fiber.NewError(fiber.StatusBadGateway, "assistant is unavailable")
		}

		return c.JSON(fiber.Map{
			"reply": reply,
		})
	})

	v1.Get("/app/state", func(c *fiber.Ctx) error {
		state, phase := deps.ViewState.State()
		return c.JSON(fiber.Map{
			"state": state,
			"phase": phase,
		})
	})

	v1.Post("/app/auth", func(c *fiber.Ctx) error {
		var req authRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "status must be pending, signed_in or signed_out")
		}

		deps.ViewState.ResolveAuth(celestial.AuthStatus(req.Status))
		state, phase := deps.ViewState.State()
		return c.JSON(fiber.Map{"state": state, "phase": phase})
	})

	v1.Post("/app/signout", func(c *fiber.Ctx) error {
		deps.ViewState.SignOut()
		state, _ := deps.ViewState.State()
		return c.JSON(fiber.Map{"state": state})
	})

	v1.Post("/app/back", func(c *fiber.Ctx) error {
		deps.ViewState.NavigateBack()
		state, phase := deps.ViewState.State()
		return c.JSON(fiber.Map{"state": state, "phase": phase})
	})
}

// snapshotQuery holds query parameters for the snapshot endpoint. Latitude
// and longitude are optional but must be provided together.
type snapshotQuery struct {
	Date string   `validate:"required"`
	Lat  *float64 `validate:"omitempty,gte=-90,lte=90"`
	Lon  *float64 `validate:"omitempty,gte=-180,lte=180"`
}

func parseSnapshotQuery(c *fiber.Ctx) (snapshotQuery, error) {
	var q snapshotQuery

	q.Date = c.Query("date")

	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if (latStr == "") != (lonStr == "") {
		return q, errors.New("lat and lon must be provided together")
	}
	if latStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return q, errors.New("invalid lat")
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return q, errors.New("invalid lon")
		}
		q.Lat = &lat
		q.Lon = &lon
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// resolveLocation turns the optional lat/lon pair into a coordinate and a
// best-effort place name. Resolution failure leaves both absent; nothing
// downstream requires them.
func resolveLocation(c *fiber.Ctx, resolver *location.Resolver, req snapshotQuery) (*celestial.Coordinate, *celestial.PlaceName) {
	if req.Lat == nil || req.Lon == nil {
		return nil, nil
	}

	resolved, place, err := resolver.Resolve(c.Context(), &celestial.Coordinate{
		Latitude:  *req.Lat,
		Longitude: *req.Lon,
	})
	if err != nil {
		return nil, nil
	}
	return &resolved, place
}

type recentImagesQuery struct {
	Days int `validate:"gte=1,lte=30"`
}

type sessionRequest struct {
	Date string   `json:"date"`
	Lat  *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon  *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
}

type messageRequest struct {
	Text string `json:"text" validate:"required"`
}

type authRequest struct {
	Status string `json:"status" validate:"required,oneof=pending signed_in signed_out"`
}
