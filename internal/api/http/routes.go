package httpapi

import (
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/bike-occupancy/internal/occupancy"
)

var validate = validator.New()

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *occupancy.Service) {
	app.Post("/upload", func(c *fiber.Ctx) error {
		res, err := service.Upload(c.UserContext(), "upload", c.Body())
		if err != nil {
			if errors.Is(err, occupancy.ErrMalformedBatch) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to ingest document")
		}

		return c.JSON(fiber.Map{
			"status":    "ok",
			"saved":     res.Saved,
			"timestamp": res.Timestamp,
			"accepted":  res.Accepted,
			"skipped":   res.Skipped,
		})
	})

	app.Get("/data/:timestamp", func(c *fiber.Ctx) error {
		raw, err := url.PathUnescape(c.Params("timestamp"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		ts, err := occupancy.ParseTimestamp(raw, service.Location())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(service.SnapshotAt(ts))
	})

	app.Get("/range", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c, service.Location()); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return c.JSON(service.Range(req.StationID, req.Start, req.End))
	})

	api := app.Group("/api")

	api.Get("/hourly_avg/:station_id", func(c *fiber.Ctx) error {
		return c.JSON(service.HourlyAverage(stationParam(c)))
	})

	api.Get("/hourly_delta/:station_id", func(c *fiber.Ctx) error {
		return c.JSON(service.HourlyDelta(stationParam(c)))
	})

	api.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(service.Stations())
	})
}

func stationParam(c *fiber.Ctx) string {
	raw := c.Params("station_id")
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}

// rangeQuery holds query parameters for the range endpoint.
type rangeQuery struct {
	StationID string    `validate:"required"`
	Start     time.Time `validate:"required"`
	End       time.Time `validate:"required,gtefield=Start"`
}

func (q *rangeQuery) bind(c *fiber.Ctx, loc *time.Location) error {
	q.StationID = c.Query("station_id")

	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		return errors.New("start and end query parameters are required")
	}

	start, err := occupancy.ParseTimestamp(startStr, loc)
	if err != nil {
		return err
	}
	end, err := occupancy.ParseTimestamp(endStr, loc)
	if err != nil {
		return err
	}

	q.Start = start
	q.End = end
	return nil
}
