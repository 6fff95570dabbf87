package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nageo/backend/core/booking"
)

type bookingApi struct {
	svc      booking.Service
	validate *validator.Validate
}

func registerBookingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc booking.Service, validate *validator.Validate) {
	api := bookingApi{
		svc:      svc,
		validate: validate,
	}

	bg := g.Group("/bookings", jwt)
	bg.POST("", api.create)
	bg.GET("", api.query)
	bg.GET("/:id", api.retrieve)
	bg.GET("/:id/payment", api.retrievePayment)
	bg.POST("/:id/approve", api.approve, adminMiddleware())
	bg.POST("/:id/reject", api.reject, adminMiddleware())
	bg.POST("/:id/cancel", api.cancel)

	g.GET("/payments", api.queryPayments, jwt, adminMiddleware())
	g.GET("/notifications", api.queryNotifications, jwt, adminMiddleware())
}

// Handlers

// create submits a booking request for the authenticated user.
func (api *bookingApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data booking.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	data.RequesterID = claims.Subject
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	bkg, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, bkg)
}

func (api *bookingApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := new(booking.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []booking.Booking{})
	}
	if !claims.IsAdmin {
		// non-admins only ever see their own bookings
		filter.RequesterID = claims.Subject
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	bookings, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying bookings")
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	bkg, err := api.getVisibleBooking(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, bkg)
}

func (api *bookingApi) retrievePayment(ctx echo.Context) error {
	bkg, err := api.getVisibleBooking(ctx)
	if err != nil {
		return err
	}

	pmt, err := api.svc.PaymentForBooking(ctx.Request().Context(), bkg.ID)
	if err != nil {
		if errors.Cause(err) == booking.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding payment by booking ID")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *bookingApi) approve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data ReviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewRequest")
	}

	var notes []string
	if data.Notes != "" {
		notes = append(notes, data.Notes)
	}
	if err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"), claims.Subject, notes...); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Booking approved."})
}

func (api *bookingApi) reject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Booking rejected."})
}

func (api *bookingApi) cancel(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Booking cancelled."})
}

func (api *bookingApi) queryPayments(ctx echo.Context) error {
	filter := new(booking.PaymentQueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []booking.Payment{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	payments, err := api.svc.QueryPayments(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []booking.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *bookingApi) queryNotifications(ctx echo.Context) error {
	var query NotificationsRequest
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []booking.Notification{})
	}

	notifs, err := api.svc.Notifications(ctx.Request().Context(), query.Unread)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []booking.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

// getVisibleBooking loads the booking :id, hiding other users' bookings
// from non-admins behind a 404.
func (api *bookingApi) getVisibleBooking(ctx echo.Context) (booking.Booking, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return booking.Booking{}, errors.Wrap(err, "getting context claims")
	}

	bkg, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == booking.ErrNotFound {
			return booking.Booking{}, errHttpNotFound
		}
		return booking.Booking{}, errors.Wrap(err, "finding booking by ID")
	}
	if !claims.IsAdmin && bkg.RequesterID != claims.Subject {
		return booking.Booking{}, errHttpNotFound
	}
	return bkg, nil
}

type (
	ReviewRequest struct {
		Notes string `json:"notes"`
	}

	NotificationsRequest struct {
		Unread bool `query:"unread"`
	}
)
