package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/gophotobooth/internal/backend/commands"
	"github.com/jo-hoe/gophotobooth/internal/backend/database"
	"github.com/jo-hoe/gophotobooth/internal/core"
	"github.com/jo-hoe/gophotobooth/internal/printing"
	"github.com/labstack/echo/v4"
)

const mimePNG = "image/png"

type APIService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

type photoRequest struct {
	Src     string `json:"src" validate:"required"`
	Filter  string `json:"filter" validate:"omitempty,oneof=none sepia grayscale vintage fade"`
	Frame   string `json:"frame" validate:"omitempty,oneof=none classic black pink blue"`
	Caption string `json:"caption" validate:"max=120"`
}

type printRequest struct {
	Copies int `json:"copies" validate:"omitempty,min=1,max=10"`
}

type venueRequest struct {
	Name           string `json:"name" validate:"omitempty,max=100"`
	Logo           string `json:"logo" validate:"omitempty,url"`
	PrimaryColor   string `json:"primaryColor" validate:"omitempty,hexcolor"`
	SecondaryColor string `json:"secondaryColor" validate:"omitempty,hexcolor"`
	ContactEmail   string `json:"contactEmail" validate:"omitempty,email"`
}

type photoResponse struct {
	ID        string    `json:"id"`
	Src       string    `json:"src"`
	Thumbnail string    `json:"thumbnail"`
	Filter    string    `json:"filter"`
	Frame     string    `json:"frame"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"createdAt"`
}

type venueResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Logo           string `json:"logo"`
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	ContactEmail   string `json:"contactEmail"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
		config:      config,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	api := e.Group("/api")

	api.GET("/printers", s.listPrintersHandler)
	api.POST("/printers/scan", s.scanPrintersHandler)
	api.POST("/printers/:id/connect", s.connectPrinterHandler)
	api.POST("/printers/:id/disconnect", s.disconnectPrinterHandler)
	api.GET("/print/status", s.printStatusHandler)

	api.POST("/photos", s.createPhotoHandler)
	api.GET("/photos", s.listPhotosHandler)
	api.GET("/photos/:id", s.getPhotoHandler)
	api.GET("/photos/:id/image", s.getPhotoImageHandler)
	api.DELETE("/photos/:id", s.deletePhotoHandler)
	api.POST("/photos/:id/print", s.printPhotoHandler)
	api.GET("/options", s.editOptionsHandler)

	api.GET("/venue", s.getVenueHandler)
	api.PUT("/venue", s.updateVenueHandler)

	api.GET("/analytics", s.analyticsHandler)
}

func (s *APIService) listPrintersHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.coreService.Printers())
}

func (s *APIService) scanPrintersHandler(ctx echo.Context) error {
	devices, err := s.coreService.ScanPrinters(ctx.Request().Context(), ctx.QueryParam("type"))
	if err != nil {
		return toHTTPError("scanPrintersHandler", err)
	}
	return ctx.JSON(http.StatusOK, devices)
}

func (s *APIService) connectPrinterHandler(ctx echo.Context) error {
	device, err := s.coreService.ConnectPrinter(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return toHTTPError("connectPrinterHandler", err)
	}
	return ctx.JSON(http.StatusOK, device)
}

func (s *APIService) disconnectPrinterHandler(ctx echo.Context) error {
	if err := s.coreService.DisconnectPrinter(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return toHTTPError("disconnectPrinterHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) printStatusHandler(ctx echo.Context) error {
	setNoCache(ctx)
	return ctx.JSON(http.StatusOK, s.coreService.PrintStatus())
}

func (s *APIService) createPhotoHandler(ctx echo.Context) error {
	var req photoRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to parse request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}

	photo, err := s.coreService.CreatePhoto(ctx.Request().Context(), core.PhotoRequest{
		Src:     req.Src,
		Filter:  req.Filter,
		Frame:   req.Frame,
		Caption: req.Caption,
	})
	if err != nil {
		return toHTTPError("createPhotoHandler", err)
	}
	return ctx.JSON(http.StatusCreated, toPhotoResponse(photo))
}

func (s *APIService) listPhotosHandler(ctx echo.Context) error {
	photos, err := s.coreService.GetPhotos(ctx.Request().Context())
	if err != nil {
		return toHTTPError("listPhotosHandler", err)
	}
	out := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, toPhotoResponse(p))
	}
	setNoCache(ctx)
	return ctx.JSON(http.StatusOK, out)
}

func (s *APIService) getPhotoHandler(ctx echo.Context) error {
	photo, err := s.coreService.GetPhoto(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return toHTTPError("getPhotoHandler", err)
	}
	return ctx.JSON(http.StatusOK, toPhotoResponse(photo))
}

// getPhotoImageHandler serves the processed PNG, or a thumbnail with ?thumb=true
func (s *APIService) getPhotoImageHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	var image []byte
	var err error
	if ctx.QueryParam("thumb") == "true" {
		image, err = s.coreService.GetPhotoThumbnail(ctx.Request().Context(), id)
	} else {
		image, err = s.coreService.GetPhotoImage(ctx.Request().Context(), id)
	}
	if err != nil {
		return toHTTPError("getPhotoImageHandler", err)
	}
	if len(image) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "image not available")
	}
	return ctx.Blob(http.StatusOK, mimePNG, image)
}

func (s *APIService) deletePhotoHandler(ctx echo.Context) error {
	if err := s.coreService.DeletePhoto(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return toHTTPError("deletePhotoHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) printPhotoHandler(ctx echo.Context) error {
	var req printRequest
	if ctx.Request().ContentLength > 0 {
		if err := ctx.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "failed to parse request body")
		}
		if err := ctx.Validate(&req); err != nil {
			return err
		}
	}

	status, err := s.coreService.PrintPhoto(ctx.Request().Context(), ctx.Param("id"), req.Copies)
	if err != nil {
		return toHTTPError("printPhotoHandler", err)
	}
	return ctx.JSON(http.StatusOK, status)
}

func (s *APIService) editOptionsHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string][]string{
		"filters": commands.FilterNames(),
		"frames":  commands.FrameNames(),
	})
}

func (s *APIService) getVenueHandler(ctx echo.Context) error {
	venue, err := s.coreService.GetVenue(ctx.Request().Context())
	if err != nil {
		return toHTTPError("getVenueHandler", err)
	}
	return ctx.JSON(http.StatusOK, toVenueResponse(venue))
}

func (s *APIService) updateVenueHandler(ctx echo.Context) error {
	var req venueRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to parse request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return err
	}
	venue, err := s.coreService.UpdateVenue(ctx.Request().Context(), core.VenueUpdate{
		Name:           req.Name,
		Logo:           req.Logo,
		PrimaryColor:   req.PrimaryColor,
		SecondaryColor: req.SecondaryColor,
		ContactEmail:   req.ContactEmail,
	})
	if err != nil {
		return toHTTPError("updateVenueHandler", err)
	}
	return ctx.JSON(http.StatusOK, toVenueResponse(venue))
}

func (s *APIService) analyticsHandler(ctx echo.Context) error {
	data, err := s.coreService.GetAnalytics(ctx.Request().Context())
	if err != nil {
		return toHTTPError("analyticsHandler", err)
	}
	setNoCache(ctx)
	return ctx.JSON(http.StatusOK, data)
}

// toHTTPError maps domain errors onto status codes and logs the failure
func toHTTPError(handler string, err error) *echo.HTTPError {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, printing.ErrDeviceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, printing.ErrMalformedBitmap):
		status = http.StatusBadRequest
	case errors.Is(err, printing.ErrPrinterBusy),
		errors.Is(err, printing.ErrConnectReplaced),
		errors.Is(err, printing.ErrNoActiveDevice),
		errors.Is(err, printing.ErrDeviceLeased):
		status = http.StatusConflict
	case handler == "printPhotoHandler" || handler == "connectPrinterHandler":
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		slog.Error(fmt.Sprintf("%s: request failed", handler), "status", status, "error", err)
	} else {
		slog.Warn(fmt.Sprintf("%s: request rejected", handler), "status", status, "error", err)
	}
	return echo.NewHTTPError(status, err.Error())
}

func toPhotoResponse(p *database.Photo) photoResponse {
	src := fmt.Sprintf("/api/photos/%s/image", p.ID)
	return photoResponse{
		ID:        p.ID,
		Src:       src,
		Thumbnail: src + "?thumb=true",
		Filter:    p.Filter,
		Frame:     p.Frame,
		Caption:   p.Caption,
		CreatedAt: time.UnixMilli(p.CreatedAt).UTC(),
	}
}

func toVenueResponse(v *database.Venue) venueResponse {
	return venueResponse{
		ID:             v.ID,
		Name:           v.Name,
		Logo:           v.Logo,
		PrimaryColor:   v.PrimaryColor,
		SecondaryColor: v.SecondaryColor,
		ContactEmail:   v.ContactEmail,
	}
}

func setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}
