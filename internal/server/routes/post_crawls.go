package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/followgraph/internal/queue"
	"github.com/OFFIS-RIT/followgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

type crawlResponse struct {
	ID      string `json:"id,omitempty"`
	Handle  string `json:"handle,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateCrawlHandler enqueues a crawl for the handle in the request body.
func CreateCrawlHandler(c echo.Context) error {
	type createCrawlBody struct {
		Handle string `json:"handle" validate:"required,handle"`
	}

	data := new(createCrawlBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, crawlResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, crawlResponse{Message: "Invalid handle"})
	}

	return enqueue(c, data.Handle)
}

// CrawlHandleHandler enqueues a crawl for the handle in the path.
func CrawlHandleHandler(c echo.Context) error {
	handle := c.Param("handle")
	if !common.ValidHandle(handle) {
		return c.JSON(http.StatusBadRequest, crawlResponse{Message: "Invalid handle"})
	}
	return enqueue(c, handle)
}

func enqueue(c echo.Context, handle string) error {
	app := c.(*middleware.AppContext).App

	msg, err := queue.EnqueueCrawl(c.Request().Context(), app.Queue, handle)
	if err != nil {
		logger.Error("[Server] Failed to enqueue crawl", "handle", handle, "err", err)
		return c.JSON(http.StatusInternalServerError, crawlResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, crawlResponse{ID: msg.ID, Handle: msg.Handle})
}
