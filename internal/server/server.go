// Package server provides the HTTP surfaces of the voting system: the vote
// capture server and the live results server. Both are thin shells over the
// core pipeline; the interesting work happens in the queue, worker, tally,
// and broadcast packages.
package server

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

func listenAddr(port string) string {
	return fmt.Sprintf(":%s", port)
}
