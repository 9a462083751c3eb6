// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"roadside/internal/http/handlers"
	"roadside/internal/http/middleware"
	"roadside/internal/infra"
	"roadside/internal/modules/notify"
)

type RouterDeps struct {
	Booking  handlers.BookingService
	Hub      *notify.Hub
	Verifier infra.TokenVerifier
	Log      logrus.FieldLogger
}

func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	authed := r.Group("/", middleware.Auth(deps.Verifier))

	bookingHandler := handlers.NewBookingHandler(deps.Booking, deps.Log)
	authed.POST("/booking/request", bookingHandler.CreateRequest)
	authed.GET("/booking/request/:id", bookingHandler.GetRequest)
	authed.GET("/booking/request/:id/mechanics", bookingHandler.ListMechanics)
	authed.POST("/booking/mechanic/response", bookingHandler.Respond)
	authed.POST("/booking/confirm", bookingHandler.Confirm)

	if deps.Hub != nil {
		socketHandler := handlers.NewSocketHandler(deps.Hub, deps.Log)
		authed.GET("/ws/mechanics/:id", socketHandler.Mechanic)
	}
	return r, nil
}
