package server

import (
	"cloudbucket/internal/auth"
	"cloudbucket/internal/bucket"
	"cloudbucket/internal/config"
	"cloudbucket/internal/metrics"
	"cloudbucket/internal/share"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config        config.Config
	DB            *pgxpool.Pool
	ObjectStore   *minio.Client
	AuthService   *auth.Service
	BucketService *bucket.Service
	ShareService  *share.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.Middleware(deps.AuthService))

		if deps.BucketService != nil {
			bucket.RegisterRoutes(protected, deps.BucketService)
		}
		if deps.ShareService != nil {
			share.RegisterRoutes(protected, deps.ShareService)
		}
	}

	return router
}
