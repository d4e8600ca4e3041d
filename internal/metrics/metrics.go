package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Uploads counts successful object uploads.
	Uploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudbucket_uploads_total",
		Help: "Number of objects successfully uploaded.",
	})

	// Downloads counts streamed object downloads, split by access path.
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudbucket_downloads_total",
		Help: "Number of objects streamed to clients.",
	}, []string{"path"})

	// StoreDivergence counts detected disagreements between the object
	// store and the metadata store, labelled by the operation that hit one.
	StoreDivergence = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudbucket_store_divergence_total",
		Help: "Detected divergences between object store and metadata store.",
	}, []string{"op"})
)

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
