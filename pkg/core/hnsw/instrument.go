package hnsw

import (
	"time"

	"github.com/sanonone/kektorann/pkg/metrics"
)

func (h *Index) observeInsert(start time.Time, inserted, count, top int) {
	if !h.metrics {
		return
	}
	metrics.InsertsTotal.WithLabelValues(h.cfg.Name).Add(float64(inserted))
	metrics.InsertDuration.WithLabelValues(h.cfg.Name).Observe(time.Since(start).Seconds())
	h.publishShape(count, top)
}

func (h *Index) observeSearch(start time.Time, st SearchStats) {
	if !h.metrics {
		return
	}
	metrics.SearchesTotal.WithLabelValues(h.cfg.Name).Inc()
	metrics.SearchDuration.WithLabelValues(h.cfg.Name).Observe(time.Since(start).Seconds())
	metrics.SearchDistanceEvaluations.WithLabelValues(h.cfg.Name).Observe(float64(st.DistanceEvaluations))
}

func (h *Index) publishShape(count, top int) {
	metrics.TotalVectors.WithLabelValues(h.cfg.Name).Set(float64(count))
	metrics.GraphTopLevel.WithLabelValues(h.cfg.Name).Set(float64(top))
}
