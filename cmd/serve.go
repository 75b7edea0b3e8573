package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve forecast results over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore()
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// segmentSummary is one row of the /api/segments listing: the raw rollup
// collapsed to a per-segment coverage summary.
type segmentSummary struct {
	SegmentID  int     `json:"segment_id"`
	Segment    string  `json:"segment_name"`
	FirstYear  int     `json:"first_year"`
	LastYear   int     `json:"last_year"`
	Employment float64 `json:"latest_employment"`
}

// newRouter builds the read-only API over the staging store.
func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/segments", func(w http.ResponseWriter, req *http.Request) {
		points, err := st.SegmentSeries(req.Context(), store.SeriesKey{})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, summarizeSegments(points))
	})

	r.Get("/api/segments/series", func(w http.ResponseWriter, req *http.Request) {
		key, err := seriesKeyFromQuery(req)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		points, err := st.SegmentSeries(req.Context(), key)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, points)
	})

	r.Get("/api/occupations/forecasts", func(w http.ResponseWriter, req *http.Request) {
		m, err := model.ParseMethodology(req.URL.Query().Get("methodology"))
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		rows, err := st.OccupationForecasts(req.Context(), m)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, rows)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			Status: model.RunStatus(req.URL.Query().Get("status")),
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil {
				respondError(w, http.StatusBadRequest, eris.Errorf("invalid limit %q", v))
				return
			}
			filter.Limit = limit
		}
		runs, err := st.ListRuns(req.Context(), filter)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		respondJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if strings.Contains(err.Error(), "run not found") {
				respondError(w, http.StatusNotFound, err)
				return
			}
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, run)
	})

	r.Get("/api/validation", func(w http.ResponseWriter, req *http.Request) {
		results, err := st.ValidationResults(req.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, results)
	})

	return r
}

// seriesKeyFromQuery resolves the attribution/growth query parameters to a
// series key. Both empty selects the raw census rollup; growth without
// attribution has no staged series and is rejected.
func seriesKeyFromQuery(req *http.Request) (store.SeriesKey, error) {
	var key store.SeriesKey
	q := req.URL.Query()

	if v := q.Get("attribution"); v != "" {
		att, err := model.ParseAttribution(v)
		if err != nil {
			return store.SeriesKey{}, err
		}
		key.Attribution = att
	}
	if v := q.Get("growth"); v != "" {
		g, err := model.ParseGrowthSource(v)
		if err != nil {
			return store.SeriesKey{}, err
		}
		key.Growth = g
	}
	if key.Growth != "" && key.Attribution == "" {
		return store.SeriesKey{}, eris.New("growth requires attribution")
	}
	return key, nil
}

// summarizeSegments collapses a series to one summary row per segment.
// Points arrive ordered by segment and year, so the last point per segment
// wins the latest-employment column.
func summarizeSegments(points []model.SegmentPoint) []segmentSummary {
	var out []segmentSummary
	index := make(map[int]int)

	for _, pt := range points {
		i, ok := index[pt.SegmentID]
		if !ok {
			index[pt.SegmentID] = len(out)
			out = append(out, segmentSummary{
				SegmentID: pt.SegmentID,
				Segment:   pt.Segment,
				FirstYear: pt.Year,
				LastYear:  pt.Year,
			})
			i = len(out) - 1
		}
		if pt.Year < out[i].FirstYear {
			out[i].FirstYear = pt.Year
		}
		if pt.Year >= out[i].LastYear {
			out[i].LastYear = pt.Year
			out[i].Employment = pt.Employment
		}
	}
	if out == nil {
		out = []segmentSummary{}
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
