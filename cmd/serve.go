package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wiesnflow/crowdgrid/internal/crowd"
	"github.com/wiesnflow/crowdgrid/internal/poi"
	"github.com/wiesnflow/crowdgrid/internal/route"
	"github.com/wiesnflow/crowdgrid/internal/wkb"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the crowd-density API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Warm start: rebuild the rolling window from stored positions.
		if n, err := replayStore(ctx, env); err != nil {
			zap.L().Warn("initial store replay failed", zap.Error(err))
		} else {
			zap.L().Info("store replayed", zap.Int("positions", n))
		}

		// Periodic refresh picks up rows written by other instances.
		refresh := time.Duration(cfg.Server.RefreshSeconds) * time.Second
		go func() {
			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := replayStore(ctx, env); err != nil {
						zap.L().Warn("store refresh failed", zap.Error(err))
					}
				}
			}
		}()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
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

// newRouter builds the HTTP API over the app environment.
func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/tiles", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Grid.FeatureCollection())
		})

		r.Get("/map", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, mapResponse{
				Counts:      env.Agg.CurrentCounts(),
				GeneratedAt: time.Now().UTC(),
			})
		})

		r.Get("/intensity", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, mapResponse{
				Counts:      crowd.Normalize(env.Agg.CurrentCounts()),
				GeneratedAt: time.Now().UTC(),
			})
		})

		r.Get("/history/{tileID}", func(w http.ResponseWriter, req *http.Request) {
			tileID := chi.URLParam(req, "tileID")

			hours := 1.0
			if raw := req.URL.Query().Get("hours"); raw != "" {
				h, err := strconv.ParseFloat(raw, 64)
				if err != nil || h <= 0 {
					writeError(w, http.StatusBadRequest, "hours must be a positive number")
					return
				}
				hours = h
			}

			trend, err := env.Agg.History(tileID, time.Duration(hours*float64(time.Hour)))
			if err != nil {
				writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tile %q", tileID))
				return
			}
			writeJSON(w, http.StatusOK, trend)
		})

		r.Get("/routes", func(w http.ResponseWriter, req *http.Request) {
			links := env.Evaluator.Evaluate(env.Venue.Stations, env.Venue.Entrances, env.Agg.CurrentCounts(), env.Venue.Adjacency)
			if links == nil {
				links = []route.EntranceLink{}
			}
			writeJSON(w, http.StatusOK, links)
		})

		r.Get("/recommendations", func(w http.ResponseWriter, req *http.Request) {
			uid := req.URL.Query().Get("uid")
			if uid == "" {
				writeError(w, http.StatusBadRequest, "uid is required")
				return
			}

			pref := poi.DefaultDistancePreference
			if raw := req.URL.Query().Get("distance_preference"); raw != "" {
				p, err := strconv.ParseFloat(raw, 64)
				if err != nil || p < 0 || p > 1 {
					writeError(w, http.StatusBadRequest, "distance_preference must be in [0,1]")
					return
				}
				pref = p
			}

			filter := poi.TypeAll
			if raw := req.URL.Query().Get("type"); raw != "" {
				filter = poi.Type(raw)
				if filter != poi.TypeAll && !filter.Valid() {
					writeError(w, http.StatusBadRequest, "type must be all, tent, roller_coaster, or food")
					return
				}
			}

			user, ok, err := latestUserPosition(req.Context(), env, uid)
			if err != nil {
				zap.L().Error("latest position lookup failed", zap.String("uid", uid), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to look up position")
				return
			}
			if !ok {
				writeError(w, http.StatusNotFound, fmt.Sprintf("no recent position for uid %q", uid))
				return
			}

			recs, err := env.Recommender.Recommend(user, env.Agg.CurrentCounts(), pref, filter, 0)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if recs == nil {
				recs = []poi.Recommendation{}
			}
			writeJSON(w, http.StatusOK, recs)
		})

		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Agg.Snapshot())
		})

		r.Post("/position", func(w http.ResponseWriter, req *http.Request) {
			var body positionRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.UID == "" {
				writeError(w, http.StatusBadRequest, "uid is required")
				return
			}

			now := time.Now().UTC()
			p := wkb.Point{Lon: body.Long, Lat: body.Lat}

			if err := env.Store.SavePosition(req.Context(), body.UID, p, now); err != nil {
				zap.L().Error("save position failed", zap.String("uid", body.UID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to persist position")
				return
			}

			env.Agg.IngestPosition(body.Long, body.Lat, now, body.UID)

			resp := positionResponse{Status: "ok"}
			if tile, ok := env.Grid.Resolve(body.Long, body.Lat); ok {
				resp.TileID = tile.ID
			}
			writeJSON(w, http.StatusOK, resp)
		})
	})

	return r
}

type positionRequest struct {
	Long float64 `json:"long"`
	Lat  float64 `json:"lat"`
	UID  string  `json:"uid"`
}

type positionResponse struct {
	Status string `json:"status"`
	TileID string `json:"tileId,omitempty"`
}

type mapResponse struct {
	Counts      map[string]int `json:"counts"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
