package web

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"
)

// Handler routes the HTTP API. hub, logs and metrics may be nil; their
// endpoints are then not registered.
func Handler(status *Status, hub *Hub, logs *LogBuffer, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/about", aboutHandler)

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}
	if hub != nil {
		mux.Handle("/ws", hub)
	}
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		snap := status.Snapshot(time.Now().UTC())
		g := snap.GPS
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>gpsreader</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>gpsreader</h1>")
		_, _ = fmt.Fprintf(w, "<p>JSON: <a href=\"/api/status\">/api/status</a>. Live updates: <code>/ws</code>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>source=%s\ndevice=%s\nvalid=%t\nlat=%.6f\nlon=%.6f\ncycles=%d\nlast_fix_utc=%s\nlast_error=%s</pre>",
			html.EscapeString(g.Source), html.EscapeString(g.Device), g.Valid, g.LatDeg, g.LonDeg,
			g.Cycles, g.LastFixUTC, html.EscapeString(g.LastError),
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
