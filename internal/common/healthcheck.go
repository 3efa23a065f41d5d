package common

import (
	"context"
	"net/http"

	"github.com/nomcebo/bankauth/params"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Pinger reports whether an external collaborator is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StartHealthCheckServer serves the liveness and readiness probes on a
// side listener. Readiness covers all three collaborators the gateway
// cannot serve without: MySQL, Redis and the identity provider.
func StartHealthCheckServer(ctx context.Context, done chan struct{}, rdb redis.UniversalClient, db *gorm.DB, idp Pinger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReady(r.Context(), rdb, db, idp); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    params.HealthCheckServerAddr,
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		server.Shutdown(context.Background())
		close(done)
	case <-serverErr:
		close(done)
	}
}

func checkReady(ctx context.Context, rdb redis.UniversalClient, db *gorm.DB, idp Pinger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	return idp.Ping(ctx)
}
