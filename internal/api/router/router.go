// Package router assembles the HTTP surface of the service.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nextvisit/practice-availability/internal/directory"
	httpmiddleware "github.com/nextvisit/practice-availability/internal/http/middleware"
	"github.com/nextvisit/practice-availability/internal/inbound"
	"github.com/nextvisit/practice-availability/internal/scheduler"
	"github.com/nextvisit/practice-availability/internal/search"
	"github.com/nextvisit/practice-availability/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger           *logging.Logger
	DirectoryHandler *directory.Handler
	SearchHandler    *search.Handler
	InboundHandler   *inbound.Handler
	Notifier         *scheduler.WeeklyNotifier

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AdminAuthSecret    string
	// WebhookRatePerSec limits the public reply webhook per source IP.
	// Zero disables the limiter.
	WebhookRatePerSec float64
	WebhookBurst      int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handleHealth)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.SearchHandler != nil {
			api.Get("/search", cfg.SearchHandler.Search)
		}

		if h := cfg.DirectoryHandler; h != nil {
			api.Route("/practices", func(p chi.Router) {
				p.Get("/", h.ListPractices)
				p.Post("/", h.CreatePractice)
				p.Route("/{id}", func(one chi.Router) {
					one.Get("/", h.GetPractice)
					one.Put("/", h.UpdatePractice)
					one.Delete("/", h.DeletePractice)
					one.Put("/email", h.UpdatePracticeEmail)
				})
			})
			api.Get("/specialties", h.ListSpecialties)
			api.Route("/doctors", func(d chi.Router) {
				d.Get("/", h.ListDoctors)
				d.Post("/", h.CreateDoctor)
				d.Put("/{id}", h.UpdateDoctor)
				d.Delete("/{id}", h.DeleteDoctor)
			})
			api.Route("/appointments", func(a chi.Router) {
				a.Get("/", h.ListAppointments)
				a.Post("/", h.UpsertAppointment)
			})
		}
	})

	if cfg.InboundHandler != nil {
		if cfg.WebhookRatePerSec > 0 {
			r.With(httpmiddleware.RateLimit(cfg.WebhookRatePerSec, cfg.WebhookBurst)).
				Post("/webhook/email-reply", cfg.InboundHandler.HandleReply)
		} else {
			r.Post("/webhook/email-reply", cfg.InboundHandler.HandleReply)
		}
	}

	if cfg.Notifier != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Post("/send-weekly-emails", handleSendWeekly(cfg.Notifier, cfg.Logger))
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleSendWeekly triggers one notifier run outside the weekly schedule.
// The per-practice cooldown still applies.
func handleSendWeekly(notifier *scheduler.WeeklyNotifier, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		triggeredBy, _ := httpmiddleware.AdminSubjectFromContext(r.Context())
		logger.Info("manual weekly send triggered", "subject", triggeredBy)

		summary, err := notifier.RunOnce(r.Context())
		if err != nil {
			logger.Error("manual weekly send failed", "error", err)
			http.Error(w, "send failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{
			"practices": summary.Practices,
			"sent":      summary.Sent,
			"failed":    summary.Failed,
			"skipped":   summary.Skipped,
		})
	}
}
