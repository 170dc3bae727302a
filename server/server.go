// Package server implements the content API: the composite page-data
// endpoint read by the landing page, public read and contact endpoints, and
// token protected admin endpoints for editing content.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"github.com/ledgerline/erpsite/apierror"
	"github.com/ledgerline/erpsite/content/model"
	"github.com/ledgerline/erpsite/content/store"
)

var log = logging.Logger("server")

// Server serves the content API from a content store.
type Server struct {
	adminToken  []byte
	maxBodySize int64
	router      *chi.Mux
	store       *store.Store
}

// New creates a Server that reads and writes content in st.
func New(st *store.Store, options ...Option) (*Server, error) {
	if st == nil {
		return nil, errors.New("nil content store")
	}
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	if opts.adminToken == "" {
		log.Warn("No admin token configured, admin endpoints are disabled")
	}

	s := &Server{
		adminToken:  []byte(opts.adminToken),
		maxBodySize: opts.maxBodySize,
		store:       st,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	r.Use(middleware.Timeout(opts.requestTimeout))
	for _, mw := range opts.middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/page-data", s.getPageData)
		r.Get("/hero", s.getHero)
		r.Get("/services", s.listServices)
		r.Get("/testimonials", s.listTestimonials)
		r.Post("/contact", s.createContact)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Put("/hero", s.putHero)
			r.Delete("/hero", s.deleteHero)

			r.Get("/services", s.listServices)
			r.Post("/services", s.createService)
			r.Put("/services/{id}", s.updateService)
			r.Delete("/services/{id}", s.deleteService)

			r.Get("/testimonials", s.listTestimonials)
			r.Post("/testimonials", s.createTestimonial)
			r.Put("/testimonials/{id}", s.updateTestimonial)
			r.Delete("/testimonials/{id}", s.deleteTestimonial)

			r.Get("/contacts", s.listContacts)
			r.Delete("/contacts/{id}", s.deleteContact)
		})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, apierror.Newf(http.StatusNotFound, "not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, apierror.Newf(http.StatusMethodNotAllowed, "method not allowed"))
	})

	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getPageData reads the hero, services and testimonials at the same time and
// returns them together. If any read fails the whole request fails.
func (s *Server) getPageData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		g    multierror.Group
		data model.PageData
	)
	g.Go(func() error {
		hero, err := s.store.Hero(ctx)
		if err != nil {
			return err
		}
		data.Hero = hero
		return nil
	})
	g.Go(func() error {
		services, err := s.store.ListServices(ctx)
		if err != nil {
			return err
		}
		data.Services = services
		return nil
	})
	g.Go(func() error {
		testimonials, err := s.store.ListTestimonials(ctx)
		if err != nil {
			return err
		}
		data.Testimonials = testimonials
		return nil
	})
	if err := g.Wait().ErrorOrNil(); err != nil {
		log.Errorw("Cannot read page data", "err", err, "reqID", middleware.GetReqID(ctx))
		apierror.Write(w, apierror.Newf(http.StatusInternalServerError, "cannot load page data"))
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) getHero(w http.ResponseWriter, r *http.Request) {
	hero, err := s.store.Hero(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hero)
}

func (s *Server) putHero(w http.ResponseWriter, r *http.Request) {
	var hero model.Hero
	if !s.decodeBody(w, r, &hero) {
		return
	}
	if err := s.store.PutHero(r.Context(), hero); err != nil {
		s.writeError(w, r, err)
		return
	}
	log.Infow("Hero updated", "title", hero.Title)
	writeJSON(w, http.StatusOK, hero)
}

func (s *Server) deleteHero(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteHero(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.store.ListServices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if services == nil {
		services = []model.Service{}
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *Server) createService(w http.ResponseWriter, r *http.Request) {
	var svc model.Service
	if !s.decodeBody(w, r, &svc) {
		return
	}
	svc, err := s.store.CreateService(r.Context(), svc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) updateService(w http.ResponseWriter, r *http.Request) {
	var svc model.Service
	if !s.decodeBody(w, r, &svc) {
		return
	}
	svc, err := s.store.UpdateService(r.Context(), chi.URLParam(r, "id"), svc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) deleteService(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTestimonials(w http.ResponseWriter, r *http.Request) {
	testimonials, err := s.store.ListTestimonials(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if testimonials == nil {
		testimonials = []model.Testimonial{}
	}
	writeJSON(w, http.StatusOK, testimonials)
}

func (s *Server) createTestimonial(w http.ResponseWriter, r *http.Request) {
	var t model.Testimonial
	if !s.decodeBody(w, r, &t) {
		return
	}
	t, err := s.store.CreateTestimonial(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) updateTestimonial(w http.ResponseWriter, r *http.Request) {
	var t model.Testimonial
	if !s.decodeBody(w, r, &t) {
		return
	}
	t, err := s.store.UpdateTestimonial(r.Context(), chi.URLParam(r, "id"), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTestimonial(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTestimonial(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createContact(w http.ResponseWriter, r *http.Request) {
	var c model.Contact
	if !s.decodeBody(w, r, &c) {
		return
	}
	c, err := s.store.CreateContact(r.Context(), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.Infow("Contact request received", "id", c.ID, "company", c.Company)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.store.ListContacts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin rejects requests that do not carry the admin token, either as
// a bearer token or in the X-Admin-Token header.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if auth := r.Header.Get("Authorization"); auth != "" {
			bearer, ok := strings.CutPrefix(auth, "Bearer ")
			if ok {
				token = strings.TrimSpace(bearer)
			}
		}
		if len(s.adminToken) == 0 || subtle.ConstantTimeCompare([]byte(token), s.adminToken) != 1 {
			log.Warnw("Rejected admin request", "path", r.URL.Path, "remote", r.RemoteAddr)
			apierror.Write(w, apierror.Newf(http.StatusUnauthorized, "unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierror.Write(w, apierror.Newf(http.StatusRequestEntityTooLarge, "request body too large"))
			return false
		}
		apierror.Write(w, apierror.Newf(http.StatusBadRequest, "cannot decode request body: %s", err))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		err = apierror.New(err, http.StatusNotFound)
	case errors.Is(err, model.ErrInvalid):
		err = apierror.New(err, http.StatusBadRequest)
	default:
		log.Errorw("Request failed", "err", err, "method", r.Method, "path", r.URL.Path,
			"reqID", middleware.GetReqID(r.Context()))
	}
	apierror.Write(w, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Errorw("Cannot encode response", "err", err)
		apierror.Write(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// logRequests logs each request with its status and duration.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"reqID", middleware.GetReqID(r.Context()))
	})
}
