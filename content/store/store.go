// Package store keeps landing page content and contact submissions as JSON
// documents in a datastore.
//
// Documents are stored under one key namespace per kind:
//
//	/hero
//	/services/<id>
//	/testimonials/<id>
//	/contacts/<id>
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"
	logging "github.com/ipfs/go-log/v2"
	"github.com/ledgerline/erpsite/content/model"
)

var log = logging.Logger("store")

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

const (
	servicesPrefix     = "/services"
	testimonialsPrefix = "/testimonials"
	contactsPrefix     = "/contacts"
)

var heroKey = ds.NewKey("/hero")

// Store reads and writes content documents. It is safe for concurrent use if
// the underlying datastore is.
type Store struct {
	dstore ds.Datastore
	now    func() time.Time
}

// New creates a Store on top of the given datastore.
func New(dstore ds.Datastore) *Store {
	return &Store{
		dstore: dstore,
		now:    time.Now,
	}
}

// NewMemory creates a Store backed by an in-memory datastore.
func NewMemory() *Store {
	return New(dssync.MutexWrap(ds.NewMapDatastore()))
}

// Close closes the underlying datastore.
func (s *Store) Close() error {
	return s.dstore.Close()
}

// Hero returns the hero banner, or nil if none is set.
func (s *Store) Hero(ctx context.Context) (*model.Hero, error) {
	var hero model.Hero
	if err := s.get(ctx, heroKey, &hero); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hero, nil
}

// PutHero replaces the hero banner.
func (s *Store) PutHero(ctx context.Context, hero model.Hero) error {
	if err := hero.Validate(); err != nil {
		return err
	}
	return s.put(ctx, heroKey, &hero)
}

// DeleteHero removes the hero banner.
func (s *Store) DeleteHero(ctx context.Context) error {
	return s.delete(ctx, heroKey)
}

// ListServices returns all services ordered by Order, then ID.
func (s *Store) ListServices(ctx context.Context) ([]model.Service, error) {
	services, err := list[model.Service](ctx, s.dstore, servicesPrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].Order != services[j].Order {
			return services[i].Order < services[j].Order
		}
		return services[i].ID < services[j].ID
	})
	return services, nil
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	err := s.get(ctx, docKey(servicesPrefix, id), &svc)
	return svc, err
}

// CreateService stores a new service. If svc has no ID, one is assigned.
func (s *Store) CreateService(ctx context.Context, svc model.Service) (model.Service, error) {
	if err := svc.Validate(); err != nil {
		return model.Service{}, err
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	} else if err := checkID(svc.ID); err != nil {
		return model.Service{}, err
	}
	if err := s.put(ctx, docKey(servicesPrefix, svc.ID), &svc); err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

// UpdateService replaces an existing service.
func (s *Store) UpdateService(ctx context.Context, id string, svc model.Service) (model.Service, error) {
	if err := svc.Validate(); err != nil {
		return model.Service{}, err
	}
	svc.ID = id
	key := docKey(servicesPrefix, id)
	if err := s.mustExist(ctx, key); err != nil {
		return model.Service{}, err
	}
	if err := s.put(ctx, key, &svc); err != nil {
		return model.Service{}, err
	}
	return svc, nil
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.delete(ctx, docKey(servicesPrefix, id))
}

// ListTestimonials returns all testimonials ordered by ID.
func (s *Store) ListTestimonials(ctx context.Context) ([]model.Testimonial, error) {
	testimonials, err := list[model.Testimonial](ctx, s.dstore, testimonialsPrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(testimonials, func(i, j int) bool {
		return testimonials[i].ID < testimonials[j].ID
	})
	return testimonials, nil
}

func (s *Store) GetTestimonial(ctx context.Context, id string) (model.Testimonial, error) {
	var t model.Testimonial
	err := s.get(ctx, docKey(testimonialsPrefix, id), &t)
	return t, err
}

// CreateTestimonial stores a new testimonial. If t has no ID, one is
// assigned.
func (s *Store) CreateTestimonial(ctx context.Context, t model.Testimonial) (model.Testimonial, error) {
	if err := t.Validate(); err != nil {
		return model.Testimonial{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if err := checkID(t.ID); err != nil {
		return model.Testimonial{}, err
	}
	if err := s.put(ctx, docKey(testimonialsPrefix, t.ID), &t); err != nil {
		return model.Testimonial{}, err
	}
	return t, nil
}

// UpdateTestimonial replaces an existing testimonial.
func (s *Store) UpdateTestimonial(ctx context.Context, id string, t model.Testimonial) (model.Testimonial, error) {
	if err := t.Validate(); err != nil {
		return model.Testimonial{}, err
	}
	t.ID = id
	key := docKey(testimonialsPrefix, id)
	if err := s.mustExist(ctx, key); err != nil {
		return model.Testimonial{}, err
	}
	if err := s.put(ctx, key, &t); err != nil {
		return model.Testimonial{}, err
	}
	return t, nil
}

func (s *Store) DeleteTestimonial(ctx context.Context, id string) error {
	return s.delete(ctx, docKey(testimonialsPrefix, id))
}

// ListContacts returns all contact submissions, newest first.
func (s *Store) ListContacts(ctx context.Context) ([]model.Contact, error) {
	contacts, err := list[model.Contact](ctx, s.dstore, contactsPrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(contacts, func(i, j int) bool {
		if !contacts[i].CreatedAt.Equal(contacts[j].CreatedAt) {
			return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
		}
		return contacts[i].ID < contacts[j].ID
	})
	return contacts, nil
}

// CreateContact stores a contact form submission, assigning its ID and
// creation time.
func (s *Store) CreateContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	if err := c.Validate(); err != nil {
		return model.Contact{}, err
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC()
	if err := s.put(ctx, docKey(contactsPrefix, c.ID), &c); err != nil {
		return model.Contact{}, err
	}
	log.Infow("Stored contact submission", "id", c.ID)
	return c, nil
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return s.delete(ctx, docKey(contactsPrefix, id))
}

// Seed writes every document in pd to the store, replacing documents with
// the same keys. All documents are attempted; failures are returned
// together.
func (s *Store) Seed(ctx context.Context, pd *model.PageData) error {
	var errs error
	if pd.Hero != nil {
		if err := s.PutHero(ctx, *pd.Hero); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("hero: %w", err))
		}
	}
	for _, svc := range pd.Services {
		if _, err := s.CreateService(ctx, svc); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("service %q: %w", svc.ID, err))
		}
	}
	for _, t := range pd.Testimonials {
		if _, err := s.CreateTestimonial(ctx, t); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("testimonial %q: %w", t.ID, err))
		}
	}
	if errs != nil {
		return errs
	}
	log.Infow("Seeded content store", "services", len(pd.Services), "testimonials", len(pd.Testimonials), "hero", pd.Hero != nil)
	return nil
}

func (s *Store) get(ctx context.Context, key ds.Key, v any) error {
	data, err := s.dstore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return err
	}
	if err = json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cannot decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key ds.Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.dstore.Put(ctx, key, data)
}

func (s *Store) delete(ctx context.Context, key ds.Key) error {
	if err := s.mustExist(ctx, key); err != nil {
		return err
	}
	return s.dstore.Delete(ctx, key)
}

func (s *Store) mustExist(ctx context.Context, key ds.Key) error {
	ok, err := s.dstore.Has(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return nil
}

func checkID(id string) error {
	// Keys are cleaned, so these would name the namespace or the root.
	if id == "." || id == ".." {
		return fmt.Errorf("%w: id %q is reserved", model.ErrInvalid, id)
	}
	if strings.ContainsAny(id, "/ ") {
		return fmt.Errorf("%w: id %q must not contain slashes or spaces", model.ErrInvalid, id)
	}
	return nil
}

func docKey(prefix, id string) ds.Key {
	return ds.NewKey(prefix).ChildString(id)
}

// list decodes every document under prefix.
func list[T any](ctx context.Context, dstore ds.Datastore, prefix string) ([]T, error) {
	results, err := dstore.Query(ctx, dsq.Query{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	defer results.Close()

	entries, err := results.Rest()
	if err != nil {
		return nil, err
	}
	docs := make([]T, 0, len(entries))
	for _, e := range entries {
		var doc T
		if err = json.Unmarshal(e.Value, &doc); err != nil {
			return nil, fmt.Errorf("cannot decode %s: %w", e.Key, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
