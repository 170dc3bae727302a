package store_test

import (
	"context"
	"testing"

	"github.com/ledgerline/erpsite/content/model"
	"github.com/ledgerline/erpsite/content/store"
	"github.com/ledgerline/erpsite/internal/test"
	"github.com/stretchr/testify/require"
)

func TestHero(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()

	hero, err := s.Hero(ctx)
	require.NoError(t, err)
	require.Nil(t, hero)

	err = s.PutHero(ctx, model.Hero{})
	require.ErrorIs(t, err, model.ErrInvalid)

	require.NoError(t, s.PutHero(ctx, model.Hero{Title: "X", CTAText: "Call us"}))
	hero, err = s.Hero(ctx)
	require.NoError(t, err)
	require.Equal(t, &model.Hero{Title: "X", CTAText: "Call us"}, hero)

	require.NoError(t, s.DeleteHero(ctx))
	hero, err = s.Hero(ctx)
	require.NoError(t, err)
	require.Nil(t, hero)

	require.ErrorIs(t, s.DeleteHero(ctx), store.ErrNotFound)
}

func TestServices(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()

	services, err := s.ListServices(ctx)
	require.NoError(t, err)
	require.Empty(t, services)

	late, err := s.CreateService(ctx, model.Service{Title: "Support", Order: 9})
	require.NoError(t, err)
	require.NotEmpty(t, late.ID)

	early, err := s.CreateService(ctx, model.Service{ID: "impl", Title: "Implementation", Order: 1})
	require.NoError(t, err)
	require.Equal(t, "impl", early.ID)

	services, err = s.ListServices(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Service{early, late}, services)

	got, err := s.GetService(ctx, "impl")
	require.NoError(t, err)
	require.Equal(t, early, got)

	updated, err := s.UpdateService(ctx, "impl", model.Service{Title: "Implementation", Order: 20})
	require.NoError(t, err)
	require.Equal(t, "impl", updated.ID)

	services, err = s.ListServices(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Service{late, updated}, services)

	_, err = s.UpdateService(ctx, "missing", model.Service{Title: "x"})
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateService(ctx, "impl", model.Service{})
	require.ErrorIs(t, err, model.ErrInvalid)
	_, err = s.CreateService(ctx, model.Service{ID: "a/b", Title: "x"})
	require.ErrorIs(t, err, model.ErrInvalid)
	for _, id := range []string{".", ".."} {
		_, err = s.CreateService(ctx, model.Service{ID: id, Title: "x"})
		require.ErrorIs(t, err, model.ErrInvalid)
		_, err = s.CreateTestimonial(ctx, model.Testimonial{ID: id, Quote: "x", Author: "y"})
		require.ErrorIs(t, err, model.ErrInvalid)
	}

	require.NoError(t, s.DeleteService(ctx, "impl"))
	_, err = s.GetService(ctx, "impl")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.DeleteService(ctx, "impl"), store.ErrNotFound)
}

func TestTestimonials(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()

	for _, tm := range test.RandomTestimonials(5) {
		_, err := s.CreateTestimonial(ctx, tm)
		require.NoError(t, err)
	}
	testimonials, err := s.ListTestimonials(ctx)
	require.NoError(t, err)
	require.Len(t, testimonials, 5)
	for i := 1; i < len(testimonials); i++ {
		require.Less(t, testimonials[i-1].ID, testimonials[i].ID)
	}

	first := testimonials[0]
	first.Quote = "Changed"
	updated, err := s.UpdateTestimonial(ctx, first.ID, first)
	require.NoError(t, err)
	got, err := s.GetTestimonial(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, updated, got)

	_, err = s.CreateTestimonial(ctx, model.Testimonial{Author: "a", Quote: "q", Rating: 7})
	require.ErrorIs(t, err, model.ErrInvalid)

	require.NoError(t, s.DeleteTestimonial(ctx, first.ID))
	testimonials, err = s.ListTestimonials(ctx)
	require.NoError(t, err)
	require.Len(t, testimonials, 4)
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()

	_, err := s.CreateContact(ctx, model.Contact{Name: "Pat", Email: "bad", Message: "hi"})
	require.ErrorIs(t, err, model.ErrInvalid)

	first, err := s.CreateContact(ctx, model.Contact{Name: "Pat", Email: "pat@example.com", Message: "Need help with SAP"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())

	second, err := s.CreateContact(ctx, model.Contact{ID: "ignored", Name: "Sam", Email: "sam@example.com", Message: "Pricing?"})
	require.NoError(t, err)
	require.NotEqual(t, "ignored", second.ID)

	contacts, err := s.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	require.False(t, contacts[0].CreatedAt.Before(contacts[1].CreatedAt))

	require.NoError(t, s.DeleteContact(ctx, first.ID))
	contacts, err = s.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, second.ID, contacts[0].ID)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	defer s.Close()

	pd := test.RandomPageData(3, 2)
	require.NoError(t, s.Seed(ctx, pd))

	hero, err := s.Hero(ctx)
	require.NoError(t, err)
	require.Equal(t, pd.Hero, hero)
	services, err := s.ListServices(ctx)
	require.NoError(t, err)
	require.Equal(t, pd.Services, services)
	testimonials, err := s.ListTestimonials(ctx)
	require.NoError(t, err)
	require.Len(t, testimonials, 2)

	// Invalid documents are all reported; valid ones are still written.
	bad := &model.PageData{
		Hero:     &model.Hero{},
		Services: []model.Service{{ID: "ok", Title: "Fine"}, {ID: "bad"}},
	}
	err = s.Seed(ctx, bad)
	require.ErrorContains(t, err, "hero")
	require.ErrorContains(t, err, `service "bad"`)
	_, err = s.GetService(ctx, "ok")
	require.NoError(t, err)
}
