package test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/ledgerline/erpsite/content/model"
	"github.com/stretchr/testify/require"
)

var globalSeed atomic.Int64

var words = []string{
	"ledger", "inventory", "payroll", "procurement", "forecast", "warehouse",
	"invoice", "audit", "budget", "shipment", "vendor", "asset",
}

func randomPhrase(rng *rand.Rand, n int) string {
	phrase := words[rng.Intn(len(words))]
	for i := 1; i < n; i++ {
		phrase += " " + words[rng.Intn(len(words))]
	}
	return phrase
}

// RandomServices returns n valid services with distinct IDs and orders.
func RandomServices(n int) []model.Service {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))

	services := make([]model.Service, n)
	for i := 0; i < n; i++ {
		services[i] = model.Service{
			ID:          fmt.Sprintf("svc-%d-%d", i, rng.Intn(1_000_000)),
			Title:       randomPhrase(rng, 2),
			Description: randomPhrase(rng, 8),
			Order:       i + 1,
		}
	}
	return services
}

// RandomTestimonials returns n valid testimonials with distinct IDs.
func RandomTestimonials(n int) []model.Testimonial {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))

	testimonials := make([]model.Testimonial, n)
	for i := 0; i < n; i++ {
		testimonials[i] = model.Testimonial{
			ID:      fmt.Sprintf("tst-%d-%d", i, rng.Intn(1_000_000)),
			Author:  randomPhrase(rng, 2),
			Company: randomPhrase(rng, 1) + " Inc",
			Quote:   randomPhrase(rng, 12),
			Rating:  1 + rng.Intn(5),
		}
	}
	return testimonials
}

// RandomPageData returns a complete PageData with a hero and the given
// number of services and testimonials.
func RandomPageData(services, testimonials int) *model.PageData {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))
	return &model.PageData{
		Hero: &model.Hero{
			Title:    randomPhrase(rng, 3),
			Subtitle: randomPhrase(rng, 6),
			CTAText:  "Talk to us",
			CTALink:  "/contact",
		},
		Services:     RandomServices(services),
		Testimonials: RandomTestimonials(testimonials),
	}
}

// DecodeJSON decodes the body of a response into v and closes the body.
func DecodeJSON(t testing.TB, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
