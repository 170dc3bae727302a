// Package fallback provides the static landing page dataset used when live
// page data cannot be fetched, and parses datasets in the same YAML format
// for seeding a content store.
package fallback

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/ledgerline/erpsite/content/model"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultData []byte

// Load parses the embedded default dataset. Each call returns a new
// PageData.
func Load() (*model.PageData, error) {
	pd, err := Parse(defaultData)
	if err != nil {
		return nil, fmt.Errorf("cannot load fallback page data: %w", err)
	}
	return pd, nil
}

// Parse decodes a YAML dataset and validates every item in it. Unknown
// fields are rejected.
func Parse(data []byte) (*model.PageData, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var pd model.PageData
	if err := dec.Decode(&pd); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty page data")
		}
		return nil, err
	}

	var errs error
	if pd.Hero != nil {
		if err := pd.Hero.Validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for i := range pd.Services {
		if err := pd.Services[i].Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("service %d: %w", i, err))
		}
	}
	for i := range pd.Testimonials {
		if err := pd.Testimonials[i].Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("testimonial %d: %w", i, err))
		}
	}
	if errs != nil {
		return nil, errs
	}

	if pd.Services == nil {
		pd.Services = []model.Service{}
	}
	if pd.Testimonials == nil {
		pd.Testimonials = []model.Testimonial{}
	}
	return &pd, nil
}
