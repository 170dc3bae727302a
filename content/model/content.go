package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ErrInvalid is returned, wrapped with detail, when content fails validation.
var ErrInvalid = errors.New("invalid content")

// Hero is the banner at the top of the landing page.
type Hero struct {
	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle,omitempty" yaml:"subtitle"`
	// CTAText and CTALink describe the call-to-action button.
	CTAText  string `json:"ctaText,omitempty" yaml:"ctaText"`
	CTALink  string `json:"ctaLink,omitempty" yaml:"ctaLink"`
	ImageURL string `json:"imageUrl,omitempty" yaml:"imageUrl"`
}

// Service is one consultancy offering shown on the landing page.
type Service struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Icon        string `json:"icon,omitempty" yaml:"icon"`
	// Order sets the display position. Lower values come first.
	Order int `json:"order" yaml:"order"`
}

// Testimonial is a client quote.
type Testimonial struct {
	ID      string `json:"id" yaml:"id"`
	Author  string `json:"author" yaml:"author"`
	Role    string `json:"role,omitempty" yaml:"role"`
	Company string `json:"company,omitempty" yaml:"company"`
	Quote   string `json:"quote" yaml:"quote"`
	// Rating is 1 to 5 stars, or 0 for unrated.
	Rating int `json:"rating,omitempty" yaml:"rating"`
}

// Contact is a submission of the public contact form.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// PageData is the composite landing page payload. A PageData is built once
// per fetch and is shared by everyone who receives it; do not modify it.
type PageData struct {
	Hero         *Hero         `json:"hero" yaml:"hero"`
	Services     []Service     `json:"services" yaml:"services"`
	Testimonials []Testimonial `json:"testimonials" yaml:"testimonials"`
}

// MarshalJSON encodes missing lists as empty arrays rather than null.
func (p PageData) MarshalJSON() ([]byte, error) {
	type pageData PageData
	out := pageData(p)
	if out.Services == nil {
		out.Services = []Service{}
	}
	if out.Testimonials == nil {
		out.Testimonials = []Testimonial{}
	}
	return json.Marshal(out)
}

func (h *Hero) Validate() error {
	if strings.TrimSpace(h.Title) == "" {
		return fmt.Errorf("%w: hero title is required", ErrInvalid)
	}
	return nil
}

func (s *Service) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: service title is required", ErrInvalid)
	}
	return nil
}

func (t *Testimonial) Validate() error {
	if strings.TrimSpace(t.Author) == "" {
		return fmt.Errorf("%w: testimonial author is required", ErrInvalid)
	}
	if strings.TrimSpace(t.Quote) == "" {
		return fmt.Errorf("%w: testimonial quote is required", ErrInvalid)
	}
	if t.Rating < 0 || t.Rating > 5 {
		return fmt.Errorf("%w: testimonial rating must be between 0 and 5, got %d", ErrInvalid, t.Rating)
	}
	return nil
}

func (c *Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: contact name is required", ErrInvalid)
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return fmt.Errorf("%w: contact email %q is not valid", ErrInvalid, c.Email)
	}
	if strings.TrimSpace(c.Message) == "" {
		return fmt.Errorf("%w: contact message is required", ErrInvalid)
	}
	return nil
}
