package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"venue-discovery/internal/models"
)

const dateLayout = "2006-01-02"

// RecommendationRequest is the body of POST /api/recommendations.
type RecommendationRequest struct {
	Destination string   `json:"destination" validate:"required,max=200"`
	Categories  []string `json:"categories" validate:"omitempty,max=9,dive,venuecategory"`
	StartDate   string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Budget      string   `json:"budget" validate:"omitempty,oneof=low medium high luxury"`
}

// RunsRequest holds the query parameters of GET /api/runs.
type RunsRequest struct {
	Limit int `validate:"min=1,max=500"`
}

// ToContext converts a validated request. Dates were checked by the
// validator so parse errors cannot occur.
func (r RecommendationRequest) ToContext() models.RequestContext {
	req := models.RequestContext{
		Destination: r.Destination,
		Budget:      models.Budget(strings.ToLower(r.Budget)),
	}
	for _, c := range r.Categories {
		req.Categories = append(req.Categories, models.VenueCategory(strings.ToLower(strings.TrimSpace(c))))
	}
	if r.StartDate != "" {
		req.StartDate, _ = time.Parse(dateLayout, r.StartDate)
	}
	if r.EndDate != "" {
		req.EndDate, _ = time.Parse(dateLayout, r.EndDate)
	}
	return req
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("venuecategory", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseCategory(fl.Field().String())
		return ok
	})
	return v
}

// FieldError is one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Check applies the request rules of POST /api/recommendations outside HTTP.
func Check(r RecommendationRequest) []FieldError {
	if err := newValidator().Struct(r); err != nil {
		return describe(err)
	}
	return nil
}

// describe flattens validator output into client-facing messages.
func describe(err error) []FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldName(fe), Message: message(fe)})
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	switch fe.StructField() {
	case "StartDate":
		return "start_date"
	case "EndDate":
		return "end_date"
	}
	return strings.ToLower(fe.Field())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "venuecategory":
		return fmt.Sprintf("unknown category %q", fe.Value())
	}
	return "is invalid"
}
