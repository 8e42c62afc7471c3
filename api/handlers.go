package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/services"
)

// maxBodyBytes bounds request bodies; markdown drafts can be long.
const maxBodyBytes = 5 << 20

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(db database.Database, startupTime time.Time, opts ...services.Option) *routeHandlers {
	posts := services.NewPostService(db, opts...)
	catalog := services.NewCatalogService(db)
	validate := newValidator()

	return &routeHandlers{
		postHandler:    newPostHandler(posts, catalog, validate),
		bulkHandler:    newBulkHandler(posts, validate),
		catalogHandler: newCatalogHandler(catalog),
		healthHandler:  newHealthHandler(db, startupTime),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads a JSON body into dst and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, validate *validator.Validate, payloadName string, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.NewMalformedPayloadError(payloadName, err)
		}
		return errs.NewInvalidJSONError(err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errs.NewBadRequestError("Validation error")
	}
	first := fieldErrs[0]
	if first.Tag() == "required" {
		return errs.NewMissingRequiredFieldError(first.Field())
	}
	return errs.NewInvalidFieldError(first.Field(), "failed "+first.Tag()+" check")
}

// postIDParam parses the {postID} path parameter.
func postIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "postID")
	if raw == "" {
		return uuid.Nil, errs.NewBadRequestError("missing postID")
	}
	postID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.NewBadRequestError("invalid postID")
	}
	return postID, nil
}

func authorID(r *http.Request) (uuid.UUID, error) {
	userID, err := ctxGetUserID(r.Context())
	if err != nil {
		return uuid.Nil, errs.NewUnauthorizedError("Unauthorized")
	}
	return userID, nil
}
