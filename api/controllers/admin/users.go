package admin

import (
	"context"
	"net/http"

	"github.com/personapath/personapath-backend/api/responses"
	"github.com/personapath/personapath-backend/api/validators"
	"github.com/personapath/personapath-backend/internal/users"
	"github.com/personapath/personapath-backend/pkg/db/models"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// UserService creates accounts with their starter subscription.
type UserService interface {
	Create(ctx context.Context, params users.CreateParams) (*models.User, error)
}

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// CreateUser provisions a new account. The free-tier subscription row is
// created in the same transaction as the user.
func CreateUser(svc UserService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var body createUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Create(r.Context(), users.CreateParams{
			Email:     body.Email,
			FirstName: body.FirstName,
			LastName:  body.LastName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}
