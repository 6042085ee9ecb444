package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumen-lms/lumen/internal/platform/httpx"
)

// Handler exposes the capability table to clients for display decisions.
type Handler struct {
	rbac Middleware
}

// NewHandler builds Handler instance.
func NewHandler(rbac Middleware) *Handler {
	return &Handler{rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/roles", h.listRoles)
		r.Get("/me", h.me)
	})
}

type roleView struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := Roles()
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleView{Role: role, Permissions: Permissions(role)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{
		"principal":   p,
		"permissions": Permissions(p.Role),
	})
}
