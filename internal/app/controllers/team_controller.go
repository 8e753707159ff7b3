package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/evently/evently-api/internal/app/repositories"
	"github.com/evently/evently-api/internal/app/services"
	"github.com/evently/evently-api/internal/domain/team"
	"github.com/evently/evently-api/internal/platform/middleware"
)

type TeamController struct {
	service services.TeamService
}

func NewTeamController(s services.TeamService) *TeamController {
	return &TeamController{service: s}
}

// Create opens a new team for a team-based event with the caller as
// leader.
func (c *TeamController) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	var in team.CreateTeamInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := c.service.Create(r.Context(), identity.ID, in)
	if err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ResolveInvite previews the team behind an invite code without
// joining it.
func (c *TeamController) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["inviteCode"]
	view, err := c.service.ResolveInvite(r.Context(), code)
	if err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Join adds the caller to the team behind the invite code. When the
// join fills the last slot the response carries the registered team.
func (c *TeamController) Join(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	code := mux.Vars(r)["inviteCode"]
	result, err := c.service.Join(r.Context(), code, identity.ID)
	if err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result.Team)
}

// ListMine returns every team the caller leads or belongs to.
func (c *TeamController) ListMine(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	views, err := c.service.ListMine(r.Context(), identity.ID)
	if err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Get returns one team; members only.
func (c *TeamController) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	teamID := team.ID(mux.Vars(r)["teamId"])
	view, err := c.service.GetByID(r.Context(), teamID, identity.ID)
	if err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RemoveMember ejects a member; leader only.
func (c *TeamController) RemoveMember(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	vars := mux.Vars(r)
	view, err := c.service.RemoveMember(r.Context(), team.ID(vars["teamId"]), vars["memberId"], identity.ID)
	if err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Leave removes the caller from the team.
func (c *TeamController) Leave(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	teamID := team.ID(mux.Vars(r)["teamId"])
	if err := c.service.Leave(r.Context(), teamID, identity.ID); err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "left team"})
}

// Delete disbands the team; leader only.
func (c *TeamController) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFrom(r.Context())
	teamID := team.ID(mux.Vars(r)["teamId"])
	if err := c.service.Delete(r.Context(), teamID, identity.ID); err != nil {
		writeError(w, mapTeamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "team deleted"})
}

func mapTeamStatus(err error) int {
	switch {
	case errors.Is(err, repositories.ErrTeamNotFound),
		errors.Is(err, repositories.ErrInviteCodeNotFound),
		errors.Is(err, repositories.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTeamAccessDenied),
		errors.Is(err, services.ErrLeaderOnly):
		return http.StatusForbidden
	case errors.Is(err, repositories.ErrTeamFull),
		errors.Is(err, services.ErrTeamAlreadyDone),
		errors.Is(err, services.ErrAlreadyInTeam),
		errors.Is(err, services.ErrAlreadyInOtherTeam),
		errors.Is(err, services.ErrAlreadyJoined),
		errors.Is(err, services.ErrInvitePending),
		errors.Is(err, services.ErrTeamRegistered),
		errors.Is(err, services.ErrLeaderCannotLeave):
		return http.StatusConflict
	case errors.Is(err, services.ErrEventNotTeamBased),
		errors.Is(err, services.ErrTeamSizeOutOfRange),
		errors.Is(err, services.ErrLeaderCannotJoin),
		errors.Is(err, ErrInvalidParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
