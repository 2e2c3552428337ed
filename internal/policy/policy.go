// Package policy holds the single authorization decision point. Services describe the
// actor, the resource and the action; the table below decides.
package policy

import (
	"github.com/mindease/mindease-api/internal/model"
	apperrors "github.com/mindease/mindease-api/pkg/errors"
)

type Resource string

const (
	ResourceBooking          Resource = "booking"
	ResourceTherapistProfile Resource = "therapist_profile"
	ResourceJournalEntry     Resource = "journal_entry"
	ResourceMood             Resource = "mood"
	ResourceChannel          Resource = "channel"
	ResourceUser             Resource = "user"
)

type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionUpdateStatus Action = "update_status"
	ActionDelete       Action = "delete"
	ActionVerify       Action = "verify"
	ActionJoin         Action = "join"
	ActionList         Action = "list"
)

// Actor is the verified identity making a request.
type Actor struct {
	ID   string
	Role model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// Target describes the resource instance being acted on. Parties lists users with a
// stake in it; the meaning of each slot depends on the resource.
type Target struct {
	Resource Resource
	// OwnerID is the patient of a booking, the therapist of a profile, the author of
	// an entry, or the user of a channel.
	OwnerID string
	// AssigneeID is the therapist of a booking.
	AssigneeID string
	Private    bool
}

type rule func(a Actor, t Target) bool

func owner(a Actor, t Target) bool    { return t.OwnerID != "" && a.ID == t.OwnerID }
func assignee(a Actor, t Target) bool { return t.AssigneeID != "" && a.ID == t.AssigneeID }
func admin(a Actor, _ Target) bool    { return a.IsAdmin() }
func role(r model.Role) rule          { return func(a Actor, _ Target) bool { return a.Role == r } }

func anyOf(rules ...rule) rule {
	return func(a Actor, t Target) bool {
		for _, r := range rules {
			if r(a, t) {
				return true
			}
		}
		return false
	}
}

func allOf(rules ...rule) rule {
	return func(a Actor, t Target) bool {
		for _, r := range rules {
			if !r(a, t) {
				return false
			}
		}
		return true
	}
}

type key struct {
	resource Resource
	action   Action
}

var table = map[key]rule{
	// Patients book for themselves; admins book on a patient's behalf.
	{ResourceBooking, ActionCreate}:       anyOf(allOf(role(model.RolePatient), owner), admin),
	{ResourceBooking, ActionRead}:         anyOf(owner, assignee, admin),
	{ResourceBooking, ActionUpdateStatus}: anyOf(allOf(role(model.RoleTherapist), assignee), admin),

	{ResourceTherapistProfile, ActionRead}:   func(Actor, Target) bool { return true },
	{ResourceTherapistProfile, ActionUpdate}: anyOf(allOf(role(model.RoleTherapist), owner), admin),
	{ResourceTherapistProfile, ActionVerify}: admin,

	{ResourceJournalEntry, ActionCreate}: owner,
	{ResourceJournalEntry, ActionRead}:   anyOf(owner, func(a Actor, t Target) bool { return a.IsAdmin() && !t.Private }),
	{ResourceJournalEntry, ActionUpdate}: owner,
	{ResourceJournalEntry, ActionDelete}: owner,

	{ResourceMood, ActionCreate}: owner,
	{ResourceMood, ActionRead}:   owner,

	// A connection may only subscribe to its own user's channel.
	{ResourceChannel, ActionJoin}: owner,

	{ResourceUser, ActionList}:   admin,
	{ResourceUser, ActionUpdate}: admin,
}

// Allowed reports whether the actor may perform the action. Unknown pairs are denied.
func Allowed(a Actor, action Action, t Target) bool {
	if a.ID == "" || !a.Role.Valid() {
		return false
	}
	r, ok := table[key{t.Resource, action}]
	if !ok {
		return false
	}
	return r(a, t)
}

// Authorize is Allowed expressed as an error for service code.
func Authorize(a Actor, action Action, t Target) error {
	if Allowed(a, action, t) {
		return nil
	}
	return apperrors.Forbidden("you are not allowed to " + string(action) + " this " + string(t.Resource))
}
