// Package access implements the authorization gate: a pure policy over
// (principal, action, resource) with no hidden state.
package access

import (
	"fmt"

	"github.com/example/task-manager/domain/apperr"
)

// Role is a principal's privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Action is an operation a principal attempts on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionList   Action = "list"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Kind is the resource kind being acted on.
type Kind string

const (
	KindTask  Kind = "task"
	KindUser  Kind = "user"
	KindAudit Kind = "audit"
)

// Principal is the authenticated actor of a request.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Resource identifies the target of an action. OwnerID is only meaningful for
// tasks.
type Resource struct {
	Kind    Kind
	ID      string
	OwnerID string
}

// Task returns a task resource.
func Task(id, ownerID string) Resource {
	return Resource{Kind: KindTask, ID: id, OwnerID: ownerID}
}

// User returns a user resource.
func User(id string) Resource {
	return Resource{Kind: KindUser, ID: id}
}

// Audit returns the audit trail resource.
func Audit() Resource {
	return Resource{Kind: KindAudit}
}

// Reason explains a denial.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "forbidden"
)

// Decision is the gate's verdict.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err converts a denial into an apperr of the matching kind. It returns nil
// when the decision allows.
func (d Decision) Err(action Action, res Resource) error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonUnauthenticated:
		return apperr.Unauthenticated("not authenticated")
	default:
		return apperr.Forbidden("not authorized to %s this %s", action, res.Kind)
	}
}

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return fmt.Sprintf("deny(%s)", d.Reason)
}

// rule decides a single (role, kind, action) cell.
type rule func(p Principal, res Resource) bool

func always(Principal, Resource) bool { return true }

func owner(p Principal, res Resource) bool {
	return res.OwnerID != "" && res.OwnerID == p.ID
}

type policyKey struct {
	role   Role
	kind   Kind
	action Action
}

// policy is the complete rule table. Missing cells deny.
var policy = map[policyKey]rule{
	{RoleAdmin, KindTask, ActionRead}:    always,
	{RoleAdmin, KindTask, ActionList}:    always,
	{RoleAdmin, KindTask, ActionUpdate}:  always,
	{RoleAdmin, KindTask, ActionDelete}:  always,
	{RoleAdmin, KindUser, ActionRead}:    always,
	{RoleAdmin, KindUser, ActionList}:    always,
	{RoleAdmin, KindUser, ActionUpdate}:  always,
	{RoleAdmin, KindUser, ActionDelete}:  always,
	{RoleAdmin, KindAudit, ActionRead}:   always,
	{RoleAdmin, KindAudit, ActionList}:   always,
	{RoleAdmin, KindAudit, ActionUpdate}: always,
	{RoleAdmin, KindAudit, ActionDelete}: always,

	{RoleUser, KindTask, ActionRead}:   owner,
	{RoleUser, KindTask, ActionList}:   always, // list queries are owner-scoped by the store
	{RoleUser, KindTask, ActionUpdate}: owner,
	{RoleUser, KindTask, ActionDelete}: owner,
}

var (
	allow           = Decision{Allowed: true}
	denyForbidden   = Decision{Reason: ReasonForbidden}
	denyAnonymously = Decision{Reason: ReasonUnauthenticated}
)

// Authorize decides whether p may perform action on res.
func Authorize(p Principal, action Action, res Resource) Decision {
	if p.ID == "" {
		return denyAnonymously
	}
	r, ok := policy[policyKey{p.Role, res.Kind, action}]
	if !ok || !r(p, res) {
		return denyForbidden
	}
	return allow
}
