package authz

import (
	"github.com/google/uuid"

	"github.com/guidely/guidely-backend/pkg/enums"
)

// Action enumerates the operations the decision function understands.
type Action string

const (
	ActionView    Action = "view"
	ActionViewAny Action = "view_any"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

// Actor is the authenticated principal (or anonymous when nil fields).
type Actor struct {
	UserID    uuid.UUID
	Role      enums.Role
	CompanyID *uuid.UUID
	Anonymous bool
}

// Anonymous returns the unauthenticated actor.
func AnonymousActor() Actor {
	return Actor{Anonymous: true}
}

// ResourceKind discriminates the resource sum type.
type ResourceKind string

const (
	KindCompany    ResourceKind = "company"
	KindMembership ResourceKind = "membership"
	KindActivity   ResourceKind = "activity"
)

// Resource identifies the target of an action. CompanyID is the owning
// tenant; GuideID is set only for activities with an assigned guide.
type Resource struct {
	Kind      ResourceKind
	CompanyID uuid.UUID
	GuideID   *uuid.UUID
}

// CompanyResource targets a company record itself.
func CompanyResource(companyID uuid.UUID) Resource {
	return Resource{Kind: KindCompany, CompanyID: companyID}
}

// MembershipResource targets a company's member roster.
func MembershipResource(companyID uuid.UUID) Resource {
	return Resource{Kind: KindMembership, CompanyID: companyID}
}

// ActivityResource targets an activity owned by a company, optionally
// assigned to a guide.
func ActivityResource(companyID uuid.UUID, guideID *uuid.UUID) Resource {
	return Resource{Kind: KindActivity, CompanyID: companyID, GuideID: guideID}
}

// Can decides whether the actor may perform the action on the resource.
// Rules are evaluated in precedence order and fall through to deny:
//
//  1. platform admins may do anything
//  2. company owners get full control inside their own tenant
//  3. guides may update/delete only activities assigned to them
//  4. anyone, including anonymous, may view a public activity
//
// The function is pure; callers translate a false result into a uniform
// Forbidden outcome so a denied probe looks identical whether or not the
// target id exists.
func Can(actor Actor, action Action, resource Resource) bool {
	if !actor.Anonymous && actor.Role == enums.RolePlatformAdmin {
		return true
	}

	if !actor.Anonymous && actor.Role == enums.RoleCompanyOwner {
		if actor.CompanyID != nil && *actor.CompanyID == resource.CompanyID {
			return true
		}
	}

	if !actor.Anonymous && actor.Role == enums.RoleGuide {
		if resource.Kind == KindActivity &&
			(action == ActionUpdate || action == ActionDelete) &&
			resource.GuideID != nil && *resource.GuideID == actor.UserID {
			return true
		}
	}

	if resource.Kind == KindActivity && action == ActionView {
		return true
	}

	return false
}
