// Package authz centralises every role/resource access decision in one
// evaluator. Functions here are pure: callers supply already-fetched
// resource facts, no I/O happens and no state is kept, so they are safe
// to call concurrently.
package authz

import (
	"github.com/stageflow/stageflow-api/internal/models"
)

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	UserID string
	Role   models.UserRole
}

// Operation qualifies a write check.
type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpApprove Operation = "approve"
	OpAssign  Operation = "assign"
)

// DemandeView carries the facts needed to gate access to one demande.
type DemandeView struct {
	StagiaireUserID string
	TuteurUserID    string
	Status          models.DemandeStatus
}

// EvaluationView carries the facts needed to gate access to one evaluation.
type EvaluationView struct {
	StagiaireUserID string
	TuteurUserID    string
}

// StagiaireView carries the facts needed to gate access to one profile.
type StagiaireView struct {
	UserID       string
	TuteurUserID string
}

// DocumentView carries the facts needed to gate access to one document.
type DocumentView struct {
	OwnerUserID string
	Public      bool
}

// Scope narrows a listing query to what the principal may see.
// The zero value means "nothing"; repositories translate the fields
// into WHERE clauses.
type Scope struct {
	All           bool
	OwnerUserID   string
	TuteurUserID  string
	IncludePublic bool
}

// CanReadDemande reports whether p may read the demande.
func CanReadDemande(p Principal, d DemandeView) bool {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH:
		return true
	case models.RoleTuteur:
		return d.TuteurUserID != "" && p.UserID == d.TuteurUserID
	case models.RoleStagiaire:
		return p.UserID == d.StagiaireUserID
	}
	return false
}

// CanWriteDemande reports whether p may perform op on the demande.
// Knowing a demande id grants nothing: the ownership facts in d decide.
func CanWriteDemande(p Principal, d DemandeView, op Operation) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	switch op {
	case OpCreate:
		return p.Role == models.RoleStagiaire
	case OpUpdate:
		// Already-processed demandes are immutable to the requester.
		return p.Role == models.RoleStagiaire &&
			p.UserID == d.StagiaireUserID &&
			d.Status == models.DemandeStatusEnAttente
	case OpApprove:
		switch p.Role {
		case models.RoleRH:
			return true
		case models.RoleTuteur:
			return d.TuteurUserID != "" && p.UserID == d.TuteurUserID
		}
		return false
	case OpDelete:
		// Administrative purge only.
		return false
	}
	return false
}

// CanActAtStep reports whether p may approve or reject the demande at
// the given workflow step. The finance step deliberately has no
// non-admin approver role.
func CanActAtStep(p Principal, d DemandeView, step models.WorkflowStepName) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	switch step {
	case models.StepStagiaire:
		return p.Role == models.RoleStagiaire && p.UserID == d.StagiaireUserID
	case models.StepTuteur:
		return p.Role == models.RoleTuteur && d.TuteurUserID != "" && p.UserID == d.TuteurUserID
	case models.StepRH:
		return p.Role == models.RoleRH
	case models.StepFinance:
		return false
	}
	return false
}

// CanReadEvaluation reports whether p may read the evaluation.
func CanReadEvaluation(p Principal, e EvaluationView) bool {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH:
		return true
	case models.RoleTuteur:
		return p.UserID == e.TuteurUserID
	case models.RoleStagiaire:
		return p.UserID == e.StagiaireUserID
	}
	return false
}

// CanWriteEvaluation reports whether p may perform op on the evaluation.
func CanWriteEvaluation(p Principal, e EvaluationView, op Operation) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	switch op {
	case OpCreate, OpUpdate:
		return p.Role == models.RoleTuteur && p.UserID == e.TuteurUserID
	case OpDelete:
		return p.Role == models.RoleRH
	}
	return false
}

// CanReadStagiaire reports whether p may read the profile.
func CanReadStagiaire(p Principal, s StagiaireView) bool {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH:
		return true
	case models.RoleTuteur:
		return s.TuteurUserID != "" && p.UserID == s.TuteurUserID
	case models.RoleStagiaire:
		return p.UserID == s.UserID
	}
	return false
}

// CanWriteStagiaire reports whether p may perform op on the profile.
func CanWriteStagiaire(p Principal, s StagiaireView, op Operation) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	switch op {
	case OpUpdate:
		return (p.Role == models.RoleStagiaire && p.UserID == s.UserID) ||
			p.Role == models.RoleRH
	case OpAssign, OpCreate, OpDelete:
		return p.Role == models.RoleRH
	}
	return false
}

// CanAccessDocument covers both read and delete per the document rule:
// owner, public, or a staff role.
func CanAccessDocument(p Principal, d DocumentView) bool {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH, models.RoleTuteur:
		return true
	}
	return d.Public || p.UserID == d.OwnerUserID
}

// DemandeScope narrows demande listings for the principal.
func DemandeScope(p Principal) Scope {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH:
		return Scope{All: true}
	case models.RoleTuteur:
		return Scope{TuteurUserID: p.UserID}
	case models.RoleStagiaire:
		return Scope{OwnerUserID: p.UserID}
	}
	return Scope{}
}

// StagiaireScope narrows stagiaire listings for the principal.
func StagiaireScope(p Principal) Scope {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH:
		return Scope{All: true}
	case models.RoleTuteur:
		return Scope{TuteurUserID: p.UserID}
	case models.RoleStagiaire:
		return Scope{OwnerUserID: p.UserID}
	}
	return Scope{}
}

// EvaluationScope narrows evaluation listings for the principal.
func EvaluationScope(p Principal) Scope {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH:
		return Scope{All: true}
	case models.RoleTuteur:
		return Scope{TuteurUserID: p.UserID}
	case models.RoleStagiaire:
		return Scope{OwnerUserID: p.UserID}
	}
	return Scope{}
}

// DocumentScope narrows document listings for the principal.
func DocumentScope(p Principal) Scope {
	switch p.Role {
	case models.RoleAdmin, models.RoleRH, models.RoleTuteur:
		return Scope{All: true}
	case models.RoleStagiaire:
		return Scope{OwnerUserID: p.UserID, IncludePublic: true}
	}
	return Scope{}
}
