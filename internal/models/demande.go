package models

import "time"

// DemandeType enumerates the request categories a stagiaire can submit.
type DemandeType string

const (
	DemandeTypeConge        DemandeType = "CONGE"
	DemandeTypeProlongation DemandeType = "PROLONGATION"
	DemandeTypeAttestation  DemandeType = "ATTESTATION"
	DemandeTypeAutre        DemandeType = "AUTRE"
)

// DemandeStatus captures the visible lifecycle of a demande.
type DemandeStatus string

const (
	DemandeStatusEnAttente DemandeStatus = "EN_ATTENTE"
	DemandeStatusEnCours   DemandeStatus = "EN_COURS"
	DemandeStatusApprouvee DemandeStatus = "APPROUVEE"
	DemandeStatusRejetee   DemandeStatus = "REJETEE"
	DemandeStatusTerminee  DemandeStatus = "TERMINEE"
)

// WorkflowStepName identifies one stage of the approval chain.
type WorkflowStepName string

const (
	StepStagiaire WorkflowStepName = "STAGIAIRE"
	StepTuteur    WorkflowStepName = "TUTEUR"
	StepRH        WorkflowStepName = "RH"
	StepFinance   WorkflowStepName = "FINANCE"
	StepTermine   WorkflowStepName = "TERMINE"
)

// WorkflowAction records what happened at a step.
type WorkflowAction string

const (
	ActionPending        WorkflowAction = "PENDING"
	ActionApprove        WorkflowAction = "APPROVE"
	ActionReject         WorkflowAction = "REJECT"
	ActionRequestChanges WorkflowAction = "REQUEST_CHANGES"
)

// stepOrder fixes the linear progression of the approval chain.
var stepOrder = map[WorkflowStepName]WorkflowStepName{
	StepStagiaire: StepTuteur,
	StepTuteur:    StepRH,
	StepRH:        StepFinance,
	StepFinance:   StepTermine,
}

// NextStep returns the step following s, or false when s is terminal.
func NextStep(s WorkflowStepName) (WorkflowStepName, bool) {
	next, ok := stepOrder[s]
	return next, ok
}

// ValidStep reports whether s names a known workflow step.
func ValidStep(s WorkflowStepName) bool {
	if s == StepTermine {
		return true
	}
	_, ok := stepOrder[s]
	return ok
}

// Demande is a stagiaire-submitted request subject to multi-party approval.
// Status is derived from the latest workflow step, never set directly by callers.
type Demande struct {
	ID                 string        `db:"id" json:"id"`
	StagiaireID        string        `db:"stagiaire_id" json:"stagiaire_id"`
	TuteurID           *string       `db:"tuteur_id" json:"tuteur_id,omitempty"`
	Type               DemandeType   `db:"type" json:"type"`
	Status             DemandeStatus `db:"status" json:"status"`
	Titre              string        `db:"titre" json:"titre"`
	Description        string        `db:"description" json:"description"`
	DateReponse        *time.Time    `db:"date_reponse" json:"date_reponse,omitempty"`
	CommentaireReponse *string       `db:"commentaire_reponse" json:"commentaire_reponse,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// DemandeDetail joins a demande with the principal identities the
// access-control evaluator needs (owner user id, supervising tuteur).
type DemandeDetail struct {
	Demande
	StagiaireUserID string  `db:"stagiaire_user_id" json:"stagiaire_user_id"`
	TuteurUserID    *string `db:"tuteur_user_id" json:"tuteur_user_id,omitempty"`
}

// WorkflowStep is one append-only history row of a demande's approval chain.
// Rows are immutable once written; the current step of a demande is the
// step of its most recent row.
type WorkflowStep struct {
	ID        int64            `db:"id" json:"id"`
	DemandeID string           `db:"demande_id" json:"demande_id"`
	Step      WorkflowStepName `db:"step" json:"step"`
	Action    WorkflowAction   `db:"action" json:"action"`
	UserID    *string          `db:"user_id" json:"user_id,omitempty"`
	Comments  *string          `db:"comments" json:"comments,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// DemandeFilter constrains listing queries.
type DemandeFilter struct {
	Status          []DemandeStatus
	Type            DemandeType
	StagiaireID     string
	StagiaireUserID string
	TuteurUserID    string
	Page            int
	PageSize        int
}
