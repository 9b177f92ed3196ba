package models

// ContractScope selects which record a contract is generated for.
type ContractScope string

const (
	ScopeBooking      ContractScope = "booking"
	ScopeVerification ContractScope = "verification"
)

type ContractStage string

const (
	StageCreated   ContractStage = "created"
	StagePreviewed ContractStage = "previewed"
	StageSigned    ContractStage = "signed"
)

type Contract struct {
	ID      string        `json:"id"`
	Scope   ContractScope `json:"scope"`
	OwnerID string        `json:"ownerId"`
	Stage   ContractStage `json:"stage"`
}
