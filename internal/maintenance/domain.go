package maintenance

import (
	"time"

	"github.com/Vitorhlem/TruCar/internal/inventory"
)

// Status enumerates the workshop workflow states of a request.
type Status string

const (
	StatusPending    Status = "PENDENTE"
	StatusApproved   Status = "APROVADA"
	StatusRejected   Status = "RECUSADA"
	StatusInProgress Status = "EM_ANDAMENTO"
	StatusDone       Status = "CONCLUIDA"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Category tags the nature of the request.
type Category string

const (
	CategoryCorrective Category = "CORRETIVA"
	CategoryPreventive Category = "PREVENTIVA"
)

// Request is a maintenance ticket opened against a vehicle.
type Request struct {
	ID                 int64
	OrganizationID     int64
	VehicleID          int64
	ReportedByID       int64
	ApproverID         int64
	ProblemDescription string
	Category           Category
	Status             Status
	ManagerNotes       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Comment is a human-readable log line attached to a request. Substitution
// and reversal workflows append their summaries here.
type Comment struct {
	ID             int64
	RequestID      int64
	UserID         int64
	OrganizationID int64
	Text           string
	FileURL        string
	CreatedAt      time.Time

	// AuthorName is populated on reads.
	AuthorName string
}

// PartChange is the structured record of one component substitution
// performed under a request. It links the removed and installed
// installation records and carries the one-shot reversal flag.
type PartChange struct {
	ID                   int64
	RequestID            int64
	UserID               int64
	Notes                string
	ComponentRemovedID   int64
	ComponentInstalledID int64
	IsReverted           bool
	CreatedAt            time.Time
}

// CreateRequestInput opens a new ticket.
type CreateRequestInput struct {
	OrganizationID     int64
	VehicleID          int64
	ReportedByID       int64
	ProblemDescription string
	Category           Category
}

// ReplaceInput describes a component substitution under a request.
type ReplaceInput struct {
	RequestID           int64
	OrganizationID      int64
	ComponentToRemoveID int64
	NewItemID           int64
	// OldItemStatus is the destination of the removed unit, END_OF_LIFE
	// when empty.
	OldItemStatus inventory.ItemStatus
	Notes         string
	ActorID       int64
	ActorName     string
}

// RevertInput undoes a substitution.
type RevertInput struct {
	ChangeID       int64
	OrganizationID int64
	ActorID        int64
	ActorName      string
}

// RequestFilter filters ticket listings.
type RequestFilter struct {
	OrganizationID int64
	Search         string
	Offset         int
	Limit          int
}
