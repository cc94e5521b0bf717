package landlord

// PaymentPreference selects the rail when a landlord has no usable config of
// their own for the requested kind.
type PaymentPreference string

const (
	PreferPlatform PaymentPreference = "platform" // settle via shared platform paybill
	PreferOwn      PaymentPreference = "own"      // own rails only, no platform fallback
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

type Landlord struct {
	ID                  int64
	Name                string
	Phone               string
	PaymentPreference   PaymentPreference
	MessagingAutomation bool // gates tenant SMS receipts
	Status              Status
}

func (l *Landlord) IsActive() bool { return l.Status == StatusActive }
