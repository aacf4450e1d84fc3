package profile

import (
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

// ProviderProfile is the scheduling service's read model of a provider:
// the weekly working-hours template and the base consultation fee. The
// profile subsystem owns the data; this service holds a snapshot kept
// fresh by consuming profile update events, falling back to defaults for
// providers that have not been synced yet.
type ProviderProfile struct {
	ProviderID      string
	DisplayName     string
	Timezone        string
	ConsultationFee float64
	Hours           model.WeeklyHours
}

// Default returns the fallback profile used when no row exists yet:
// Mon-Fri 09:00-17:00 and a zero fee (cancellations of unsynced providers
// yield not_applicable refunds).
func Default(providerID string) ProviderProfile {
	return ProviderProfile{
		ProviderID: providerID,
		Timezone:   "UTC",
		Hours:      model.DefaultWeeklyHours(),
	}
}
