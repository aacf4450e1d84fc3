//go:build protogen

package profile

import (
	"context"
	"time"

	"github.com/mediflow/scheduling/libs/grpcx"
	profilev1 "github.com/mediflow/scheduling/protos/gen/profile/v1"
	"github.com/mediflow/scheduling/services/scheduling-service/internal/model"
)

// Client fetches the authoritative profile from the profile service.
// Used to warm the local read model when it has no row yet.
type Client interface {
	FetchProfile(ctx context.Context, providerID string) (ProviderProfile, error)
}

type grpcClient struct {
	client profilev1.ProfileServiceClient
}

func NewClient(addr string) (Client, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcClient{client: profilev1.NewProfileServiceClient(conn)}, nil
}

func (c *grpcClient) FetchProfile(ctx context.Context, providerID string) (ProviderProfile, error) {
	resp, err := c.client.GetProvider(ctx, &profilev1.GetProviderRequest{ProviderId: providerID})
	if err != nil {
		return ProviderProfile{}, err
	}
	prof := ProviderProfile{
		ProviderID:      providerID,
		DisplayName:     resp.GetDisplayName(),
		Timezone:        resp.GetTimezone(),
		ConsultationFee: resp.GetConsultationFee(),
		Hours:           model.WeeklyHours{},
	}
	for _, wh := range resp.GetWorkingHours() {
		day := time.Weekday(wh.GetWeekday())
		prof.Hours[day] = append(prof.Hours[day], model.TimeRange{
			StartMinute: int(wh.GetStartMinute()),
			EndMinute:   int(wh.GetEndMinute()),
		})
	}
	if len(prof.Hours) == 0 {
		prof.Hours = model.DefaultWeeklyHours()
	}
	return prof, nil
}
