package store

import (
	"context"
	"fmt"

	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultChannels is the starter set for a fresh deployment.
func DefaultChannels() []domain.Channel {
	return []domain.Channel{
		{ID: "c-1", Name: "Final Review", Type: domain.ChannelText, Course: "CSE 2320 - Data Structures"},
		{ID: "c-2", Name: "Last Minute Q&A", Type: domain.ChannelText, Course: "CSE 3318 - Algorithms"},
		{ID: "c-3", Name: "Group Study", Type: domain.ChannelText, Course: "CSE 3320 - Operating Systems"},
		{ID: "c-4", Name: "Project Help", Type: domain.ChannelText, Course: "CSE 3330 - Databases"},
		{ID: "v-1", Name: "Study Room A", Type: domain.ChannelVoice, Course: "General Study"},
		{ID: "v-2", Name: "Silent Focus", Type: domain.ChannelVoice, Course: "Quiet Study Zone"},
	}
}

// Seed writes DefaultChannels when the store has no channels, or always when
// force is set. It reports whether anything was written.
func Seed(ctx context.Context, s ChannelStore, createdBy string, force bool) (bool, error) {
	existing, err := s.GetAllChannels(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 && !force {
		return false, nil
	}
	for _, ch := range DefaultChannels() {
		ch.CreatedBy = createdBy
		if err := s.CreateChannel(ctx, ch); err != nil {
			return false, fmt.Errorf("seed %s: %w", ch.ID, err)
		}
	}
	log.Info().Str("module", "store").Bool("force", force).Int("count", len(DefaultChannels())).Msg("channels seeded")
	return true, nil
}
