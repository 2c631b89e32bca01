package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/thebtf/aura/pkg/models"
)

// Caps keep the digest inside the clarifier budget; the router truncates
// again by token count, these just stop one noisy signal from crowding out
// the others.
const (
	digestScreenCap  = 600
	digestAudioCap   = 400
	digestHistoryCap = 5
)

// BuildCommandContext renders what the assistant currently knows into the
// compact digest handed to the clarifier alongside an ambiguous command.
// Sections appear only when the underlying signal exists.
func BuildCommandContext(snap *models.ContextSnapshot, history []models.CommandHistoryEntry) string {
	var sb strings.Builder

	if snap != nil {
		if snap.AppName != "" {
			sb.WriteString(fmt.Sprintf("Active app: %s\n", snap.AppName))
		}
		if snap.ScreenSnapshot != nil {
			if title := snap.ScreenSnapshot.WindowTitle; title != "" {
				sb.WriteString(fmt.Sprintf("Window: %s\n", title))
			}
			if text := strings.TrimSpace(snap.ScreenSnapshot.ExtractedText); text != "" {
				sb.WriteString(fmt.Sprintf("On screen: %s\n", truncateDigest(text, digestScreenCap)))
			}
		}
		if snap.AudioSession != nil {
			if transcript := strings.TrimSpace(snap.AudioSession.Transcript); transcript != "" {
				sb.WriteString(fmt.Sprintf("Heard recently: %s\n", truncateDigest(transcript, digestAudioCap)))
			}
		}
		if snap.UserIntent != nil && snap.UserIntent.RawCommand != "" {
			sb.WriteString(fmt.Sprintf("Previous command: %s\n", snap.UserIntent.RawCommand))
		}
	}

	if len(history) > 0 {
		sb.WriteString("Recent commands:\n")
		for i, entry := range history {
			if i >= digestHistoryCap {
				break
			}
			sb.WriteString(fmt.Sprintf("- %s\n", entry.Command))
		}
	}

	return strings.TrimSpace(sb.String())
}

// commandContext builds the digest from the engine's current snapshot and
// recent history. History failures just produce a thinner digest.
func (s *Service) commandContext(ctx context.Context) string {
	recent, err := s.historyStore.Recent(ctx, digestHistoryCap)
	if err != nil {
		recent = nil
	}
	return BuildCommandContext(s.engine.Current(), recent)
}

func truncateDigest(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
