package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/services/display"
)

// DefaultInterval is the spacing between two reminders
const DefaultInterval = 5 * time.Second

// Roster reports the live status of an entry
type Roster interface {
	StatusOf(name string) (model.Status, bool)
}

// Directory resolves roster names to participants
type Directory interface {
	Resolve(ctx context.Context, name string) (*model.Participant, error)
	IsEligible(ctx context.Context, id model.ParticipantID) (bool, error)
}

// Config holds reminder settings
type Config struct {
	Enabled  bool
	Interval time.Duration

	// PresenceChannel is the channel participants are asked to join
	PresenceChannel model.ChannelID
	// RosterChannel is where the roster lists are shown
	RosterChannel model.ChannelID
	// Community is shown as the reminder title
	Community string
}

// Service sends direct reminders to participants who signed up but are
// not connected
type Service struct {
	target    display.Target
	directory Directory
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger
}

// New creates a reminder service
func New(target display.Target, directory Directory, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Service{
		target:    target,
		directory: directory,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "reminder")),
	}
}

// Enabled reports whether reminders are switched on
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// DirectChannel is the channel that reaches one participant privately
func DirectChannel(id model.ParticipantID) model.ChannelID {
	return model.ChannelID("dm:" + string(id))
}

// SendReminders reminds each of names that is still disconnected and
// eligible. Status is re-checked right before each send, so someone who
// connects while reminders are going out is skipped. It returns the
// number of reminders sent.
func (s *Service) SendReminders(ctx context.Context, names []string, roster Roster) int {
	if !s.cfg.Enabled {
		return 0
	}

	sent := 0
	for _, name := range names {
		status, ok := roster.StatusOf(name)
		if !ok || status != model.StatusDisconnected {
			continue
		}

		participant, err := s.directory.Resolve(ctx, name)
		if err != nil {
			s.logger.Debug("no participant for roster entry, not reminded", slog.String("name", name))
			continue
		}
		eligible, err := s.directory.IsEligible(ctx, participant.ID)
		if err != nil || !eligible {
			s.logger.Debug("participant not eligible, not reminded", slog.String("name", name))
			continue
		}

		if sent > 0 {
			select {
			case <-ctx.Done():
				return sent
			case <-s.clock.After(s.cfg.Interval):
			}
			// The wait may have outlived the disconnection
			if status, ok := roster.StatusOf(name); !ok || status != model.StatusDisconnected {
				continue
			}
		}

		if _, err := s.target.Send(ctx, DirectChannel(participant.ID), s.message()); err != nil {
			s.logger.Warn("failed to send reminder",
				slog.String("participant_id", string(participant.ID)),
				slog.Any("error", err),
			)
			continue
		}
		sent++
		s.logger.Info("reminder sent", slog.String("participant_id", string(participant.ID)))
	}
	return sent
}

func (s *Service) message() model.Message {
	title := s.cfg.Community
	if title == "" {
		title = "Roster"
	}
	return model.Message{
		Title: title,
		Lines: []string{
			"📢 The session has started.",
			"⏳ Join as soon as you can so you don't lose your place.",
			fmt.Sprintf("🎤 Channel: %s", s.cfg.PresenceChannel),
			"🔔 Your current status: " + display.DisconnectedLabel,
			fmt.Sprintf("📌 Check your status in: %s", s.cfg.RosterChannel),
		},
		Footer: "Sent at " + s.clock.Now().Format("15:04:05 02-01-2006"),
	}
}
