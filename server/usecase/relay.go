package usecase

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/zmahdi/wasla/server/domain"
)

// PostMessage validates, persists and broadcasts a chat message to every
// current member of the room, including the sender. The durability/delivery
// order follows cfg.RelayMode: persist-first fails the send on a write error,
// broadcast-first delivers immediately and persists in the background with
// failures logged.
func (u *Usecase) PostMessage(m domain.Message) (domain.Message, error) {
	if m.Room == "" || m.Username == "" {
		return domain.Message{}, fmt.Errorf("%w: room and username are required", domain.ErrInvalidArgument)
	}
	if m.Type == "" {
		m.Type = domain.MessageText
	}
	switch m.Type {
	case domain.MessageFile:
		if m.FileID == 0 && m.File != nil {
			m.FileID = m.File.ID
		}
		if m.FileID == 0 {
			return domain.Message{}, fmt.Errorf("%w: file reference is required for file messages", domain.ErrInvalidArgument)
		}
	case domain.MessageText:
		if m.Text == "" {
			return domain.Message{}, fmt.Errorf("%w: text is required for text messages", domain.ErrInvalidArgument)
		}
	default:
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q", domain.ErrInvalidArgument, m.Type)
	}

	// IDs are assigned before persistence so broadcast-first delivery still
	// carries the durable identity.
	m.ID = ulid.Make().String()
	m.Timestamp = time.Now().UTC()

	if m.Type == domain.MessageFile {
		meta, err := u.repo.FileByID(m.FileID)
		if err != nil {
			u.logger.Warn("file metadata missing for file message", "file_id", m.FileID, "err", err)
		} else {
			ref := meta.Ref()
			m.File = &ref
		}
	}

	switch u.cfg.RelayMode {
	case domain.RelayBroadcastFirst:
		u.broadcastRoom(m.Room, domain.NewEvent(domain.EventMessage, m), "")
		go func(saved domain.Message) {
			if err := u.repo.SaveMessage(saved); err != nil {
				u.logger.Error("failed to persist broadcast message",
					"id", saved.ID, "room", saved.Room, "err", err)
			}
		}(m)
	default:
		if err := u.repo.SaveMessage(m); err != nil {
			return domain.Message{}, err
		}
		u.broadcastRoom(m.Room, domain.NewEvent(domain.EventMessage, m), "")
	}
	return m, nil
}

// History returns the room's latest messages in chronological ascending
// order. limit is clamped to the configured cap.
func (u *Usecase) History(room string, limit int) ([]domain.Message, error) {
	if room == "" {
		return nil, fmt.Errorf("%w: room is required", domain.ErrInvalidArgument)
	}
	if limit <= 0 || limit > u.cfg.HistoryLimit {
		limit = u.cfg.HistoryLimit
	}
	messages, err := u.repo.MessagesByRoom(room, limit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
