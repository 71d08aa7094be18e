package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"recordsdesk/internal/inbound"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

// IntakeService files received mail against requests. Mail whose reply
// address names no existing request becomes an orphan for staff to sort.
type IntakeService interface {
	Ingest(ctx context.Context, msg *inbound.Message) (*models.Communication, error)
}

type intakeService struct {
	*core
}

func NewIntakeService(d Deps) IntakeService {
	return &intakeService{core: newCore(d)}
}

func (s *intakeService) Ingest(ctx context.Context, msg *inbound.Message) (*models.Communication, error) {
	body := msg.Text
	if strings.TrimSpace(body) == "" {
		body = msg.HTML
	}
	comm := &models.Communication{
		Direction: models.DirectionInbound,
		Subject:   msg.Subject,
		Body:      body,
		Status:    models.DeliveryGood,
		Channel:   models.ChannelEmail,
		Address:   msg.From,
		Receipt:   msg.MessageID,
		SentAt:    msg.Date,
	}
	if comm.SentAt.IsZero() {
		comm.SentAt = s.now()
	}

	var tasks []models.Task
	var written []string
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		if msg.MessageID != "" {
			if dup, err := r.Communications.GetByReceipt(ctx, msg.MessageID); err == nil {
				return fmt.Errorf("%w: message %s already filed as communication %d", ErrNoop, msg.MessageID, dup.ID)
			} else if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
		}

		var req *models.Request
		reason := "no reply address"
		if id, ok := msg.RequestID(s.Delivery.ReplyPrefix, s.Delivery.ReplyDomain); ok {
			found, err := r.Requests.GetForUpdate(ctx, id)
			switch {
			case err == nil:
				req = found
			case errors.Is(err, repositories.ErrNotFound):
				reason = fmt.Sprintf("request %d does not exist", id)
			default:
				return err
			}
		}
		if req != nil {
			comm.RequestID = &req.ID
			comm.ToUserID = &req.UserID
		}
		if err := r.Communications.Create(ctx, comm); err != nil {
			return err
		}

		for i, a := range msg.Attachments {
			f, err := s.storeAttachment(comm.ID, i, a)
			if err != nil {
				return err
			}
			written = append(written, f.Path)
			if err := r.Files.Create(ctx, f); err != nil {
				return err
			}
		}

		task := &models.Task{CommunicationID: &comm.ID}
		if req != nil {
			task.Kind = models.TaskResponse
			task.RequestID = &req.ID
			task.AgencyID = &req.AgencyID
			task.Payload = models.ResponsePayload{}
			if err := r.Agencies.SetStale(ctx, req.AgencyID, false); err != nil {
				return err
			}
		} else {
			task.Kind = models.TaskOrphan
			task.Payload = models.OrphanPayload{Address: strings.Join(msg.To, ", "), Reason: reason}
		}
		if err := r.Tasks.Create(ctx, task); err != nil {
			return err
		}
		tasks = append(tasks, *task)
		return nil
	})
	if err != nil {
		for _, p := range written {
			_ = os.Remove(filepath.Join(s.FilesRoot, filepath.FromSlash(p)))
		}
		log.Printf("[intake][err] message_id=%s err=%v", msg.MessageID, err)
		return nil, err
	}
	s.announce(tasks)
	if comm.RequestID != nil {
		log.Printf("[intake][matched] comm=%d request=%d files=%d", comm.ID, *comm.RequestID, len(written))
	} else {
		log.Printf("[intake][orphan] comm=%d to=%v", comm.ID, msg.To)
	}
	return comm, nil
}

// storeAttachment writes a to <root>/inbound/<comm>/<n>_<name> and returns
// its file row; Path is relative to the files root.
func (s *intakeService) storeAttachment(commID int64, n int, a inbound.Attachment) (*models.File, error) {
	name := fmt.Sprintf("%02d_%s", n+1, safeFilename(a.Name))
	rel := path.Join("inbound", fmt.Sprint(commID), name)
	full := filepath.Join(s.FilesRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	if err := os.WriteFile(full, a.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write attachment: %w", err)
	}
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &models.File{
		CommunicationID: commID,
		Name:            a.Name,
		Path:            rel,
		Size:            int64(len(a.Data)),
		MIMEType:        ct,
		CreatedAt:       s.now(),
	}, nil
}

func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0 || r < 32:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "attachment"
	}
	return name
}
