package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"recordsdesk/internal/delivery"
	"recordsdesk/internal/models"
	"recordsdesk/internal/repositories"
)

// DeliveryService reconciles asynchronous delivery reports with the
// communications they describe.
type DeliveryService interface {
	Reconcile(ctx context.Context, ev delivery.StatusEvent) (*models.Communication, error)
}

type deliveryService struct {
	*core
}

func NewDeliveryService(d Deps) DeliveryService {
	return &deliveryService{core: newCore(d)}
}

// Reconcile applies a good/error report to a pending communication. Reports
// for anything already settled are ErrNoop; a resend makes it pending again.
// A failure queues a flagged task so staff can retry by another channel.
func (s *deliveryService) Reconcile(ctx context.Context, ev delivery.StatusEvent) (*models.Communication, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var comm *models.Communication
	var tasks []models.Task
	err := s.Store.InTx(ctx, func(r *repositories.Repos) error {
		var err error
		if ev.CommunicationID != 0 {
			comm, err = r.Communications.GetForUpdate(ctx, ev.CommunicationID)
		} else {
			comm, err = r.Communications.GetByReceipt(ctx, ev.Receipt)
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: communication for %s", ErrNotFound, eventRef(ev))
		}
		if err != nil {
			return err
		}
		if ev.CommunicationID != 0 && ev.Receipt != "" && comm.Receipt != ev.Receipt {
			return invalid("receipt %q does not belong to communication %d", ev.Receipt, comm.ID)
		}
		if comm.Status != models.DeliveryPending {
			return fmt.Errorf("%w: communication %d already %s", ErrNoop, comm.ID, comm.Status)
		}
		if err := r.Communications.UpdateStatus(ctx, comm.ID, ev.Status); err != nil {
			return err
		}
		comm.Status = ev.Status

		if ev.Status != models.DeliveryError {
			return nil
		}
		text := fmt.Sprintf("Delivery of communication %d by %s to %s failed", comm.ID, comm.Channel, comm.Address)
		if ev.Detail != "" {
			text += ": " + ev.Detail
		}
		task := &models.Task{
			Kind:            models.TaskFlagged,
			RequestID:       comm.RequestID,
			CommunicationID: &comm.ID,
			Payload:         models.FlaggedPayload{Text: text, Category: "delivery_error"},
		}
		if err := r.Tasks.Create(ctx, task); err != nil {
			return err
		}
		tasks = append(tasks, *task)
		return nil
	})
	if err != nil {
		log.Printf("[delivery][reconcile][err] %s status=%s err=%v", eventRef(ev), ev.Status, err)
		return nil, err
	}
	s.announce(tasks)
	log.Printf("[delivery][reconcile][ok] comm=%d status=%s", comm.ID, comm.Status)
	return comm, nil
}

func eventRef(ev delivery.StatusEvent) string {
	if ev.CommunicationID != 0 {
		return fmt.Sprintf("id=%d", ev.CommunicationID)
	}
	return "receipt=" + ev.Receipt
}
