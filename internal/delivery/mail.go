package delivery

import (
	"context"
	"fmt"
	"time"

	"recordsdesk/internal/models"
	"recordsdesk/internal/pdf"
)

// MailSender renders a printable letter. Staff print and post it from the
// snail-mail task, then mark the communication delivered.
type MailSender struct {
	letters       pdf.Generator
	returnName    string
	returnAddress string
}

func NewMailSender(g pdf.Generator, returnName, returnAddress string) *MailSender {
	return &MailSender{letters: g, returnName: returnName, returnAddress: returnAddress}
}

func (s *MailSender) Send(ctx context.Context, out Outbound) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	path, err := s.letters.GenerateLetter(pdf.LetterData{
		RequestID:       out.RequestID,
		CommunicationID: out.CommunicationID,
		ReturnName:      s.returnName,
		ReturnAddress:   s.returnAddress,
		AgencyName:      out.RecipientName,
		AgencyAddress:   out.Address,
		Subject:         out.Subject,
		Body:            out.Body,
		Date:            time.Now(),
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("render letter: %w", err)
	}
	return Receipt{ID: "letter-" + path, Status: models.DeliveryPending, Artifact: path}, nil
}
