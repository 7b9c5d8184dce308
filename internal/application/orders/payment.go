package orders

import (
	"strings"

	"farmdirect-backend/internal/domain"

	"github.com/google/uuid"
)

const (
	PaymentPending    = "pending"
	PaymentAuthorized = "authorized"
	PaymentVoided     = "voided"
)

// authorize is the mock gateway: cash on delivery stays pending, prepaid
// methods are authorized immediately with a fake reference. Nothing is captured.
func authorize(method string, amount float64) domain.Payment {
	p := domain.Payment{Method: method, Amount: amount, Status: PaymentPending}
	if method != domain.PaymentCOD {
		p.Status = PaymentAuthorized
		p.Reference = "mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	return p
}
