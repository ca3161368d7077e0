package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
)

// SenderMock mocks the whatsapp.Sender interface
type SenderMock struct {
	mock.Mock
}

// SendText mocks the SendText method
func (m *SenderMock) SendText(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

// SendInteractive mocks the SendInteractive method
func (m *SenderMock) SendInteractive(ctx context.Context, to string, msg whatsapp.Interactive) (string, error) {
	args := m.Called(ctx, to, msg)
	return args.String(0), args.Error(1)
}

// SendImage mocks the SendImage method
func (m *SenderMock) SendImage(ctx context.Context, to, link, caption string) (string, error) {
	args := m.Called(ctx, to, link, caption)
	return args.String(0), args.Error(1)
}
