package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aero-portal/maintenance-portal/inspection-backend/pkg/pdf"
	"aero-portal/maintenance-portal/inspection-backend/pkg/storage"
)

// MockGenerator is a mock implementation of pdf.Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, templateID string, data interface{}) (io.ReadSeeker, error) {
	args := m.Called(ctx, templateID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadSeeker), args.Error(1)
}

func newTestRenderer(gen pdf.Generator) (Renderer, *storage.MemoryClient) {
	client := storage.NewMemoryClient()
	r := NewRenderer(NewPDFService(gen), NewStorageProvider(client, "documents"), zap.NewNop())
	return r, client
}

func TestRenderStoresDocument(t *testing.T) {
	ctx := context.Background()
	gen := new(MockGenerator)
	gen.On("Generate", ctx, pdf.TemplateReceptionForm, "payload").
		Return(strings.NewReader("%PDF-1.3 test"), nil)

	r, client := newTestRenderer(gen)

	rendered, err := r.Render(ctx, "ref-1", pdf.TemplateReceptionForm, "payload")
	require.NoError(t, err)
	assert.Equal(t, "ref-1", rendered.Ref)
	assert.Equal(t, "documents/reception_form/ref-1.pdf", rendered.StorageKey)
	assert.Equal(t, int64(len("%PDF-1.3 test")), rendered.Size)
	assert.Equal(t, 1, client.Len())

	body, err := r.Open(ctx, rendered.StorageKey)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(data))

	gen.AssertExpectations(t)
}

func TestRenderMintsUniqueRefs(t *testing.T) {
	ctx := context.Background()
	gen := new(MockGenerator)
	gen.On("Generate", ctx, pdf.TemplateReceptionForm, mock.Anything).
		Return(strings.NewReader("a"), nil).Once()
	gen.On("Generate", ctx, pdf.TemplateReceptionForm, mock.Anything).
		Return(strings.NewReader("b"), nil).Once()

	r, _ := newTestRenderer(gen)

	first, err := r.Render(ctx, "", pdf.TemplateReceptionForm, 1)
	require.NoError(t, err)
	second, err := r.Render(ctx, "", pdf.TemplateReceptionForm, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Ref)
	assert.NotEqual(t, first.Ref, second.Ref)
}

func TestRenderFailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	gen := new(MockGenerator)
	gen.On("Generate", ctx, pdf.TemplateReceptionForm, nil).Return(nil, pdf.ErrInvalidPayload)

	r, client := newTestRenderer(gen)

	rendered, err := r.Render(ctx, "ref-2", pdf.TemplateReceptionForm, nil)
	assert.Nil(t, rendered)
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.Equal(t, 0, client.Len())
	gen.AssertExpectations(t)
}

func TestRenderRejectsUnconfiguredTemplate(t *testing.T) {
	gen := new(MockGenerator)
	r, client := newTestRenderer(gen)

	_, err := r.Render(context.Background(), "ref-4", "certificate", nil)
	assert.ErrorIs(t, err, ErrRenderFailed)
	assert.Equal(t, 0, client.Len())
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRenderReportsContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	r, client := newTestRenderer(pdf.NewGenerator(pdf.DefaultOptions()))

	_, err := r.Render(ctx, "x", pdf.TemplateReceptionForm, pdf.ReceptionForm{DocumentRef: "x"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, client.Len())
}

func TestDiscardAndOpenMissing(t *testing.T) {
	ctx := context.Background()
	gen := new(MockGenerator)
	gen.On("Generate", ctx, pdf.TemplateReceptionForm, mock.Anything).
		Return(strings.NewReader("content"), nil)

	r, client := newTestRenderer(gen)

	rendered, err := r.Render(ctx, "ref-3", pdf.TemplateReceptionForm, "payload")
	require.NoError(t, err)

	require.NoError(t, r.Discard(ctx, rendered.StorageKey))
	assert.Equal(t, 0, client.Len())

	_, err = r.Open(ctx, rendered.StorageKey)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestURL(t *testing.T) {
	r, _ := newTestRenderer(new(MockGenerator))

	url, err := r.URL(context.Background(), "documents/reception_form/abc.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://documents/documents/reception_form/abc.pdf?expires=900", url)
}
