package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workdocs-ai/internal/model"
)

type stubDocumentCleaner struct {
	result *CleanupResult
	calls  []uint
}

func (s *stubDocumentCleaner) CleanupDocument(ctx context.Context, doc *model.Document) *CleanupResult {
	s.calls = append(s.calls, doc.ID)
	if s.result != nil {
		return s.result
	}
	return newCleanupResult()
}

type documentFixture struct {
	svc       *DocumentService
	docs      *fakeDocumentStore
	sessions  *fakeSessionStore
	blobs     *fakeBlobStorage
	cleaner   *stubDocumentCleaner
	publisher *fakeIndexJobPublisher
}

func newDocumentFixture() *documentFixture {
	f := &documentFixture{
		docs:      newFakeDocumentStore(),
		sessions:  newFakeSessionStore(),
		blobs:     newFakeBlobStorage(),
		cleaner:   &stubDocumentCleaner{},
		publisher: &fakeIndexJobPublisher{},
	}
	f.svc = NewDocumentService(f.docs, f.sessions, f.blobs, f.cleaner, f.publisher, "uploads/")
	return f
}

func TestDocumentUpload_PersistentDocument(t *testing.T) {
	f := newDocumentFixture()

	doc, err := f.svc.Upload(context.Background(), UploadInput{
		UserID:   1,
		FileName: "contract.pdf",
		DocType:  "contract",
		MimeType: "application/pdf",
		Data:     []byte("pdf bytes"),
	})
	require.NoError(t, err)

	assert.True(t, doc.IsPersistent())
	assert.Nil(t, doc.ExpiresAt)
	assert.Equal(t, model.IndexTagMyDocs, doc.IndexTag)
	assert.Contains(t, f.blobs.objects, doc.StoragePath)
	assert.Equal(t, []uint{doc.ID}, f.publisher.published)
}

func TestDocumentUpload_SessionDocumentInheritsExpiry(t *testing.T) {
	f := newDocumentFixture()
	session := f.sessions.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	doc, err := f.svc.Upload(context.Background(), UploadInput{
		UserID:    1,
		SessionID: session.ID,
		FileName:  "payslip.pdf",
		DocType:   "payslip",
		Data:      []byte("data"),
	})
	require.NoError(t, err)

	assert.False(t, doc.IsPersistent())
	require.NotNil(t, doc.ExpiresAt)
	assert.Equal(t, session.ExpiresAt.Unix(), doc.ExpiresAt.Unix())
	assert.Equal(t, model.IndexTagSession, doc.IndexTag)
}

func TestDocumentUpload_RejectedBeforeAnyWrite(t *testing.T) {
	f := newDocumentFixture()
	expired := f.sessions.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	foreign := f.sessions.add(&model.Session{
		UserID:    2,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	cases := []struct {
		name    string
		input   UploadInput
		wantErr error
	}{
		{"expired session", UploadInput{UserID: 1, SessionID: expired.ID, FileName: "a.pdf", Data: []byte("x")}, ErrSessionExpired},
		{"foreign session", UploadInput{UserID: 1, SessionID: foreign.ID, FileName: "a.pdf", Data: []byte("x")}, ErrSessionNotFound},
		{"missing session", UploadInput{UserID: 1, SessionID: 99, FileName: "a.pdf", Data: []byte("x")}, ErrSessionNotFound},
		{"empty data", UploadInput{UserID: 1, FileName: "a.pdf"}, ErrInvalidInput},
		{"empty name", UploadInput{UserID: 1, Data: []byte("x")}, ErrInvalidInput},
		{"unknown doc type", UploadInput{UserID: 1, FileName: "a.pdf", DocType: "novel", Data: []byte("x")}, ErrInvalidInput},
		{"oversized", UploadInput{UserID: 1, FileName: "a.pdf", Data: bytes.Repeat([]byte("x"), maxUploadSize+1)}, ErrDocumentTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Upload(context.Background(), tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	assert.Empty(t, f.blobs.objects)
	assert.Empty(t, f.docs.docs)
	assert.Empty(t, f.publisher.published)
}

func TestDocumentUpload_RowFailureCompensatesBlob(t *testing.T) {
	f := newDocumentFixture()
	f.docs.createErr = errors.New("insert failed")

	_, err := f.svc.Upload(context.Background(), UploadInput{
		UserID:   1,
		FileName: "contract.pdf",
		Data:     []byte("data"),
	})
	require.Error(t, err)

	assert.Empty(t, f.blobs.objects)
	assert.Empty(t, f.docs.docs)
}

func TestDocumentUpload_PublishFailureRollsBackEverything(t *testing.T) {
	f := newDocumentFixture()
	f.publisher.publishErr = errors.New("broker down")

	_, err := f.svc.Upload(context.Background(), UploadInput{
		UserID:   1,
		FileName: "contract.pdf",
		Data:     []byte("data"),
	})
	require.Error(t, err)

	assert.Empty(t, f.blobs.objects)
	assert.Empty(t, f.docs.docs)
}

func TestDocumentUpload_DefaultsDocTypeToOther(t *testing.T) {
	f := newDocumentFixture()

	doc, err := f.svc.Upload(context.Background(), UploadInput{
		UserID:   1,
		FileName: "misc.txt",
		Data:     []byte("data"),
	})
	require.NoError(t, err)

	assert.Equal(t, "other", doc.DocType)
}

func TestDocumentGet_OwnerScoped(t *testing.T) {
	f := newDocumentFixture()
	doc := f.docs.add(&model.Document{UserID: 1, FileName: "a.pdf"})

	got, err := f.svc.Get(1, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)

	_, err = f.svc.Get(2, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDocumentDelete_RunsCleanup(t *testing.T) {
	f := newDocumentFixture()
	doc := f.docs.add(&model.Document{UserID: 1, FileName: "a.pdf"})
	f.cleaner.result = &CleanupResult{
		Deleted: PhaseCounts{Storage: 1, VectorStore: 1, Database: 1},
		Errors:  []CleanupError{},
	}

	result, err := f.svc.Delete(context.Background(), 1, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, []uint{doc.ID}, f.cleaner.calls)
	assert.Equal(t, 1, result.Deleted.Database)
}

func TestDocumentDelete_ForeignDocumentNotFound(t *testing.T) {
	f := newDocumentFixture()
	doc := f.docs.add(&model.Document{UserID: 2, FileName: "a.pdf"})

	_, err := f.svc.Delete(context.Background(), 1, doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Empty(t, f.cleaner.calls)
}

func TestDocumentList_Filters(t *testing.T) {
	f := newDocumentFixture()
	f.docs.add(&model.Document{UserID: 1, SessionID: 5, DocType: "payslip", FileName: "p.pdf"})
	f.docs.add(&model.Document{UserID: 1, DocType: "contract", FileName: "c.pdf"})
	f.docs.add(&model.Document{UserID: 2, DocType: "contract", FileName: "x.pdf"})

	all, err := f.svc.List(1, listFilter(0, "", nil))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	persistent := true
	onlyPersistent, err := f.svc.List(1, listFilter(0, "", &persistent))
	require.NoError(t, err)
	require.Len(t, onlyPersistent, 1)
	assert.Equal(t, "c.pdf", onlyPersistent[0].FileName)

	bySession, err := f.svc.List(1, listFilter(5, "", nil))
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "p.pdf", bySession[0].FileName)
}
