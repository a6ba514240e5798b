package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"workdocs-ai/internal/model"
	"workdocs-ai/internal/repository"
)

// In-memory fakes for the backend interfaces. Each embeds optional
// error hooks so tests can fail a single operation.

type fakeSessionStore struct {
	sessions map[uint]*model.Session
	nextID   uint

	createErr       error
	setExpiresErr   error
	extendActiveErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[uint]*model.Session{}, nextID: 1}
}

func (f *fakeSessionStore) add(s *model.Session) *model.Session {
	if s.ID == 0 {
		s.ID = f.nextID
		f.nextID++
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	f.sessions[s.ID] = s
	return s
}

func (f *fakeSessionStore) Create(session *model.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.add(session)
	return nil
}

func (f *fakeSessionStore) ExtendActive(userID uint, now, expiresAt time.Time) (*model.Session, error) {
	if f.extendActiveErr != nil {
		return nil, f.extendActiveErr
	}
	for _, s := range f.sessions {
		if s.UserID == userID && s.Active(now) {
			s.ExpiresAt = expiresAt
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionStore) GetByIDAndUserID(sessionID, userID uint) (*model.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) GetByID(sessionID uint) (*model.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) SetExpiresAt(sessionID uint, expiresAt time.Time) error {
	if f.setExpiresErr != nil {
		return f.setExpiresErr
	}
	if s, ok := f.sessions[sessionID]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (f *fakeSessionStore) SetVectorIndexID(sessionID uint, indexID string) error {
	if s, ok := f.sessions[sessionID]; ok && s.VectorIndexID == "" {
		s.VectorIndexID = indexID
	}
	return nil
}

type fakeDocumentStore struct {
	docs   map[uint]*model.Document
	nextID uint

	createErr  error
	deleteErr  error
	deleteErrs map[uint]error
	lookupErr  error
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[uint]*model.Document{}, nextID: 1}
}

func (f *fakeDocumentStore) add(d *model.Document) *model.Document {
	if d.ID == 0 {
		d.ID = f.nextID
		f.nextID++
	}
	f.docs[d.ID] = d
	return d
}

func (f *fakeDocumentStore) Create(doc *model.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.add(doc)
	return nil
}

func (f *fakeDocumentStore) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	d, ok := f.docs[id]
	if !ok || d.UserID != userID {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (f *fakeDocumentStore) GetByVectorFileIDAndUserID(vectorFileID string, userID uint) (*model.Document, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, d := range f.docs {
		if d.VectorFileID == vectorFileID && d.UserID == userID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeDocumentStore) List(userID uint, filter repository.ListFilter) ([]model.Document, error) {
	var out []model.Document
	for _, d := range f.docs {
		if d.UserID != userID {
			continue
		}
		if filter.SessionID != 0 && d.SessionID != filter.SessionID {
			continue
		}
		if filter.DocType != "" && d.DocType != filter.DocType {
			continue
		}
		if filter.Persistent != nil && d.IsPersistent() != *filter.Persistent {
			continue
		}
		out = append(out, *d)
	}
	sortDocs(out)
	return out, nil
}

func (f *fakeDocumentStore) ListEphemeralBySessionID(sessionID uint) ([]model.Document, error) {
	var out []model.Document
	for _, d := range f.docs {
		if d.SessionID == sessionID && !d.IsPersistent() {
			out = append(out, *d)
		}
	}
	sortDocs(out)
	return out, nil
}

func (f *fakeDocumentStore) ListExpired(now time.Time, limit int) ([]model.Document, error) {
	var out []model.Document
	for _, d := range f.docs {
		if d.IsPersistent() || d.ExpiresAt == nil {
			continue
		}
		if !d.ExpiresAt.After(now) {
			out = append(out, *d)
		}
	}
	sortDocs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDocumentStore) ExtendSessionExpiry(sessionID uint, expiresAt time.Time) error {
	for _, d := range f.docs {
		if d.SessionID == sessionID {
			expiry := expiresAt
			d.ExpiresAt = &expiry
		}
	}
	return nil
}

func (f *fakeDocumentStore) Delete(id uint) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if err, ok := f.deleteErrs[id]; ok {
		return err
	}
	delete(f.docs, id)
	return nil
}

func listFilter(sessionID uint, docType string, persistent *bool) repository.ListFilter {
	return repository.ListFilter{SessionID: sessionID, DocType: docType, Persistent: persistent}
}

func sortDocs(docs []model.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

type fakeRegulationStore struct {
	regs map[string]*model.Regulation
}

func newFakeRegulationStore() *fakeRegulationStore {
	return &fakeRegulationStore{regs: map[string]*model.Regulation{}}
}

func (f *fakeRegulationStore) add(r *model.Regulation) {
	f.regs[r.VectorFileID] = r
}

func (f *fakeRegulationStore) List() ([]model.Regulation, error) {
	var out []model.Regulation
	for _, r := range f.regs {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRegulationStore) GetByVectorFileID(vectorFileID string) (*model.Regulation, error) {
	r, ok := f.regs[vectorFileID]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

type fakeMessageStore struct {
	messages map[uint][]model.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: map[uint][]model.Message{}}
}

func (f *fakeMessageStore) ListBySessionID(sessionID uint, limit int) ([]model.Message, error) {
	msgs := f.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeMessageStore) ListRecentBySessionID(sessionID uint, limit int) ([]model.Message, error) {
	return f.ListBySessionID(sessionID, limit)
}

type fakeBlobStorage struct {
	objects map[string][]byte

	putErr    error
	removeErr map[string]error
	removeAll error
	removed   []string
}

func newFakeBlobStorage() *fakeBlobStorage {
	return &fakeBlobStorage{objects: map[string][]byte{}}
}

func (f *fakeBlobStorage) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[path] = data
	return nil
}

func (f *fakeBlobStorage) Get(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeBlobStorage) Remove(ctx context.Context, paths []string) error {
	if f.removeAll != nil {
		return f.removeAll
	}
	for _, p := range paths {
		if err, ok := f.removeErr[p]; ok {
			return err
		}
		delete(f.objects, p)
		f.removed = append(f.removed, p)
	}
	return nil
}

type fakeVectorIndex struct {
	deleteErr  error
	deleteErrs map[string]error // keyed by index file id
	deleted    []string
}

func (f *fakeVectorIndex) Delete(ctx context.Context, indexID, indexFileID, fileID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if err, ok := f.deleteErrs[indexFileID]; ok {
		return err
	}
	f.deleted = append(f.deleted, indexFileID)
	return nil
}

type fakeIndexJobPublisher struct {
	publishErr error
	published  []uint
}

func (f *fakeIndexJobPublisher) PublishIndexJob(ctx context.Context, documentID uint) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, documentID)
	return nil
}
