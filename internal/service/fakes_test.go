package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"bookvault/internal/domain"
	"bookvault/internal/repository"
	s3svc "bookvault/internal/service/s3"
)

// memDB — общее in-memory хранилище для тестовых фейков
type memDB struct {
	mu         sync.Mutex
	records    map[int64]*domain.FileRecord
	history    map[int64]*domain.HistoryEntry // ключ — source_record_id
	accessLogs []domain.AccessLogEntry
	nextRecID  int64
	nextHistID int64

	failInsertRecord bool
}

func newMemDB() *memDB {
	return &memDB{
		records: make(map[int64]*domain.FileRecord),
		history: make(map[int64]*domain.HistoryEntry),
	}
}

func copyRecord(rec *domain.FileRecord) *domain.FileRecord {
	c := *rec
	return &c
}

// memFileStore реализует repository.FileStore поверх memDB.
// Транзакции эмулируются глобальной блокировкой: операции внутри InTx
// видят согласованное состояние, как при сериализации в Postgres.
type memFileStore struct {
	db *memDB
}

func (s *memFileStore) GetCurrent(ctx context.Context, key domain.GroupKey) (*domain.FileRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, rec := range s.db.records {
		if rec.Group() == key && rec.IsCurrent {
			return copyRecord(rec), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memFileStore) GetByID(ctx context.Context, id int64) (*domain.FileRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec, ok := s.db.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *memFileStore) ListVersions(ctx context.Context, key domain.GroupKey) ([]domain.FileRecord, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.liveVersionsLocked(key), nil
}

func (s *memFileStore) liveVersionsLocked(key domain.GroupKey) []domain.FileRecord {
	var out []domain.FileRecord
	for _, rec := range s.db.records {
		if rec.Group() == key {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}

func (s *memFileStore) ListUploads(ctx context.Context, ownerID int64, folder string, limit, offset int) ([]domain.FileRecord, int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.FileRecord
	for _, rec := range s.db.records {
		if rec.OwnerID != ownerID || !rec.IsCurrent {
			continue
		}
		if folder != "" && rec.FolderPath != folder {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memFileStore) DeleteGroup(ctx context.Context, key domain.GroupKey) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var deleted int64
	for id, rec := range s.db.records {
		if rec.Group() == key {
			delete(s.db.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memFileStore) InTx(ctx context.Context, fn func(tx repository.FileTx) error) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	tx := &memFileTx{db: s.db, store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memFileTx пишет прямо в memDB, запоминая действия для отката
type memFileTx struct {
	db    *memDB
	store *memFileStore
	undo  []func()
}

func (t *memFileTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (t *memFileTx) LockCurrent(key domain.GroupKey) (*domain.FileRecord, error) {
	for _, rec := range t.db.records {
		if rec.Group() == key && rec.IsCurrent {
			return copyRecord(rec), nil
		}
	}
	return nil, nil
}

func (t *memFileTx) InsertRecord(rec *domain.FileRecord) error {
	if t.db.failInsertRecord {
		return fmt.Errorf("simulated insert failure")
	}
	for _, existing := range t.db.records {
		if existing.Group() == rec.Group() && existing.Version == rec.Version {
			return repository.ErrDuplicate
		}
	}
	t.db.nextRecID++
	rec.ID = t.db.nextRecID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	id := rec.ID
	t.db.records[id] = copyRecord(rec)
	t.undo = append(t.undo, func() { delete(t.db.records, id) })
	return nil
}

func (t *memFileTx) DemoteCurrent(recordID int64) error {
	rec, ok := t.db.records[recordID]
	if !ok || !rec.IsCurrent {
		return repository.ErrNotFound
	}
	rec.IsCurrent = false
	t.undo = append(t.undo, func() { rec.IsCurrent = true })
	return nil
}

func (t *memFileTx) LiveVersions(key domain.GroupKey) ([]domain.FileRecord, error) {
	return t.store.liveVersionsLocked(key), nil
}

func (t *memFileTx) DeleteRecords(ids []int64) error {
	for _, id := range ids {
		rec, ok := t.db.records[id]
		if !ok {
			continue
		}
		delete(t.db.records, id)
		saved := rec
		t.undo = append(t.undo, func() { t.db.records[saved.ID] = saved })
	}
	return nil
}

func (t *memFileTx) InsertHistory(entry *domain.HistoryEntry) error {
	if err := t.db.insertHistory(entry); err != nil {
		return err
	}
	src := entry.SourceRecordID
	t.undo = append(t.undo, func() { delete(t.db.history, src) })
	return nil
}

func (db *memDB) insertHistory(entry *domain.HistoryEntry) error {
	if _, exists := db.history[entry.SourceRecordID]; exists {
		return repository.ErrDuplicate
	}
	db.nextHistID++
	entry.ID = db.nextHistID
	if entry.ArchivedAt.IsZero() {
		entry.ArchivedAt = time.Now()
	}
	c := *entry
	db.history[entry.SourceRecordID] = &c
	return nil
}

// memHistoryStore реализует repository.HistoryStore поверх того же memDB
type memHistoryStore struct {
	db *memDB
}

func (s *memHistoryStore) Insert(ctx context.Context, entry *domain.HistoryEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.insertHistory(entry)
}

func (s *memHistoryStore) Query(ctx context.Context, key domain.GroupKey, limit, offset int) ([]domain.HistoryEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []domain.HistoryEntry
	for _, entry := range s.db.history {
		if entry.OriginalFilename == key.OriginalFilename &&
			entry.FolderPath == key.FolderPath &&
			entry.OwnerID == key.OwnerID {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ArchivedAt.Equal(out[j].ArchivedAt) {
			return out[i].ArchivedAt.After(out[j].ArchivedAt)
		}
		return out[i].ID > out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memHistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var deleted int64
	for id, entry := range s.db.history {
		if entry.ArchivedAt.Before(cutoff) {
			delete(s.db.history, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memHistoryStore) InsertAccessLog(ctx context.Context, entry *domain.AccessLogEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	entry.ID = int64(len(s.db.accessLogs) + 1)
	entry.CreatedAt = time.Now()
	s.db.accessLogs = append(s.db.accessLogs, *entry)
	return nil
}

// memConfigStore реализует repository.ConfigStore поверх map
type memConfigStore struct {
	mu      sync.Mutex
	configs map[string]*domain.SystemConfig
}

func newMemConfigStore() *memConfigStore {
	return &memConfigStore{configs: make(map[string]*domain.SystemConfig)}
}

func (s *memConfigStore) Get(ctx context.Context, key string) (*domain.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *cfg
	return &c, nil
}

func (s *memConfigStore) GetAll(ctx context.Context) ([]domain.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SystemConfig
	for _, cfg := range s.configs {
		out = append(out, *cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConfigKey < out[j].ConfigKey })
	return out, nil
}

func (s *memConfigStore) Upsert(ctx context.Context, cfg *domain.SystemConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.configs[cfg.ConfigKey]; exists {
		return nil
	}
	c := *cfg
	c.ID = int64(len(s.configs) + 1)
	s.configs[cfg.ConfigKey] = &c
	return nil
}

func (s *memConfigStore) UpdateValue(ctx context.Context, key, value, configType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[key]
	if !ok {
		return repository.ErrNotFound
	}
	cfg.ConfigValue = value
	cfg.ConfigType = configType
	return nil
}

// set подменяет значение напрямую, минуя проверку редактируемости
func (s *memConfigStore) set(key, value, configType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[key]
	if !ok {
		s.configs[key] = &domain.SystemConfig{
			ConfigKey: key, ConfigValue: value, ConfigType: configType, IsEditable: true,
		}
		return
	}
	cfg.ConfigValue = value
}

// fakeStorage реализует s3.Storage в памяти
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	failUpload  error
	failDelete  error
	failPresign error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpload != nil {
		return "", s.failUpload
	}
	s.objects[key] = append([]byte(nil), data...)
	return "https://storage.test/" + key, nil
}

func (s *fakeStorage) GetObject(ctx context.Context, key string) (s3svc.S3Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return &fakeObject{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

func (s *fakeStorage) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPresign != nil {
		return "", s.failPresign
	}
	return "https://storage.test/presigned/" + key, nil
}

func (s *fakeStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type fakeObject struct {
	*bytes.Reader
	size int64
}

func (o *fakeObject) Close() error         { return nil }
func (o *fakeObject) ContentLength() int64 { return o.size }
func (o *fakeObject) ContentType() string  { return "application/octet-stream" }

var _ io.ReadCloser = (*fakeObject)(nil)

// newTestServices собирает сервисный слой поверх фейков
type testEnv struct {
	db             *memDB
	fileStore      *memFileStore
	historyStore   *memHistoryStore
	configStore    *memConfigStore
	storage        *fakeStorage
	configService  *ConfigService
	historyService *HistoryService
	versionService *VersionService
	uploadService  *UploadService
}

func newTestEnv() *testEnv {
	db := newMemDB()
	fileStore := &memFileStore{db: db}
	historyStore := &memHistoryStore{db: db}
	configStore := newMemConfigStore()
	storage := newFakeStorage()

	configService := NewConfigService(configStore, nil)
	_ = configService.EnsureInitialized(context.Background())

	historyService := NewHistoryService(historyStore, configService)
	versionService := NewVersionService(fileStore, historyService, configService)
	validator := NewFileValidator(10*1024*1024, map[string][]string{
		"documents": {".pdf", ".doc"},
		"text":      {".txt", ".md", ".csv"},
		"images":    {".png", ".jpg"},
	})
	uploadService := NewUploadService(storage, validator, NewContentProcessor(), versionService, historyService, fileStore)

	return &testEnv{
		db:             db,
		fileStore:      fileStore,
		historyStore:   historyStore,
		configStore:    configStore,
		storage:        storage,
		configService:  configService,
		historyService: historyService,
		versionService: versionService,
		uploadService:  uploadService,
	}
}
