package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/storage"
)

type documentStore interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter, scopePublic bool) ([]models.Document, int, error)
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

// DocumentConfig bounds what uploads are accepted.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService stores uploaded files on disk, keeps their metadata
// in the database, and hands out time-limited signed download links.
type DocumentService struct {
	repo    documentStore
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	audit   auditLogger
	config  DocumentConfig
	logger  *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentStore, store *storage.LocalStorage, signer *storage.SignedURLSigner, audit auditLogger, config DocumentConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 << 20
	}
	return &DocumentService{repo: repo, storage: store, signer: signer, audit: audit, config: config, logger: logger}
}

// Upload validates, stores and registers a file owned by the actor.
func (s *DocumentService) Upload(ctx context.Context, req dto.UploadDocumentRequest, fileName, mimeType string, size int64, r io.Reader, actor authz.Principal) (*dto.DocumentResponse, error) {
	if size > s.config.MaxFileSizeBytes {
		return nil, appErrors.ErrPayloadTooLarge
	}
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.ErrUnsupportedMedia
	}
	fileName = filepath.Base(fileName)
	if fileName == "" || fileName == "." {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name is required")
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		OwnerUserID: actor.UserID,
		DemandeID:   req.DemandeID,
		FileName:    fileName,
		MimeType:    mimeType,
		SizeBytes:   size,
		Public:      req.Public,
	}
	doc.StoragePath = fmt.Sprintf("%s/%s", doc.ID, fileName)

	if _, err := s.storage.SaveStream(doc.StoragePath, io.LimitReader(r, s.config.MaxFileSizeBytes)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if cleanupErr := s.storage.Delete(doc.StoragePath); cleanupErr != nil {
			s.logger.Warn("orphan file cleanup failed", zap.String("path", doc.StoragePath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register document")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionDocumentUpload, doc.ID)
	return s.withDownloadURL(doc)
}

// Get returns document metadata plus a fresh signed link.
func (s *DocumentService) Get(ctx context.Context, id string, actor authz.Principal) (*dto.DocumentResponse, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessDocument(actor, documentView(doc)) {
		return nil, appErrors.ErrForbidden
	}
	return s.withDownloadURL(doc)
}

// List returns the documents visible to the actor.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentQuery, actor authz.Principal) ([]dto.DocumentResponse, *models.Pagination, error) {
	scope := authz.DocumentScope(actor)
	if !scope.All && scope.OwnerUserID == "" {
		return nil, nil, appErrors.ErrForbidden
	}
	filter := models.DocumentFilter{
		OwnerUserID: scope.OwnerUserID,
		DemandeID:   query.DemandeID,
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	docs, total, err := s.repo.List(ctx, filter, scope.IncludePublic)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	out := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		resp, err := s.withDownloadURL(&docs[i])
		if err != nil {
			return nil, nil, err
		}
		out = append(out, *resp)
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return out, pagination, nil
}

// OpenSigned validates a download token and opens the underlying file.
// Signed links are bearer credentials, no session is required.
func (s *DocumentService) OpenSigned(ctx context.Context, token string) (*models.Document, *os.File, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.StoragePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link does not match the document")
	}
	file, err := s.storage.Open(doc.StoragePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return doc, file, nil
}

// Delete removes the record and the stored file.
func (s *DocumentService) Delete(ctx context.Context, id string, actor authz.Principal) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanAccessDocument(actor, documentView(doc)) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.storage.Delete(doc.StoragePath); err != nil {
		s.logger.Warn("stored file removal failed", zap.String("path", doc.StoragePath), zap.Error(err))
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionDocumentDelete, id)
	return nil
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) withDownloadURL(doc *models.Document) (*dto.DocumentResponse, error) {
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &dto.DocumentResponse{
		Document:    *doc,
		DownloadURL: fmt.Sprintf("/api/v1/documents/download?token=%s", token),
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *DocumentService) mimeAllowed(mimeType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if allowed == mimeType {
			return true
		}
	}
	return false
}

func (s *DocumentService) emitAudit(ctx context.Context, userID, action, documentID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "document",
		ResourceID: &documentID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func documentView(d *models.Document) authz.DocumentView {
	return authz.DocumentView{OwnerUserID: d.OwnerUserID, Public: d.Public}
}
