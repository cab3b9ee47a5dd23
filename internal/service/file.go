package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/questboard/questboard/internal/model"
	"github.com/questboard/questboard/internal/repository"
	"github.com/questboard/questboard/internal/storage"
)

type FileService struct {
	fileRepo repository.FileRepository
	storage  storage.Storage
}

func NewFileService(fileRepo repository.FileRepository, storage storage.Storage) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		storage:  storage,
	}
}

// Upload stores file and records it. Callers validate type and size first;
// mimeType is the sniffed content type, not the client's claim.
func (s *FileService) Upload(ctx context.Context, userID, ownerType, ownerID, fileType, mimeType string, file io.Reader, header *multipart.FileHeader, isPublic bool) (*model.File, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	filename := uuid.New().String() + ext

	prefix := "private"
	if isPublic {
		prefix = "public"
	}
	storagePath := path.Join(prefix, fileType+"s", filename)

	err := s.storage.Save(ctx, storagePath, file)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	fileModel := &model.File{
		ID:           uuid.New().String(),
		UserID:       userID,
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		Type:         fileType,
		Filename:     filename,
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Size:         header.Size,
		StoragePath:  storagePath,
		Public:       isPublic,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.fileRepo.Create(ctx, fileModel)
	if err != nil {
		delErr := s.storage.Delete(ctx, storagePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	return fileModel, nil
}

func (s *FileService) Avatar(ctx context.Context, profileID string) (*model.File, error) {
	return s.fileRepo.FileByType(ctx, model.FileOwnerProfile, profileID, model.FileTypeAvatar)
}

// URL returns a browser-usable address for file. Private S3 objects get a
// short-lived presigned URL.
func (s *FileService) URL(file *model.File) string {
	if file == nil {
		return ""
	}

	s3Storage, ok := s.storage.(*storage.S3Storage)
	if ok && !file.Public {
		url, err := s3Storage.PrivateURL(file.StoragePath)
		if err == nil {
			return url
		}
		slog.Warn("failed to presign private file url", "error", err, "file_id", file.ID)
	}

	return s.storage.URL(file.StoragePath)
}

func (s *FileService) Delete(ctx context.Context, fileID string) error {
	file, err := s.fileRepo.ByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}

	delErr := s.storage.Delete(ctx, file.StoragePath)
	if delErr != nil {
		slog.Error("failed to delete file from storage", "error", delErr, "path", file.StoragePath)
	}

	err = s.fileRepo.Delete(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	return nil
}

// DeleteAvatar removes the current avatar of a profile, if any.
func (s *FileService) DeleteAvatar(ctx context.Context, profileID string) error {
	file, err := s.Avatar(ctx, profileID)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	return s.Delete(ctx, file.ID)
}

// DeleteAllUserFilesFromStorage removes stored objects only; the rows go
// with the user through the foreign key cascade.
func (s *FileService) DeleteAllUserFilesFromStorage(ctx context.Context, userID string) error {
	files, err := s.fileRepo.AllUserFiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user files: %w", err)
	}

	for _, file := range files {
		err = s.storage.Delete(ctx, file.StoragePath)
		if err != nil {
			slog.Warn("failed to delete file from storage", "storage_path", file.StoragePath, "error", err)
		}
	}

	return nil
}
