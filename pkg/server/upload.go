package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sribot/pkg/catalog"
	"github.com/m-mizutani/sribot/pkg/model"
	"github.com/m-mizutani/sribot/pkg/utils/logging"
)

// allowedImageTypes maps an accepted MIME type to its file extensions
var allowedImageTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
}

// uploadError is a validation failure whose message is shown to the client
type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

func badUpload(msg string) *uploadError {
	return &uploadError{status: http.StatusBadRequest, msg: msg}
}

type uploadTarget struct {
	kind   string
	label  string
	field  string
	name   func(ctx context.Context, id int64) (string, error)
	update func(ctx context.Context, id int64, image string) error
}

type uploadFile struct {
	filename string
	data     []byte
}

// readUpload streams the multipart body without spilling to disk. The file
// part is read up to maxSize+1 bytes so oversized files are detected
// without buffering them whole.
func readUpload(r *http.Request, idFields []string, maxSize int64) (string, *uploadFile, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return "", nil, badUpload("request must be multipart/form-data")
	}

	var id string
	var file *uploadFile
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, badUpload("invalid multipart body")
		}

		switch name := part.FormName(); {
		case name == "file":
			data, err := io.ReadAll(io.LimitReader(part, maxSize+1))
			if err != nil {
				return "", nil, badUpload("failed to read file")
			}
			if int64(len(data)) > maxSize {
				return "", nil, badUpload(fmt.Sprintf("File terlalu besar. Maksimal %dMB", maxSize/(1024*1024)))
			}
			file = &uploadFile{filename: part.FileName(), data: data}

		case contains(idFields, name):
			raw, err := io.ReadAll(io.LimitReader(part, 64))
			if err != nil {
				return "", nil, badUpload("invalid id field")
			}
			id = strings.TrimSpace(string(raw))
		}
		_ = part.Close()
	}

	if file == nil {
		return "", nil, badUpload("file is required")
	}
	return id, file, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// validateImage checks an upload in order: emptiness, sniffed MIME type,
// extension agreement and decodability. It returns the extension to store
// the file with.
func validateImage(file *uploadFile) (string, error) {
	if len(file.data) == 0 {
		return "", badUpload("File kosong")
	}

	mtype := mimetype.Detect(file.data).String()
	exts, ok := allowedImageTypes[mtype]
	if !ok {
		return "", badUpload("Format file tidak didukung. Hanya menerima: PNG, JPG, JPEG")
	}

	ext := strings.ToLower(filepath.Ext(file.filename))
	if !contains(exts, ext) {
		return "", badUpload("Ekstensi file tidak sesuai dengan format gambar")
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(file.data)); err != nil {
		return "", badUpload("File bukan gambar yang valid")
	}
	return ext, nil
}

func (s *Server) handleUpload(target uploadTarget) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.From(ctx).With("kind", target.kind)

		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+1024*1024)
		rawID, file, err := readUpload(r, []string{"id", target.field}, s.maxUploadSize)
		if err != nil {
			writeUploadError(w, r, err)
			return
		}

		ext, err := validateImage(file)
		if err != nil {
			writeUploadError(w, r, err)
			return
		}

		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid "+target.kind+" id")
			return
		}

		name, err := target.name(ctx, id)
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, fmt.Sprintf("%s dengan ID %d tidak ditemukan", target.label, id))
			return
		}
		if err != nil {
			logger.Error("failed to look up upload target", logging.ErrAttr(err), "id", id)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}

		filename := fmt.Sprintf("%s_%d_%d_%s%s", target.kind, id, s.now().Unix(), uuid.New().String()[:8], ext)
		if err := s.storeUpload(ctx, filename, file.data); err != nil {
			logger.Error("failed to store upload", logging.ErrAttr(err), "filename", filename)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := target.update(ctx, id, filename); err != nil {
			if delErr := s.storage.Delete(ctx, uploadPrefix+filename); delErr != nil {
				logger.Warn("failed to remove orphan upload", logging.ErrAttr(delErr), "filename", filename)
			}
			logger.Error("failed to update catalog image", logging.ErrAttr(err), "id", id)
			writeError(w, r, http.StatusInternalServerError, "internal server error")
			return
		}

		logger.Info("image uploaded", "id", id, "filename", filename, "size", len(file.data))
		writeJSON(w, r, http.StatusOK, map[string]any{
			"status":   "success",
			"message":  fmt.Sprintf("Gambar %s '%s' berhasil diupload", target.label, name),
			"id":       id,
			"filename": filename,
			"url":      model.ResolveImageURL(s.baseURL, filename),
			"size":     len(file.data),
		})
	}
}

func (s *Server) storeUpload(ctx context.Context, filename string, data []byte) error {
	writer, err := s.storage.Put(ctx, uploadPrefix+filename)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write upload")
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close upload writer")
	}
	return nil
}

func writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		writeError(w, r, ue.status, ue.msg)
		return
	}
	logging.From(r.Context()).Error("unexpected upload failure", logging.ErrAttr(err))
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}
