package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/basakesin/mri-defacing-platform/internal/api/ctxkeys"
	"github.com/basakesin/mri-defacing-platform/internal/domain/pipeline"
)

// multipartMemory is how much of an upload is buffered in memory before the
// multipart reader spills to a temp file.
const multipartMemory = 32 << 20

// HeaderJobID carries the job identifier on successful responses.
const HeaderJobID = "X-Job-ID"

type DefaceHandler struct {
	svc       *pipeline.Service
	maxUpload int64
}

// NewDefaceHandler returns a handler limiting request bodies to maxUpload bytes.
// A non-positive maxUpload disables the limit.
func NewDefaceHandler(svc *pipeline.Service, maxUpload int64) *DefaceHandler {
	return &DefaceHandler{svc: svc, maxUpload: maxUpload}
}

// Deface accepts multipart fields "file" and "method" and streams back the defaced
// volume as an attachment.
func (h *DefaceHandler) Deface(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		if r.ContentLength > h.maxUpload {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds the %d byte limit", h.maxUpload))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds the %d byte limit", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file part in request")
		return
	}
	defer file.Close()

	_, methodSet := r.Form["method"]

	delivered := false
	err = h.svc.Execute(r.Context(), pipeline.Request{
		Filename:  header.Filename,
		Method:    r.Form.Get("method"),
		MethodSet: methodSet,
		Body:      file,
		Subject:   ctxkeys.String(r.Context(), ctxkeys.Subject),
	}, func(a pipeline.Artifact) error {
		delivered = true
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.DownloadName))
		w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
		w.Header().Set(HeaderJobID, a.JobID)
		w.WriteHeader(http.StatusOK)
		_, copyErr := io.Copy(w, a.File)
		return copyErr
	})
	if err == nil || delivered {
		return
	}

	status := http.StatusInternalServerError
	if pipeline.IsClientError(err) {
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}
