package handler

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
	"docvault/internal/upload"
)

// isoMillis matches the millisecond ISO 8601 form clients already parse.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

const fileField = "file"

// UploadDocumentResponse is returned by POST /upload.
type UploadDocumentResponse struct {
	Message  string `json:"message"`
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Title    string `json:"titulo"`
	Status   string `json:"estado"`
	Date     string `json:"fecha"`
	Size     int64  `json:"size"`
}

// UploadImageResponse is returned by POST /upload-image.
type UploadImageResponse struct {
	Message  string `json:"message"`
	ID       int64  `json:"id"`
	Name     string `json:"nombre"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Date     string `json:"fecha"`
}

// DeleteResponse is returned by the delete endpoints.
type DeleteResponse struct {
	Message     string `json:"message"`
	DeletedFile string `json:"deletedFile"`
}

// UploadDocument godoc
//
//	@Summary	Upload a PDF or image as a document
//	@Tags		documents
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"PDF or image (max 10 MiB)"
//	@Param		titulo	formData	string	false	"Title, 1-200 characters"
//	@Success	200		{object}	UploadDocumentResponse
//	@Failure	400		{object}	errorPayload
//	@Failure	429		{object}	errorPayload
//	@Failure	500		{object}	errorPayload
//	@Router		/upload [post]
func UploadDocument(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, closeFile, err := readUpload(c, "titulo")
		if err != nil {
			return respondError(c, err, "error uploading file")
		}
		defer closeFile()

		res, err := svc.UploadDocument(c.UserContext(), in)
		if err != nil {
			return respondError(c, err, "error uploading file")
		}
		doc := res.Document
		return c.JSON(UploadDocumentResponse{
			Message:  "file uploaded successfully",
			ID:       doc.ID,
			URL:      doc.URL,
			Type:     upload.MediaType(in.ContentType),
			Filename: doc.Filename,
			Title:    doc.Title,
			Status:   doc.Status,
			Date:     doc.UploadedAt.UTC().Format(isoMillis),
			Size:     res.Size,
		})
	}
}

// UploadImage godoc
//
//	@Summary	Upload an image
//	@Tags		images
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"JPEG, PNG or WebP image (max 10 MiB)"
//	@Param		nombre	formData	string	false	"Display name, 1-200 characters"
//	@Success	200		{object}	UploadImageResponse
//	@Failure	400		{object}	errorPayload
//	@Failure	429		{object}	errorPayload
//	@Failure	500		{object}	errorPayload
//	@Router		/upload-image [post]
func UploadImage(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, closeFile, err := readUpload(c, "nombre")
		if err != nil {
			return respondError(c, err, "error uploading image")
		}
		defer closeFile()

		res, err := svc.UploadImage(c.UserContext(), in)
		if err != nil {
			return respondError(c, err, "error uploading image")
		}
		img := res.Image
		return c.JSON(UploadImageResponse{
			Message:  "image uploaded successfully",
			ID:       img.ID,
			Name:     img.Name,
			Filename: img.Filename,
			URL:      img.URL,
			Date:     img.UploadedAt.UTC().Format(isoMillis),
		})
	}
}

// ListFiles godoc
//
//	@Summary	List blobs present in storage
//	@Tags		files
//	@Produce	json
//	@Success	200	{object}	service.FileListing
//	@Failure	500	{object}	errorPayload
//	@Router		/files [get]
func ListFiles(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.ListFiles(c.UserContext())
		if err != nil {
			return respondError(c, err, "error listing files")
		}
		return c.JSON(res)
	}
}

// ListDocuments godoc
//
//	@Summary	List documents, newest first
//	@Tags		documents
//	@Produce	json
//	@Success	200	{array}		model.Document
//	@Failure	500	{object}	errorPayload
//	@Router		/documentos [get]
func ListDocuments(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.ListDocuments(c.UserContext())
		if err != nil {
			return respondError(c, err, "error listing documents")
		}
		return c.JSON(docs)
	}
}

// ListImages godoc
//
//	@Summary	List images, newest first
//	@Tags		images
//	@Produce	json
//	@Success	200	{array}		model.Image
//	@Failure	500	{object}	errorPayload
//	@Router		/imagenes [get]
func ListImages(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		imgs, err := svc.ListImages(c.UserContext())
		if err != nil {
			return respondError(c, err, "error listing images")
		}
		return c.JSON(imgs)
	}
}

// DeleteDocument godoc
//
//	@Summary	Delete a document and its file
//	@Tags		documents
//	@Produce	json
//	@Param		id	path		int	true	"Document ID"
//	@Success	200	{object}	DeleteResponse
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Failure	500	{object}	errorPayload
//	@Router		/documentos/{id} [delete]
func DeleteDocument(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, KindValidation, "invalid id")
		}
		doc, err := svc.DeleteDocument(c.UserContext(), id)
		if err != nil {
			return respondError(c, err, "error deleting document")
		}
		return c.JSON(DeleteResponse{Message: "document deleted successfully", DeletedFile: doc.Filename})
	}
}

// DeleteImage godoc
//
//	@Summary	Delete an image and its file
//	@Tags		images
//	@Produce	json
//	@Param		id	path		int	true	"Image ID"
//	@Success	200	{object}	DeleteResponse
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Failure	500	{object}	errorPayload
//	@Router		/imagenes/{id} [delete]
func DeleteImage(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, KindValidation, "invalid id")
		}
		img, err := svc.DeleteImage(c.UserContext(), id)
		if err != nil {
			return respondError(c, err, "error deleting image")
		}
		return c.JSON(DeleteResponse{Message: "image deleted successfully", DeletedFile: img.Filename})
	}
}

func parseID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	return id, err == nil && id > 0
}

// readUpload takes the single "file" part and the optional label field off a multipart form.
// The returned func closes the opened part.
func readUpload(c *fiber.Ctx, labelField string) (service.UploadInput, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		return service.UploadInput{}, nil, upload.ErrNoFile
	}

	fh, err := singleFile(form)
	if err != nil {
		return service.UploadInput{}, nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return service.UploadInput{}, nil, upload.ErrNoFile
	}

	var label string
	if vals := form.Value[labelField]; len(vals) > 0 {
		label = vals[0]
	}

	return service.UploadInput{
		Reader:      f,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Label:       label,
	}, func() { closeQuietly(f) }, nil
}

func singleFile(form *multipart.Form) (*multipart.FileHeader, error) {
	total := 0
	for _, fhs := range form.File {
		total += len(fhs)
	}
	switch {
	case total == 0:
		return nil, upload.ErrNoFile
	case total > 1:
		return nil, upload.ErrTooManyFiles
	case len(form.File[fileField]) != 1:
		return nil, upload.ErrUnexpectedField
	}
	return form.File[fileField][0], nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
