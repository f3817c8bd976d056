package model

import "strings"

// Namespace scopes filename uniqueness and storage location.
type Namespace string

const (
	NamespaceImages Namespace = "images"
	NamespacePDFs   Namespace = "pdfs"
)

// Namespaces lists every namespace in listing order.
var Namespaces = []Namespace{NamespaceImages, NamespacePDFs}

// NamespaceFor picks the namespace for a declared content type.
func NamespaceFor(contentType string) Namespace {
	if strings.EqualFold(contentType, "application/pdf") {
		return NamespacePDFs
	}
	return NamespaceImages
}

// Key joins the namespace and a stored filename into a blob key.
func (n Namespace) Key(filename string) string {
	return string(n) + "/" + filename
}

// FileType is the short type label used by the raw file listing.
func (n Namespace) FileType() string {
	if n == NamespacePDFs {
		return "pdf"
	}
	return "image"
}

// StoredFile is one blob as seen directly in the store, independent of metadata.
type StoredFile struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	URL      string `json:"url"`
}
