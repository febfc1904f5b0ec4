package domain

import "time"

// Attachment is the metadata of a stored file; bytes live in file storage.
type Attachment struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Size        int64      `json:"size"`
	ContentType string     `json:"contentType"`
	UploadedAt  *time.Time `json:"uploadedAt,omitempty"`
	UploadedBy  string     `json:"uploadedBy,omitempty"`
}

// AttachmentSet is persisted as the adjuntos_json column.
type AttachmentSet struct {
	Files []Attachment `json:"files"`
}

// Find returns the attachment with the given id.
func (s AttachmentSet) Find(id string) (Attachment, bool) {
	for _, f := range s.Files {
		if f.ID == id {
			return f, true
		}
	}
	return Attachment{}, false
}

// Without returns a copy of the set minus the attachment with the given id.
func (s AttachmentSet) Without(id string) AttachmentSet {
	files := make([]Attachment, 0, len(s.Files))
	for _, f := range s.Files {
		if f.ID != id {
			files = append(files, f)
		}
	}
	return AttachmentSet{Files: files}
}

// With returns a copy of the set with extra appended in order.
func (s AttachmentSet) With(extra ...Attachment) AttachmentSet {
	files := make([]Attachment, 0, len(s.Files)+len(extra))
	files = append(files, s.Files...)
	files = append(files, extra...)
	return AttachmentSet{Files: files}
}
