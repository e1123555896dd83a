package domain

import "time"

// FileMeta is a row of the files table. Rows are created by the upload
// collaborator; the relay only reads them to enrich file messages.
type FileMeta struct {
	ID           int64
	Filename     string
	OriginalName string
	FilePath     string
	FileSize     int64
	FileType     string
	MimeType     string
	Username     string
	Room         string
	CreatedAt    time.Time
}

// FileRef is the client-facing shape of a file attachment.
type FileRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	MimeType string `json:"mimeType"`
}

func (f FileMeta) Ref() FileRef {
	return FileRef{
		ID:       f.ID,
		Name:     f.OriginalName,
		URL:      "/uploads/" + f.Filename,
		Size:     f.FileSize,
		Type:     f.FileType,
		MimeType: f.MimeType,
	}
}
