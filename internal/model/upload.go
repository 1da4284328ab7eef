package model

// UploadPayload is an image decoded at the transport boundary, whatever the wire
// encoding was (multipart file or base64 in JSON). A nil payload means "no image".
type UploadPayload struct {
	Data         []byte
	OriginalName string
}

func NewUploadPayload(data []byte, originalName string) *UploadPayload {
	if len(data) == 0 {
		return nil
	}
	return &UploadPayload{Data: data, OriginalName: originalName}
}

// Present reports whether the payload carries any bytes. Zero-length uploads count as no image.
func (p *UploadPayload) Present() bool {
	return p != nil && len(p.Data) > 0
}

func (p *UploadPayload) Size() int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.Data))
}
